package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ivlev/stellarfield/internal/capture"
	"github.com/ivlev/stellarfield/internal/config"
	"github.com/ivlev/stellarfield/internal/director"
	"github.com/ivlev/stellarfield/internal/engine"
	"github.com/ivlev/stellarfield/internal/hint"
	"github.com/ivlev/stellarfield/internal/system"
)

type batchFlags struct {
	manifest   string
	outDir     string
	format     string
	resolution string
	fps        int
	hintsDir   string
	ffmpeg     string
	realtime   bool
	report     string
	plan       string
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var f batchFlags

	cmd := &cobra.Command{
		Use:   "batch [inputs...]",
		Short: "Record one video per image or PDF page",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			applyBatchFlags(cmd, cfg, f)

			m, err := loadManifest(f.manifest, args)
			if err != nil {
				return err
			}
			if f.plan != "" {
				if err := director.WriteManifest(m, f.plan); err != nil {
					return fmt.Errorf("write plan: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[*] План на %d элементов: %s\n", len(m.Items), f.plan)
				return nil
			}
			src, m := openManifest(m, ctx.logger)
			defer src.Close()
			if src.PageCount() == 0 {
				return fmt.Errorf("источник не содержит страниц/кадров")
			}

			probe := system.NewFFmpegProbe(f.ffmpeg)
			if err := probe.Load(cmd.Context()); err != nil {
				return fmt.Errorf("ffmpeg недоступен: %w", err)
			}

			sink, err := engine.NewDirSink(cfg.OutputDir)
			if err != nil {
				return err
			}
			if err := sink.Lock(); err != nil {
				return err
			}
			defer sink.Unlock()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "--- [STELLARFIELD BATCH] ---")
			fmt.Fprintf(out, "[*] Элементов: %d | %s @ %d FPS | %s\n", src.PageCount(), cfg.Video.Resolution, cfg.Video.FPS, cfg.Video.Format)
			fmt.Fprintf(out, "[*] Выход: %s\n", cfg.OutputDir)
			fmt.Fprintln(out, "----------------------------")

			pipeline := capture.NewPipeline(capture.FFmpegFactory{Binary: f.ffmpeg}, probe, *cfg, ctx.logger)
			seq := engine.New(*cfg, src, pipeline, sink, ctx.logger)
			seq.Manifest = m
			if f.hintsDir != "" {
				seq.Hints = hint.FileProvider{Dir: f.hintsDir}
			}

			bar := newProgressBar(cmd.ErrOrStderr(), src.PageCount())
			seq.OnUpdate = func(b engine.BatchState) {
				ok, failed := b.Counts()
				if b.ExportCursor >= 0 && b.ExportCursor < len(b.Items) {
					it := b.Items[b.ExportCursor]
					bar.Describe(fmt.Sprintf("[%d/%d] %s: %s", it.Index+1, len(b.Items), it.Name, it.Status))
				}
				bar.Set(ok + failed)
			}

			start := time.Now()
			state, runErr := seq.Run(cmd.Context())
			bar.Finish()
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderBatchTable(state))

			reportPath := f.report
			if reportPath == "" {
				reportPath = director.GenerateReportPath(cfg.OutputDir)
			}
			if err := director.WriteReport(buildReport(state), reportPath); err != nil {
				fmt.Fprintf(out, "[!] Не удалось записать отчет: %v\n", err)
			} else {
				fmt.Fprintf(out, "[*] Отчет: %s\n", reportPath)
			}

			ok, failed := state.Counts()
			fmt.Fprintf(out, "[+++] Готово за %s: успешно %d, ошибок %d\n", time.Since(start).Round(time.Millisecond), ok, failed)

			if runErr != nil {
				return runErr
			}
			if ok == 0 {
				return errors.New("ни один элемент не был записан")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&f.manifest, "manifest", "m", "", "Batch manifest (YAML), or a directory to take the newest manifest from")
	cmd.Flags().StringVar(&f.plan, "plan", "", "Write the planned manifest for the inputs to this path and exit")
	cmd.Flags().StringVarP(&f.outDir, "out", "o", "", "Output directory (default from config)")
	cmd.Flags().StringVar(&f.format, "format", "", "Requested container: mp4, webm, mkv")
	cmd.Flags().StringVar(&f.resolution, "resolution", "", "Surface size: original, 1080p, 4k")
	cmd.Flags().IntVar(&f.fps, "fps", 0, "Frames per second")
	cmd.Flags().StringVar(&f.hintsDir, "hints-dir", "", "Directory with <name>.yaml hint sidecars")
	cmd.Flags().StringVar(&f.ffmpeg, "ffmpeg", "ffmpeg", "ffmpeg binary")
	cmd.Flags().BoolVar(&f.realtime, "realtime", false, "Pace frames by wall clock instead of stepping")
	cmd.Flags().StringVar(&f.report, "report", "", "Report path (default <out>/report_<time>.yaml)")
	return cmd
}

func applyBatchFlags(cmd *cobra.Command, cfg *config.Config, f batchFlags) {
	if f.outDir != "" {
		cfg.OutputDir = f.outDir
	}
	if f.format != "" {
		cfg.Video.Format = f.format
	}
	if f.resolution != "" {
		cfg.Video.Resolution = config.Resolution(f.resolution)
	}
	if f.fps > 0 {
		cfg.Video.FPS = f.fps
	}
	if cmd.Flags().Changed("realtime") {
		cfg.Capture.Realtime = f.realtime
	}
	*cfg = cfg.Clamp()
}

func loadManifest(path string, args []string) (*director.Manifest, error) {
	if path != "" {
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			latest, err := director.FindLatestManifest(path)
			if err != nil {
				return nil, err
			}
			path = latest
		}
		return director.ReadManifest(path)
	}
	if len(args) == 0 {
		return nil, errors.New("укажите входные файлы или --manifest")
	}
	var inputs []string
	for _, a := range args {
		found, err := system.CollectInputs(a)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, found...)
	}
	return director.NewDirector().Plan(inputs), nil
}

func newProgressBar(w io.Writer, n int) *progressbar.ProgressBar {
	return progressbar.NewOptions(n,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("capture"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
}

func renderBatchTable(b engine.BatchState) string {
	rows := make([][]string, len(b.Items))
	for i, it := range b.Items {
		size, detail := "", it.Artifact
		if it.Bytes > 0 {
			size = humanize.Bytes(uint64(it.Bytes))
		}
		if it.Err != nil {
			detail = it.Err.Error()
		}
		if it.Fallback {
			detail += " (fallback " + it.Container + ")"
		}
		rows[i] = []string{
			strconv.Itoa(i + 1),
			it.Name,
			string(it.Status),
			string(it.Mode),
			strconv.Itoa(it.Particles),
			size,
			detail,
		}
	}
	return renderTable(
		[]string{"#", "Name", "Status", "Mode", "Particles", "Size", "Artifact"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func buildReport(b engine.BatchState) *director.Report {
	r := &director.Report{
		Version:   director.ManifestVersion,
		Generated: time.Now().Format(time.RFC3339),
	}
	for _, it := range b.Items {
		ri := director.ReportItem{
			Name:      it.Name,
			Status:    string(it.Status),
			Mode:      string(it.Mode),
			Particles: it.Particles,
			Artifact:  it.Artifact,
			Bytes:     it.Bytes,
			Container: it.Container,
			Fallback:  it.Fallback,
			Partial:   it.Partial,
		}
		if it.Status == engine.StatusSuccess || it.Particles > 0 {
			o := it.Origin
			ri.Origin = &o
		}
		if it.Err != nil {
			ri.Error = it.Err.Error()
		}
		r.Items = append(r.Items, ri)
	}
	return r
}
