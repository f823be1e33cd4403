package main

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/spf13/cobra"

	"github.com/ivlev/stellarfield/internal/config"
	"github.com/ivlev/stellarfield/internal/renderer"
	"github.com/ivlev/stellarfield/internal/sprite"
)

func newSnapshotCommand(ctx *commandContext) *cobra.Command {
	var (
		page      int
		progress  float64
		out       string
		hints     string
		crosshair bool
		originX   float64
		originY   float64
	)

	cmd := &cobra.Command{
		Use:   "snapshot <input>",
		Short: "Render a single frame of the animation as PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var origin *config.ZoomOrigin
			if cmd.Flags().Changed("origin-x") || cmd.Flags().Changed("origin-y") {
				origin = &config.ZoomOrigin{X: originX, Y: originY}
			}
			ps, err := prepareScene(cmd.Context(), cfg, args[0], page-1, hints, origin)
			if err != nil {
				return err
			}

			eng := renderer.NewEngine(sprite.NewCache(sprite.DefaultMaxEntries, sprite.DefaultBaseSize))
			frame := image.NewRGBA(image.Rect(0, 0, ps.width, ps.height))
			st := eng.Render(frame, progress, ps.scene, renderer.Options{Interactive: crosshair})

			if out == "" {
				out = fmt.Sprintf("%s_%03d.png", ps.name, int(progress*100))
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := png.Encode(f, frame); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			ctx.logger.Debug("snapshot rendered", "drawn", st.Drawn, "culled", st.Culled)
			fmt.Fprintf(cmd.OutOrStdout(), "[+++] Кадр %dx%d (%s, %d частиц, отсечено %d): %s\n",
				ps.width, ps.height, ps.mode, st.Drawn, st.Culled, out)
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page of a PDF input (1-based)")
	cmd.Flags().Float64VarP(&progress, "progress", "p", 0.5, "Animation progress in [0,1]")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output PNG path (default <name>_<progress>.png)")
	cmd.Flags().StringVar(&hints, "hints", "", "Hint sidecar file (YAML or JSON)")
	cmd.Flags().BoolVar(&crosshair, "crosshair", false, "Draw the zoom origin")
	cmd.Flags().Float64Var(&originX, "origin-x", 0.5, "Zoom origin X in [0,1] (default: picked from the particles)")
	cmd.Flags().Float64Var(&originY, "origin-y", 0.5, "Zoom origin Y in [0,1] (default: picked from the particles)")
	return cmd
}
