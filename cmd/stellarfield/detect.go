package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var (
		page  int
		hints string
		out   string
		top   int
	)

	cmd := &cobra.Command{
		Use:   "detect <input>",
		Short: "Detect stars in an image or PDF page and show the resolved particles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ps, err := prepareScene(cmd.Context(), cfg, args[0], page-1, hints, nil)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "[*] %s: %d detections, analysis %dx%d\n", ps.name, ps.detections, ps.stats.Width, ps.stats.Height)
			fmt.Fprintf(w, "[*] Фон: mean %.2f sigma %.2f threshold %.2f | candidates %d rejected %d\n",
				ps.stats.Mean, ps.stats.Sigma, ps.stats.Threshold, ps.stats.Candidates, ps.stats.Rejected)
			fmt.Fprintf(w, "[*] Режим: %s, частиц: %d, origin (%.3f, %.3f)\n",
				ps.mode, len(ps.scene.Particles), ps.scene.Origin.X, ps.scene.Origin.Y)

			particles := ps.scene.Particles
			if top > 0 {
				sorted := append(particles[:0:0], particles...)
				sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Scale > sorted[j].Scale })
				if len(sorted) > top {
					sorted = sorted[:top]
				}
				rows := make([][]string, len(sorted))
				for i, p := range sorted {
					rows[i] = []string{
						strconv.Itoa(i + 1),
						fmt.Sprintf("%.4f", p.X),
						fmt.Sprintf("%.4f", p.Y),
						fmt.Sprintf("%.2f", p.Z),
						fmt.Sprintf("%.2f", p.Scale),
						fmt.Sprintf("%.2f", p.AlphaOr(1)),
						p.Color,
					}
				}
				fmt.Fprintln(w, renderTable(
					[]string{"#", "X", "Y", "Z", "Scale", "Alpha", "Color"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
				))
			}

			if out != "" {
				data, err := yaml.Marshal(particles)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, data, 0644); err != nil {
					return err
				}
				fmt.Fprintf(w, "[+++] Частицы сохранены: %s\n", out)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page of a PDF input (1-based)")
	cmd.Flags().StringVar(&hints, "hints", "", "Hint sidecar file (YAML or JSON)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the resolved particles as YAML")
	cmd.Flags().IntVar(&top, "top", 10, "Show the N largest particles (0 = none)")
	return cmd
}
