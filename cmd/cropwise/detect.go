package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cropwise/cropwise/internal/advisory"
	"github.com/cropwise/cropwise/pkg/surface"
)

func newDetectCmd(g *globalOpts) *cobra.Command {
	var outputFmt string

	cmd := &cobra.Command{
		Use:   "detect <image>",
		Short: "Diagnose plant disease from a leaf image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := surface.ForFormat(outputFmt)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading image: %w", err)
			}

			adapter, err := g.cfg.Adapter()
			if err != nil {
				return err
			}
			detector, err := g.cfg.Disease.Detector()
			if err != nil {
				return fmt.Errorf("loading disease table: %w", err)
			}
			svc := advisory.NewService(adapter, detector)
			defer svc.Close()

			fmt.Fprintf(os.Stderr, "Analyzing %s...\n", filepath.Base(args[0]))
			d, err := svc.Diagnose(cmd.Context(), advisory.Upload{
				Filename:    filepath.Base(args[0]),
				ContentType: mime.TypeByExtension(filepath.Ext(args[0])),
				Data:        data,
			})
			if err != nil {
				return err
			}
			return r.RenderDiagnosis(os.Stdout, &d.Diagnosis)
		},
	}

	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text, json or markdown")
	return cmd
}
