package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cropwise/cropwise/pkg/catalog"
	"github.com/cropwise/cropwise/pkg/soil"
)

func newCropsCmd(g *globalOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crops",
		Short: "Browse the crop catalog",
	}
	cmd.AddCommand(newCropsListCmd(g), newCropsShowCmd(g))
	return cmd
}

func newCropsListCmd(g *globalOpts) *cobra.Command {
	var (
		season    string
		outputFmt string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog crops in ranking tie-break order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := g.cfg.Scoring.Catalog()
			if err != nil {
				return err
			}
			profiles := cat.Profiles()
			if season != "" {
				profiles = cat.Filter(season)
			}
			return writeCrops(os.Stdout, profiles, outputFmt)
		},
	}

	cmd.Flags().StringVar(&season, "season", "", "Only crops grown in this season (e.g. Kharif, Rabi)")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text or json")
	return cmd
}

func newCropsShowCmd(g *globalOpts) *cobra.Command {
	var outputFmt string

	cmd := &cobra.Command{
		Use:   "show <crop>",
		Short: "Show one crop's ideal conditions and fertilizers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := g.cfg.Scoring.Catalog()
			if err != nil {
				return err
			}
			p, err := cat.Get(args[0])
			if err != nil {
				return err
			}
			if outputFmt == "json" {
				return writeJSON(os.Stdout, p)
			}
			return writeCropDetail(os.Stdout, p)
		},
	}

	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text or json")
	return cmd
}

func writeCrops(w io.Writer, profiles []catalog.CropProfile, outputFmt string) error {
	switch outputFmt {
	case "json":
		if profiles == nil {
			profiles = []catalog.CropProfile{}
		}
		return writeJSON(w, profiles)
	case "", "text":
	default:
		return fmt.Errorf("unknown output format %q (want text or json)", outputFmt)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSEASON\tDURATION")
	for _, p := range profiles {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, catalog.DisplayName(p.ID), dash(p.Season), dash(p.GrowthDuration))
	}
	return tw.Flush()
}

func writeCropDetail(w io.Writer, p catalog.CropProfile) error {
	fmt.Fprintf(w, "%s (%s)\n", catalog.DisplayName(p.ID), p.ID)
	fmt.Fprintf(w, "%s\n\n", p.Description)
	if p.Season != "" {
		fmt.Fprintf(w, "Season:    %s\n", p.Season)
	}
	if p.GrowthDuration != "" {
		fmt.Fprintf(w, "Duration:  %s\n", p.GrowthDuration)
	}

	fmt.Fprintln(w, "\nIdeal conditions:")
	for _, f := range soil.Fields() {
		if v, ok := p.Ideal.Get(f); ok {
			fmt.Fprintf(w, "  %-12s %g\n", f, v)
		}
	}

	fmt.Fprintln(w, "\nFertilizers:")
	for _, fz := range p.Fertilizers {
		fmt.Fprintf(w, "  - %s\n", fz)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
