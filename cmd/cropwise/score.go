package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cropwise/cropwise/pkg/catalog"
	"github.com/cropwise/cropwise/pkg/scoring"
	"github.com/cropwise/cropwise/pkg/soil"
)

func newScoreCmd(g *globalOpts) *cobra.Command {
	var (
		sample    sampleFlags
		outputFmt string
	)

	cmd := &cobra.Command{
		Use:   "score <crop>",
		Short: "Score one crop against a soil sample",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sample.sample()
			if err != nil {
				return err
			}
			cat, err := g.cfg.Scoring.Catalog()
			if err != nil {
				return err
			}
			scorer, err := g.cfg.Scoring.Scorer(cat)
			if err != nil {
				return err
			}
			return runScore(os.Stdout, scorer, args[0], s, outputFmt)
		},
	}

	sample.register(cmd)
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text or json")
	return cmd
}

type scoreResult struct {
	Crop   string      `json:"crop"`
	Score  float64     `json:"score"`
	Rating string      `json:"rating"`
	Sample soil.Sample `json:"sample"`
}

func runScore(w io.Writer, scorer *scoring.Scorer, cropID string, s soil.Sample, outputFmt string) error {
	score, err := scorer.Score(cropID, s)
	if err != nil {
		return err
	}
	p, _ := scorer.Catalog().Lookup(cropID)

	res := scoreResult{Crop: p.ID, Score: score, Rating: scoring.Rating(score), Sample: s}
	switch outputFmt {
	case "json":
		return writeJSON(w, res)
	case "", "text":
		fmt.Fprintf(w, "%s: %.1f/100 (%s)\n", catalog.DisplayName(res.Crop), res.Score, res.Rating)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text or json)", outputFmt)
	}
}
