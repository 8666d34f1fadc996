package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cropwise/cropwise/pkg/predict"
	"github.com/cropwise/cropwise/pkg/surface"
)

func newRecommendCmd(g *globalOpts) *cobra.Command {
	var (
		sample    sampleFlags
		remote    bool
		topN      int
		outputFmt string
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend the crops best suited to a soil sample",
		Long: `Scores every crop in the catalog against the sample and prints the top
matches. With --remote the prediction service is tried first and the local
model is used if it fails.`,
		Example: `  cropwise recommend --nitrogen 80 --phosphorus 40 --potassium 40 \
    --temperature 25 --humidity 80 --ph 6.5 --rainfall 200`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecommend(cmd.Context(), g, recommendOpts{
				sample:    sample,
				remote:    remote || g.cfg.Remote.Enabled,
				topN:      topN,
				outputFmt: outputFmt,
			})
		},
	}

	sample.register(cmd)
	cmd.Flags().BoolVar(&remote, "remote", false, "Try the remote prediction service first")
	cmd.Flags().IntVar(&topN, "top", 0, "Number of crops to show (default from config, 3)")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text, json or markdown")

	return cmd
}

type recommendOpts struct {
	sample    sampleFlags
	remote    bool
	topN      int
	outputFmt string
}

func runRecommend(ctx context.Context, g *globalOpts, opts recommendOpts) error {
	r, err := surface.ForFormat(opts.outputFmt)
	if err != nil {
		return err
	}
	sample, err := opts.sample.sample()
	if err != nil {
		return err
	}

	cfg := *g.cfg
	if opts.topN > 0 {
		cfg.Scoring.TopN = opts.topN
	}
	cfg.Remote.Enabled = opts.remote

	adapter, err := cfg.Adapter()
	if err != nil {
		return fmt.Errorf("building recommender: %w", err)
	}

	var res predict.Result
	if adapter.RemoteEnabled() {
		fmt.Fprintf(os.Stderr, "Querying %s...\n", cfg.Remote.URL)
		res = adapter.Recommend(ctx, sample)
		if res.FallbackReason != "" {
			fmt.Fprintf(os.Stderr, "  Remote unavailable (%s), using local model\n", res.FallbackReason)
		}
	} else {
		res = adapter.Local(sample)
	}

	return r.RenderRecommendations(os.Stdout, &surface.RecommendationReport{Sample: sample, Result: res})
}
