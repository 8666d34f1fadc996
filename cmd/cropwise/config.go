package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cropwise/cropwise/internal/logging"
	"github.com/cropwise/cropwise/pkg/catalog"
	"github.com/cropwise/cropwise/pkg/config"
	"github.com/cropwise/cropwise/pkg/soil"
)

// globalOpts holds the persistent flags and the config they resolve to.
type globalOpts struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func (o *globalOpts) setup() error {
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return err
	}
	o.cfg = cfg

	logging.Init(logging.Config{
		Level:     firstNonEmpty(o.logLevel, cfg.Logging.Level),
		Format:    cfg.Logging.Format,
		Timestamp: true,
		Output:    os.Stderr,
	})
	return nil
}

// loadConfig reads path, or the discovered config file when path is empty.
// A missing discovered file yields the defaults; an explicit path must parse.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
		return cfg, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return config.DefaultConfig(), nil
	}
	cfgFile := config.FindConfigFile(wd)
	if cfgFile == "" {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		return config.DefaultConfig(), nil
	}
	return cfg, nil
}

// sampleFlags binds one required flag per soil field.
type sampleFlags struct {
	values [7]float64
}

func (s *sampleFlags) register(cmd *cobra.Command) {
	for i, f := range soil.Fields() {
		cmd.Flags().Float64Var(&s.values[i], f.String(), 0, fieldUsage(f))
		_ = cmd.MarkFlagRequired(f.String())
	}
}

func (s *sampleFlags) sample() (soil.Sample, error) {
	var sample soil.Sample
	for i, f := range soil.Fields() {
		sample = sample.With(f, s.values[i])
	}
	if err := sample.Validate(); err != nil {
		return soil.Sample{}, err
	}
	return sample, nil
}

func fieldUsage(f soil.Field) string {
	switch f {
	case soil.Nitrogen, soil.Phosphorus, soil.Potassium:
		return catalog.DisplayName(f.String()) + " content (kg/ha)"
	case soil.Temperature:
		return "Average temperature (°C)"
	case soil.Humidity:
		return "Relative humidity (%)"
	case soil.PH:
		return "Soil pH (0-14)"
	case soil.Rainfall:
		return "Rainfall (mm)"
	default:
		return f.String()
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
