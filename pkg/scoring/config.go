package scoring

import (
	"fmt"

	"github.com/cropwise/cropwise/pkg/soil"
)

// Weights holds the contribution of each field's relative deviation to the
// combined distance. The defaults sum to 1.
type Weights struct {
	Nitrogen    float64 `json:"nitrogen" yaml:"nitrogen"`
	Phosphorus  float64 `json:"phosphorus" yaml:"phosphorus"`
	Potassium   float64 `json:"potassium" yaml:"potassium"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	Humidity    float64 `json:"humidity" yaml:"humidity"`
	PH          float64 `json:"ph" yaml:"ph"`
	Rainfall    float64 `json:"rainfall" yaml:"rainfall"`
}

// Of returns the weight for a field.
func (w Weights) Of(f soil.Field) float64 {
	switch f {
	case soil.Nitrogen:
		return w.Nitrogen
	case soil.Phosphorus:
		return w.Phosphorus
	case soil.Potassium:
		return w.Potassium
	case soil.Temperature:
		return w.Temperature
	case soil.Humidity:
		return w.Humidity
	case soil.PH:
		return w.PH
	case soil.Rainfall:
		return w.Rainfall
	default:
		return 0
	}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	var total float64
	for _, f := range soil.Fields() {
		total += w.Of(f)
	}
	return total
}

// WithOverrides returns a copy with the named fields replaced.
// Keys are soil field names ("nitrogen", "ph", ...); weights must not be negative.
func (w Weights) WithOverrides(overrides map[string]float64) (Weights, error) {
	for name, v := range overrides {
		f, err := soil.ParseField(name)
		if err != nil {
			return w, fmt.Errorf("weight override: %w", err)
		}
		if v < 0 {
			return w, fmt.Errorf("weight override %s: must not be negative, got %v", name, v)
		}
		switch f {
		case soil.Nitrogen:
			w.Nitrogen = v
		case soil.Phosphorus:
			w.Phosphorus = v
		case soil.Potassium:
			w.Potassium = v
		case soil.Temperature:
			w.Temperature = v
		case soil.Humidity:
			w.Humidity = v
		case soil.PH:
			w.PH = v
		case soil.Rainfall:
			w.Rainfall = v
		}
	}
	return w, nil
}
