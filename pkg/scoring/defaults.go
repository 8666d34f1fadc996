package scoring

// DefaultTopN is the number of recommendations returned by a Ranker.
const DefaultTopN = 3

// DefaultWeights returns the standard field weights.
func DefaultWeights() Weights {
	return Weights{
		Nitrogen:    0.15,
		Phosphorus:  0.15,
		Potassium:   0.15,
		Temperature: 0.15,
		Humidity:    0.15,
		PH:          0.15,
		Rainfall:    0.10,
	}
}
