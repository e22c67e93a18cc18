package engine

// Direction selects how raw values map to scores.
type Direction int

const (
	// Ascending scores higher raw values higher (liquidity, reliability).
	Ascending Direction = iota
	// Descending scores lower raw values higher (fee cost, transfer time).
	Descending
)

// Normalize rescales raw values onto [0,100] across the current batch only.
// When every value ties (max == min) each score is 100 by definition.
func Normalize(values []float64, dir Direction) []float64 {
	if len(values) == 0 {
		return nil
	}

	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	scores := make([]float64, len(values))
	if max == min {
		for i := range scores {
			scores[i] = 100
		}
		return scores
	}

	span := max - min
	for i, v := range values {
		var s float64
		if dir == Ascending {
			s = 100 * (v - min) / span
		} else {
			s = 100 * (max - v) / span
		}
		scores[i] = clamp(s, 0, 100)
	}
	return scores
}

// CombineReliability folds the failure-rate penalty into a base reliability
// score before normalization.
func CombineReliability(score, failureRate float64) float64 {
	return score * (1 - clamp(failureRate, 0, 1))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
