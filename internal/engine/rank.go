package engine

import "sort"

// rankQuotes computes composite scores, sorts descending, and assigns dense
// 1-based ranks. The sort is stable so ties keep input order and repeated
// calls with identical inputs produce identical output.
func rankQuotes(quotes []RankedQuote, weights Weights) []RankedQuote {
	for i := range quotes {
		s := quotes[i].Scores
		composite := s.Cost*weights.Cost +
			s.Speed*weights.Speed +
			s.Reliability*weights.Reliability +
			s.Liquidity*weights.Liquidity
		quotes[i].CompositeScore = clamp(round2(composite), 0, 100)
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].CompositeScore > quotes[j].CompositeScore
	})

	for i := range quotes {
		quotes[i].Rank = i + 1
	}
	return quotes
}
