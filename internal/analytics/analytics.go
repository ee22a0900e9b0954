// Package analytics computes aggregate views over a token snapshot.
package analytics

import (
	"cmp"
	"slices"

	"github.com/rewired-gh/tokenpulse/internal/models"
)

// TopN is the length of each ranked list.
const TopN = 5

// Summary is the analytics panel read model.
type Summary struct {
	TopGainers  []models.Token `json:"top_gainers"`
	TopLosers   []models.Token `json:"top_losers"`
	MostActive  []models.Token `json:"most_active"`
	TotalVolume float64        `json:"total_volume"`
	AvgChange   float64        `json:"avg_change"`
}

// Summarize ranks tokens by 24h change and volume. Losers are listed worst
// first. An empty input yields zero totals and empty lists.
func Summarize(tokens []models.Token) Summary {
	if len(tokens) == 0 {
		return Summary{
			TopGainers: []models.Token{},
			TopLosers:  []models.Token{},
			MostActive: []models.Token{},
		}
	}

	byChange := slices.Clone(tokens)
	slices.SortStableFunc(byChange, func(a, b models.Token) int {
		return cmp.Compare(b.PriceChange24h, a.PriceChange24h)
	})
	gainers := slices.Clone(byChange[:min(TopN, len(byChange))])
	losers := slices.Clone(byChange[max(0, len(byChange)-TopN):])
	slices.Reverse(losers)

	byVolume := slices.Clone(tokens)
	slices.SortStableFunc(byVolume, func(a, b models.Token) int {
		return cmp.Compare(b.Volume24h, a.Volume24h)
	})

	var totalVolume, totalChange float64
	for _, t := range tokens {
		totalVolume += t.Volume24h
		totalChange += t.PriceChange24h
	}

	return Summary{
		TopGainers:  gainers,
		TopLosers:   losers,
		MostActive:  slices.Clone(byVolume[:min(TopN, len(byVolume))]),
		TotalVolume: totalVolume,
		AvgChange:   totalChange / float64(len(tokens)),
	}
}
