// Package view derives the filtered and sorted token views shown on the dashboard.
package view

import (
	"slices"
	"strings"

	"github.com/rewired-gh/tokenpulse/internal/models"
)

// Filter returns the tokens that satisfy every criterion, in input order.
func Filter(tokens []models.Token, c models.FilterCriteria) []models.Token {
	query := strings.ToLower(c.SearchQuery)
	out := make([]models.Token, 0, len(tokens))
	for _, t := range tokens {
		if query != "" &&
			!strings.Contains(strings.ToLower(t.Symbol), query) &&
			!strings.Contains(strings.ToLower(t.Name), query) {
			continue
		}
		if !c.PriceRange.Contains(t.Price) {
			continue
		}
		if !c.VolumeRange.Contains(t.Volume24h) {
			continue
		}
		if !c.ChangeRange.Contains(t.PriceChange24h) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Sort keeps only the tokens in tab and orders them by spec. The sort is
// stable, so ties keep their input order.
func Sort(tokens []models.Token, tab models.Category, spec models.SortSpec) []models.Token {
	out := make([]models.Token, 0, len(tokens))
	for _, t := range tokens {
		if t.Category == tab {
			out = append(out, t)
		}
	}

	slices.SortStableFunc(out, func(a, b models.Token) int {
		av, aok := spec.Field.Value(&a)
		bv, bok := spec.Field.Value(&b)
		if !aok || !bok {
			return 0
		}
		if spec.Direction == models.Ascending {
			return compare(av, bv)
		}
		return compare(bv, av)
	})
	return out
}

func compare(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// CountByCategory counts tokens per tab.
func CountByCategory(tokens []models.Token) map[models.Category]int {
	counts := make(map[models.Category]int, len(models.Categories))
	for _, c := range models.Categories {
		counts[c] = 0
	}
	for _, t := range tokens {
		counts[t.Category]++
	}
	return counts
}
