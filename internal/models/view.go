package models

// Range bounds a numeric field. A nil bound imposes no constraint on that
// side. Min and Max are independent; Min > Max is allowed and matches nothing.
type Range struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// Between builds a range with both bounds set.
func Between(lo, hi float64) Range {
	return Range{Min: &lo, Max: &hi}
}

// AtLeast builds a range with only a lower bound.
func AtLeast(lo float64) Range {
	return Range{Min: &lo}
}

// AtMost builds a range with only an upper bound.
func AtMost(hi float64) Range {
	return Range{Max: &hi}
}

// Contains reports whether v lies inside the inclusive range.
func (r Range) Contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// IsZero reports whether the range is unbounded on both sides.
func (r Range) IsZero() bool {
	return r.Min == nil && r.Max == nil
}

// FilterCriteria narrows the token collection.
type FilterCriteria struct {
	SearchQuery string `json:"search_query"`
	PriceRange  Range  `json:"price_range"`
	VolumeRange Range  `json:"volume_range"`
	ChangeRange Range  `json:"change_range"`
}

// IsZero reports whether the criteria match every token.
func (c FilterCriteria) IsZero() bool {
	return c.SearchQuery == "" && c.PriceRange.IsZero() && c.VolumeRange.IsZero() && c.ChangeRange.IsZero()
}

// SortField names the numeric column used for ordering.
type SortField string

const (
	SortByPrice          SortField = "price"
	SortByVolume         SortField = "volume"
	SortByPriceChange24h SortField = "priceChange24h"
	SortByMarketCap      SortField = "marketCap"
)

// SortFields lists the sortable columns in display order.
var SortFields = []SortField{SortByPrice, SortByVolume, SortByPriceChange24h, SortByMarketCap}

// Valid reports whether f is one of SortFields.
func (f SortField) Valid() bool {
	_, ok := f.Value(&Token{})
	return ok
}

// Value extracts the field from t. ok is false for unknown fields.
func (f SortField) Value(t *Token) (v float64, ok bool) {
	switch f {
	case SortByPrice:
		return t.Price, true
	case SortByVolume:
		return t.Volume24h, true
	case SortByPriceChange24h:
		return t.PriceChange24h, true
	case SortByMarketCap:
		return t.MarketCap, true
	}
	return 0, false
}

type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

// SortSpec orders a tab's tokens.
type SortSpec struct {
	Field     SortField     `json:"field"`
	Direction SortDirection `json:"direction"`
}

// DefaultSortSpec orders by volume, highest first.
func DefaultSortSpec() SortSpec {
	return SortSpec{Field: SortByVolume, Direction: Descending}
}

// Toggle flips the direction when field is already selected, otherwise it
// selects field in descending order.
func (s SortSpec) Toggle(field SortField) SortSpec {
	if s.Field == field {
		if s.Direction == Ascending {
			s.Direction = Descending
		} else {
			s.Direction = Ascending
		}
		return s
	}
	return SortSpec{Field: field, Direction: Descending}
}
