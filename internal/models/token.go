// Package models defines the core domain entities: tokens, price alerts, and view settings.
package models

import (
	"errors"
	"math"
	"time"
)

// Category partitions tokens into the dashboard tabs. A token's category is
// fixed at creation.
type Category string

const (
	CategoryNewPairs     Category = "new-pairs"
	CategoryFinalStretch Category = "final-stretch"
	CategoryMigrated     Category = "migrated"
)

// Categories lists every tab in display order.
var Categories = []Category{CategoryNewPairs, CategoryFinalStretch, CategoryMigrated}

// Valid reports whether c is one of the known tabs.
func (c Category) Valid() bool {
	switch c {
	case CategoryNewPairs, CategoryFinalStretch, CategoryMigrated:
		return true
	}
	return false
}

// Direction is the transient signal derived from the most recent price update.
type Direction string

const (
	DirectionUp      Direction = "up"
	DirectionDown    Direction = "down"
	DirectionNeutral Direction = "neutral"
)

// DirectionOf compares a new price against the previous one.
func DirectionOf(oldPrice, newPrice float64) Direction {
	switch {
	case newPrice > oldPrice:
		return DirectionUp
	case newPrice < oldPrice:
		return DirectionDown
	default:
		return DirectionNeutral
	}
}

// Token represents a single tradable token shown on the dashboard.
type Token struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Name           string    `json:"name"`
	Price          float64   `json:"price"`
	PriceChange24h float64   `json:"price_change_24h"`
	Volume24h      float64   `json:"volume_24h"`
	MarketCap      float64   `json:"market_cap"`
	Liquidity      float64   `json:"liquidity"`
	Holders        int64     `json:"holders"`
	Category       Category  `json:"category"`
	CreatedAt      time.Time `json:"created_at"`

	// PriceDirection is recomputed on every price update and never treated as
	// a source of truth.
	PriceDirection Direction `json:"price_direction,omitempty"`
}

// Validate checks token field constraints.
func (t *Token) Validate() error {
	if t.ID == "" {
		return errors.New("token ID must not be empty")
	}
	if t.Symbol == "" {
		return errors.New("token symbol must not be empty")
	}
	if !(t.Price > 0) || math.IsInf(t.Price, 0) {
		return errors.New("token price must be positive")
	}
	if t.Volume24h < 0 {
		return errors.New("volume 24h must not be negative")
	}
	if t.MarketCap < 0 {
		return errors.New("market cap must not be negative")
	}
	if t.Liquidity < 0 {
		return errors.New("liquidity must not be negative")
	}
	if t.Holders < 0 {
		return errors.New("holders must not be negative")
	}
	if !t.Category.Valid() {
		return errors.New("token category must be one of new-pairs, final-stretch, migrated")
	}
	return nil
}
