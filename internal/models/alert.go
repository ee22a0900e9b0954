package models

import (
	"fmt"
	"time"
)

// Condition selects which side of the target price fires an alert.
type Condition string

const (
	ConditionAbove Condition = "above"
	ConditionBelow Condition = "below"
)

// Valid reports whether c is above or below.
func (c Condition) Valid() bool {
	return c == ConditionAbove || c == ConditionBelow
}

// Met reports whether price satisfies the condition for target. Both sides
// are inclusive.
func (c Condition) Met(price, target float64) bool {
	switch c {
	case ConditionAbove:
		return price >= target
	case ConditionBelow:
		return price <= target
	}
	return false
}

// PriceAlert is a user-defined threshold on a token's price.
// TokenID is a weak reference: if the token disappears the alert goes inert.
type PriceAlert struct {
	ID          string    `json:"id"`
	TokenID     string    `json:"token_id"`
	TokenSymbol string    `json:"token_symbol,omitempty"`
	TargetPrice float64   `json:"target_price"`
	Condition   Condition `json:"condition"`
	Enabled     bool      `json:"enabled"`
	// Triggered is a one-shot latch; only Reset or Toggle clear it.
	Triggered bool      `json:"triggered"`
	CreatedAt time.Time `json:"created_at"`
}

// Armed reports whether the alert takes part in evaluation.
func (a *PriceAlert) Armed() bool {
	return a.Enabled && !a.Triggered
}

// Trigger is emitted once when an alert's condition is met.
type Trigger struct {
	AlertID     string    `json:"alert_id"`
	TokenID     string    `json:"token_id"`
	TokenSymbol string    `json:"token_symbol"`
	Condition   Condition `json:"condition"`
	TargetPrice float64   `json:"target_price"`
	Price       float64   `json:"price"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// Message renders the user-facing trigger text.
func (t Trigger) Message() string {
	return fmt.Sprintf("%s is now %s $%.2f!", t.TokenSymbol, t.Condition, t.TargetPrice)
}
