// Package alerts manages price alert definitions and evaluates them against live token prices.
package alerts

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/tokenpulse/internal/logger"
	"github.com/rewired-gh/tokenpulse/internal/metrics"
	"github.com/rewired-gh/tokenpulse/internal/models"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation    = errors.New("invalid alert")
	ErrAlertNotFound = errors.New("alert not found")
)

// ValidationError rejects a create request. No state is mutated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid alert: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Persister is the durable alert storage collaborator.
type Persister interface {
	Load() ([]models.PriceAlert, error)
	Save(alerts []models.PriceAlert) error
}

// CreateRequest carries user input for a new alert.
type CreateRequest struct {
	TokenID     string           `json:"token_id"`
	TokenSymbol string           `json:"token_symbol"`
	TargetPrice float64          `json:"target_price"`
	Condition   models.Condition `json:"condition"`
}

func (r CreateRequest) validate() error {
	if r.TokenID == "" {
		return &ValidationError{Field: "token_id", Reason: "is required"}
	}
	if !(r.TargetPrice > 0) || math.IsInf(r.TargetPrice, 0) {
		return &ValidationError{Field: "target_price", Reason: "must be a positive number"}
	}
	if r.Condition != "" && !r.Condition.Valid() {
		return &ValidationError{Field: "condition", Reason: "must be above or below"}
	}
	return nil
}

// Engine holds alert definitions. In-memory state is authoritative; every
// mutation is written through to the Persister on a best-effort basis.
type Engine struct {
	mu     sync.Mutex
	alerts []models.PriceAlert
	store  Persister

	now   func() time.Time
	newID func() string
}

// New loads persisted alerts. A load failure starts with an empty list.
func New(store Persister) *Engine {
	e := &Engine{
		store: store,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}

	if store != nil {
		loaded, err := store.Load()
		if err != nil {
			logger.Warn("Failed to load persisted alerts, starting empty: %v", err)
			metrics.PersistErrors.WithLabelValues("load").Inc()
			loaded = nil
		}
		e.alerts = loaded
		logger.Info("Loaded %d persisted alerts", len(e.alerts))
	}
	e.updateGauge()
	return e
}

// Create validates req and appends an enabled, untriggered alert. An empty
// condition defaults to above.
func (e *Engine) Create(req CreateRequest) (models.PriceAlert, error) {
	if err := req.validate(); err != nil {
		return models.PriceAlert{}, err
	}
	cond := req.Condition
	if cond == "" {
		cond = models.ConditionAbove
	}

	alert := models.PriceAlert{
		ID:          e.newID(),
		TokenID:     req.TokenID,
		TokenSymbol: req.TokenSymbol,
		TargetPrice: req.TargetPrice,
		Condition:   cond,
		Enabled:     true,
		Triggered:   false,
		CreatedAt:   e.now(),
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.alerts = append(e.alerts, alert)
	e.persistLocked("create")
	return alert, nil
}

// Toggle flips enabled and always clears triggered so a re-enabled alert
// can fire again.
func (e *Engine) Toggle(id string) (models.PriceAlert, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a := e.findLocked(id)
	if a == nil {
		return models.PriceAlert{}, fmt.Errorf("toggle %s: %w", id, ErrAlertNotFound)
	}
	a.Enabled = !a.Enabled
	a.Triggered = false
	out := *a
	e.persistLocked("toggle")
	return out, nil
}

// Reset clears the triggered latch and leaves enabled untouched.
func (e *Engine) Reset(id string) (models.PriceAlert, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a := e.findLocked(id)
	if a == nil {
		return models.PriceAlert{}, fmt.Errorf("reset %s: %w", id, ErrAlertNotFound)
	}
	a.Triggered = false
	out := *a
	e.persistLocked("reset")
	return out, nil
}

// Remove deletes the alert and reports whether it existed. The collection is
// persisted either way.
func (e *Engine) Remove(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	before := len(e.alerts)
	e.alerts = slices.DeleteFunc(e.alerts, func(a models.PriceAlert) bool { return a.ID == id })
	e.persistLocked("remove")
	return len(e.alerts) != before
}

// Evaluate checks every armed alert against tokens. Alerts whose token is
// absent are skipped. Each met alert latches and yields exactly one Trigger.
func (e *Engine) Evaluate(tokens []models.Token) []models.Trigger {
	byID := make(map[string]*models.Token, len(tokens))
	for i := range tokens {
		byID[tokens[i].ID] = &tokens[i]
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var triggers []models.Trigger
	for i := range e.alerts {
		a := &e.alerts[i]
		if !a.Armed() {
			continue
		}
		t, ok := byID[a.TokenID]
		if !ok {
			continue
		}
		if !a.Condition.Met(t.Price, a.TargetPrice) {
			continue
		}

		a.Triggered = true
		symbol := t.Symbol
		if symbol == "" {
			symbol = a.TokenSymbol
		}
		triggers = append(triggers, models.Trigger{
			AlertID:     a.ID,
			TokenID:     a.TokenID,
			TokenSymbol: symbol,
			Condition:   a.Condition,
			TargetPrice: a.TargetPrice,
			Price:       t.Price,
			TriggeredAt: e.now(),
		})
		metrics.AlertsTriggered.WithLabelValues(string(a.Condition)).Inc()
		logger.Info("Alert %s triggered: %s %s %.6f (price %.6f)", a.ID, symbol, a.Condition, a.TargetPrice, t.Price)
	}

	if len(triggers) > 0 {
		e.persistLocked("trigger")
	}
	return triggers
}

// List returns a copy of all alerts in creation order.
func (e *Engine) List() []models.PriceAlert {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.alerts)
}

// Get returns one alert by id.
func (e *Engine) Get(id string) (models.PriceAlert, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if a := e.findLocked(id); a != nil {
		return *a, true
	}
	return models.PriceAlert{}, false
}

func (e *Engine) findLocked(id string) *models.PriceAlert {
	for i := range e.alerts {
		if e.alerts[i].ID == id {
			return &e.alerts[i]
		}
	}
	return nil
}

// persistLocked writes the full collection. Failures are logged and
// swallowed; the in-memory state is not rolled back.
func (e *Engine) persistLocked(op string) {
	e.updateGaugeLocked()
	if e.store == nil {
		return
	}
	if err := e.store.Save(slices.Clone(e.alerts)); err != nil {
		metrics.PersistErrors.WithLabelValues(op).Inc()
		logger.Error("Failed to persist alerts after %s: %v", op, err)
	}
}

func (e *Engine) updateGauge() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updateGaugeLocked()
}

func (e *Engine) updateGaugeLocked() {
	armed := 0
	for i := range e.alerts {
		if e.alerts[i].Armed() {
			armed++
		}
	}
	metrics.AlertsActive.Set(float64(armed))
}
