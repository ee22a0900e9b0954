// Package tokens holds the canonical in-memory token collection and applies feed updates to it.
package tokens

import (
	"sync"

	"github.com/rewired-gh/tokenpulse/internal/logger"
	"github.com/rewired-gh/tokenpulse/internal/metrics"
	"github.com/rewired-gh/tokenpulse/internal/models"
)

// Snapshot is a consistent point-in-time copy of the store. Callers own it.
type Snapshot struct {
	Tokens  []models.Token `json:"tokens"`
	Version uint64         `json:"version"`
	Loading bool           `json:"loading"`
	Error   string         `json:"error,omitempty"`
}

// Store is the single writer for token state. Reads go through Snapshot.
type Store struct {
	mu      sync.RWMutex
	tokens  []models.Token
	index   map[string]int
	version uint64
	loading bool
	err     string
}

func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// Replace swaps in a fresh collection and clears the loading and error flags.
// Incoming directions are reset to neutral since no delta has been observed.
// Repeated ids keep their first occurrence.
func (s *Store) Replace(tokens []models.Token) {
	next := make([]models.Token, 0, len(tokens))
	index := make(map[string]int, len(tokens))
	for _, t := range tokens {
		if _, dup := index[t.ID]; dup {
			logger.Warn("Dropping duplicate token id %q (%s)", t.ID, t.Symbol)
			continue
		}
		t.PriceDirection = models.DirectionNeutral
		index[t.ID] = len(next)
		next = append(next, t)
	}

	s.mu.Lock()
	s.tokens = next
	s.index = index
	s.loading = false
	s.err = ""
	s.version++
	s.mu.Unlock()

	metrics.TokensTracked.Set(float64(len(next)))
}

// ApplyUpdate sets price, 24h change and the derived direction for id.
// Unknown ids are ignored and report false.
func (s *Store) ApplyUpdate(id string, price, change24h float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		metrics.UpdatesIgnored.Inc()
		return false
	}
	t := &s.tokens[i]
	t.PriceDirection = models.DirectionOf(t.Price, price)
	t.Price = price
	t.PriceChange24h = change24h
	s.version++
	return true
}

// SetLoading marks an upstream fetch in flight.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.version++
	s.mu.Unlock()
}

// SetError records a retryable upstream failure and clears loading. The
// existing tokens are kept as stale data.
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	s.err = msg
	s.loading = false
	s.version++
	s.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Token, len(s.tokens))
	copy(out, s.tokens)
	return Snapshot{
		Tokens:  out,
		Version: s.version,
		Loading: s.loading,
		Error:   s.err,
	}
}

// Get returns a copy of one token.
func (s *Store) Get(id string) (models.Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return models.Token{}, false
	}
	return s.tokens[i], true
}

// Len reports the number of tokens held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// Version increases on every mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
