package upstream

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rewired-gh/tokenpulse/internal/models"
)

var mockSymbols = []string{"PEPE", "WOJAK", "DOGE", "SHIB", "FLOKI", "BONK", "BRETT", "MOG", "WIF", "POPCAT"}

// MockSource generates a randomized token collection after a fixed delay.
type MockSource struct {
	count int
	delay time.Duration

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewMockSource returns a generator of count tokens. A nil src seeds from
// the clock.
func NewMockSource(count int, delay time.Duration, src rand.Source) *MockSource {
	if count <= 0 {
		count = 30
	}
	if src == nil {
		seed := uint64(time.Now().UnixNano())
		src = rand.NewPCG(seed, seed>>1|1)
	}
	return &MockSource{count: count, delay: delay, rng: rand.New(src), now: time.Now}
}

func (m *MockSource) FetchTokens(ctx context.Context) ([]models.Token, error) {
	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, &FetchError{Source: "mock", Err: ctx.Err()}
		case <-timer.C:
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := make([]models.Token, m.count)
	for i := range out {
		base := mockSymbols[i%len(mockSymbols)]
		symbol, name := base, base+" Token"
		if i >= len(mockSymbols) {
			symbol = fmt.Sprintf("%s%d", base, i)
			name = fmt.Sprintf("%s Token %d", base, i)
		}
		out[i] = models.Token{
			ID:     fmt.Sprintf("token-%d", i),
			Symbol: symbol,
			Name:   name,
			// (0, 10] so every generated token validates
			Price:          10 * (1 - m.rng.Float64()),
			PriceChange24h: (m.rng.Float64() - 0.5) * 50,
			Volume24h:      m.rng.Float64() * 10_000_000,
			MarketCap:      m.rng.Float64() * 50_000_000,
			Liquidity:      m.rng.Float64() * 5_000_000,
			Holders:        m.rng.Int64N(10_000),
			Category:       models.Categories[i%len(models.Categories)],
			CreatedAt:      now.Add(-time.Duration(m.rng.Int64N(int64(24 * time.Hour)))),
			PriceDirection: models.DirectionNeutral,
		}
	}
	return out, nil
}
