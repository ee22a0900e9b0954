package feed

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/tokenpulse/internal/models"
)

func fastConfig() Config {
	return Config{
		MinInterval:    2 * time.Millisecond,
		MaxInterval:    5 * time.Millisecond,
		MaxPriceMove:   0.05,
		MaxChangeDrift: 1.0,
	}
}

func slowConfig() Config {
	return Config{
		MinInterval:    time.Hour,
		MaxInterval:    2 * time.Hour,
		MaxPriceMove:   0.05,
		MaxChangeDrift: 1.0,
	}
}

func testTokens(n int) []models.Token {
	tokens := make([]models.Token, n)
	for i := range tokens {
		tokens[i] = models.Token{
			ID:             fmt.Sprintf("token-%d", i),
			Symbol:         fmt.Sprintf("T%d", i),
			Price:          float64(i + 1),
			PriceChange24h: 0,
			Category:       models.CategoryNewPairs,
		}
	}
	return tokens
}

func TestSimulator_DeliversTicksToAllListeners(t *testing.T) {
	s := New(fastConfig(), rand.NewPCG(1, 2))
	defer s.Stop()

	var mu sync.Mutex
	seenA := make(map[string]bool)
	seenB := make(map[string]bool)
	s.Subscribe(func(u Update) {
		mu.Lock()
		seenA[u.TokenID] = true
		mu.Unlock()
	})
	s.Subscribe(func(u Update) {
		mu.Lock()
		seenB[u.TokenID] = true
		mu.Unlock()
	})

	s.Start(testTokens(3))
	assert.Equal(t, 3, s.Scheduled())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seenA) == 3 && len(seenB) == 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSimulator_StopIsIdempotent(t *testing.T) {
	s := New(fastConfig(), nil)

	s.Stop()
	assert.Equal(t, 0, s.Scheduled())

	s.Start(testTokens(4))
	s.Stop()
	s.Stop()
	assert.Equal(t, 0, s.Scheduled())
}

func TestSimulator_NoTickAfterStop(t *testing.T) {
	s := New(fastConfig(), nil)

	var count atomic.Int64
	s.Subscribe(func(Update) { count.Add(1) })

	s.Start(testTokens(5))
	require.Eventually(t, func() bool { return count.Load() > 0 }, 2*time.Second, time.Millisecond)

	s.Stop()
	after := count.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, count.Load(), "tick delivered after Stop returned")
}

func TestSimulator_StartReplacesSchedule(t *testing.T) {
	s := New(slowConfig(), nil)
	defer s.Stop()

	s.Start(testTokens(5))
	assert.Equal(t, 5, s.Scheduled())

	s.Start(testTokens(2))
	assert.Equal(t, 2, s.Scheduled())
}

func TestSimulator_EmptyInputSchedulesNothing(t *testing.T) {
	s := New(fastConfig(), nil)
	defer s.Stop()

	s.Start(nil)
	assert.Equal(t, 0, s.Scheduled())
}

func TestSimulator_DuplicateIDsScheduledOnce(t *testing.T) {
	s := New(slowConfig(), nil)
	defer s.Stop()

	tokens := testTokens(2)
	tokens = append(tokens, tokens[0])
	s.Start(tokens)
	assert.Equal(t, 2, s.Scheduled())
}

func TestSimulator_UnsubscribeStopsDelivery(t *testing.T) {
	s := New(slowConfig(), rand.NewPCG(3, 4))
	defer s.Stop()

	var count int
	unsubscribe := s.Subscribe(func(Update) { count++ })
	s.Start(testTokens(1))

	st := s.cur.states["token-0"]
	s.tick(s.gen, st)
	unsubscribe()
	unsubscribe()
	s.tick(s.gen, st)

	assert.Equal(t, 1, count)
}

func TestSimulator_TickChainsFromLastPrice(t *testing.T) {
	s := New(slowConfig(), rand.NewPCG(42, 7))
	defer s.Stop()

	var updates []Update
	s.Subscribe(func(u Update) { updates = append(updates, u) })

	tokens := testTokens(1)
	tokens[0].Price = 100
	tokens[0].PriceChange24h = 12.5
	s.Start(tokens)

	st := s.cur.states["token-0"]
	for i := 0; i < 50; i++ {
		s.tick(s.gen, st)
	}
	require.Len(t, updates, 50)

	prevPrice, prevChange := 100.0, 12.5
	for _, u := range updates {
		ratio := u.Price / prevPrice
		assert.GreaterOrEqual(t, ratio, 0.95)
		assert.Less(t, ratio, 1.05)

		drift := u.PriceChange24h - prevChange
		assert.GreaterOrEqual(t, drift, -1.0)
		assert.Less(t, drift, 1.0)

		prevPrice, prevChange = u.Price, u.PriceChange24h
	}
}

func TestSimulator_DriftDisabled(t *testing.T) {
	cfg := slowConfig()
	cfg.MaxChangeDrift = 0
	s := New(cfg, rand.NewPCG(5, 6))
	defer s.Stop()

	var last Update
	s.Subscribe(func(u Update) { last = u })

	tokens := testTokens(1)
	tokens[0].PriceChange24h = -3
	s.Start(tokens)
	st := s.cur.states["token-0"]
	for i := 0; i < 10; i++ {
		s.tick(s.gen, st)
	}
	assert.Equal(t, -3.0, last.PriceChange24h)
}

func TestSimulator_StaleGenerationIgnored(t *testing.T) {
	s := New(slowConfig(), nil)

	var count int
	s.Subscribe(func(Update) { count++ })
	s.Start(testTokens(1))
	st := s.cur.states["token-0"]
	gen := s.gen
	s.Stop()

	s.tick(gen, st)
	assert.Zero(t, count)
}

func TestSimulator_IntervalsWithinBounds(t *testing.T) {
	cfg := slowConfig()
	s := New(cfg, rand.NewPCG(9, 9))
	defer s.Stop()

	s.Start(testTokens(20))
	for _, st := range s.cur.states {
		assert.GreaterOrEqual(t, st.interval, cfg.MinInterval)
		assert.Less(t, st.interval, cfg.MaxInterval)
	}
}
