// Package feed simulates a live per-token price feed and fans ticks out to listeners.
package feed

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rewired-gh/tokenpulse/internal/metrics"
	"github.com/rewired-gh/tokenpulse/internal/models"
)

// Update is one simulated price tick for a single token.
type Update struct {
	TokenID        string  `json:"token_id"`
	Price          float64 `json:"price"`
	PriceChange24h float64 `json:"price_change_24h"`
}

// Listener receives every tick. It runs synchronously inside the tick and
// must not call Start or Stop on the same simulator.
type Listener func(Update)

// Config controls tick cadence and volatility.
type Config struct {
	MinInterval time.Duration
	MaxInterval time.Duration
	// MaxPriceMove bounds the multiplicative move per tick, drawn from [-m, +m).
	MaxPriceMove float64
	// MaxChangeDrift bounds the additive 24h change drift per tick in
	// percentage points. The drift is unclamped; 0 disables it.
	MaxChangeDrift float64
}

func DefaultConfig() Config {
	return Config{
		MinInterval:    time.Second,
		MaxInterval:    2 * time.Second,
		MaxPriceMove:   0.05,
		MaxChangeDrift: 1.0,
	}
}

type tokenState struct {
	id       string
	price    float64
	change   float64
	interval time.Duration
}

// run is one Start generation.
type run struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
	states map[string]*tokenState
}

// Simulator owns per-token tick schedules. The zero value is not usable;
// construct with New.
type Simulator struct {
	cfg Config

	// mu serializes ticks with Start and Stop and guards rng, gen and cur.
	mu  sync.Mutex
	rng *rand.Rand
	gen uint64
	cur *run

	lmu       sync.RWMutex
	listeners map[uint64]Listener
	nextID    uint64
}

// New creates a simulator. A nil src seeds from the clock.
func New(cfg Config, src rand.Source) *Simulator {
	if src == nil {
		now := uint64(time.Now().UnixNano())
		src = rand.NewPCG(now, now>>1|1)
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultConfig().MinInterval
	}
	if cfg.MaxInterval < cfg.MinInterval {
		cfg.MaxInterval = cfg.MinInterval
	}
	return &Simulator{
		cfg:       cfg,
		rng:       rand.New(src),
		listeners: make(map[uint64]Listener),
	}
}

// Subscribe registers l and returns a function that removes it.
func (s *Simulator) Subscribe(l Listener) (unsubscribe func()) {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lmu.Lock()
			delete(s.listeners, id)
			s.lmu.Unlock()
		})
	}
}

// Start schedules one independent tick loop per token, replacing any
// previous schedule. Each token keeps its drawn interval until the next
// Start or Stop.
func (s *Simulator) Start(tokens []models.Token) {
	s.mu.Lock()
	prev := s.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{cancel: cancel, states: make(map[string]*tokenState, len(tokens))}
	gen := s.gen
	for _, t := range tokens {
		if _, dup := r.states[t.ID]; dup {
			continue
		}
		st := &tokenState{
			id:       t.ID,
			price:    t.Price,
			change:   t.PriceChange24h,
			interval: s.drawInterval(),
		}
		r.states[t.ID] = st
		r.wg.Add(1)
		go s.loop(ctx, gen, st, &r.wg)
	}
	s.cur = r
	metrics.FeedScheduled.Set(float64(len(r.states)))
	s.mu.Unlock()

	if prev != nil {
		prev.wg.Wait()
	}
}

// Stop cancels every schedule. It is idempotent, and no tick is delivered
// after it returns.
func (s *Simulator) Stop() {
	s.mu.Lock()
	prev := s.stopLocked()
	s.mu.Unlock()

	if prev != nil {
		prev.wg.Wait()
	}
}

// Scheduled reports how many tokens currently have a tick loop.
func (s *Simulator) Scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return 0
	}
	return len(s.cur.states)
}

func (s *Simulator) stopLocked() *run {
	r := s.cur
	if r == nil {
		return nil
	}
	// Bumping gen under mu invalidates ticks already waiting on the lock.
	s.gen++
	r.cancel()
	s.cur = nil
	metrics.FeedScheduled.Set(0)
	return r
}

func (s *Simulator) loop(ctx context.Context, gen uint64, st *tokenState, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(st.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(gen, st)
		}
	}
}

func (s *Simulator) tick(gen uint64, st *tokenState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}

	st.price *= 1 + s.uniform(s.cfg.MaxPriceMove)
	st.change += s.uniform(s.cfg.MaxChangeDrift)
	u := Update{TokenID: st.id, Price: st.price, PriceChange24h: st.change}

	metrics.FeedTicks.Inc()
	for _, l := range s.snapshotListeners() {
		l(u)
	}
}

func (s *Simulator) snapshotListeners() []Listener {
	s.lmu.RLock()
	defer s.lmu.RUnlock()
	out := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		out = append(out, l)
	}
	return out
}

// uniform draws from [-bound, +bound).
func (s *Simulator) uniform(bound float64) float64 {
	if bound == 0 {
		return 0
	}
	return (s.rng.Float64()*2 - 1) * bound
}

func (s *Simulator) drawInterval() time.Duration {
	span := s.cfg.MaxInterval - s.cfg.MinInterval
	if span <= 0 {
		return s.cfg.MinInterval
	}
	return s.cfg.MinInterval + time.Duration(s.rng.Int64N(int64(span)))
}
