// Package monitor wires the token source, the price feed, the token store
// and the alert engine into one running dashboard core.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rewired-gh/tokenpulse/internal/alerts"
	"github.com/rewired-gh/tokenpulse/internal/feed"
	"github.com/rewired-gh/tokenpulse/internal/logger"
	"github.com/rewired-gh/tokenpulse/internal/metrics"
	"github.com/rewired-gh/tokenpulse/internal/models"
	"github.com/rewired-gh/tokenpulse/internal/tokens"
	"github.com/rewired-gh/tokenpulse/internal/upstream"
)

// Notifier receives every alert trigger.
type Notifier interface {
	Notify(ctx context.Context, t models.Trigger) error
}

// StatusNotifier is told about the first refresh failure of a run and about
// recovery afterwards.
type StatusNotifier interface {
	SendError(ctx context.Context, err error) error
	SendRecovery(ctx context.Context, failureCount int) error
}

// TickObserver sees each token right after a feed update is applied.
type TickObserver func(models.Token)

// Cache keeps the last good token snapshot across restarts.
type Cache interface {
	Save(ctx context.Context, tokens []models.Token) error
	Load(ctx context.Context) ([]models.Token, time.Time, error)
}

type Config struct {
	RefreshInterval time.Duration
	// RecentTriggers bounds the in-memory trigger history.
	RecentTriggers int
}

func DefaultConfig() Config {
	return Config{
		RefreshInterval: 20 * time.Second,
		RecentTriggers:  50,
	}
}

type Monitor struct {
	store  *tokens.Store
	feed   *feed.Simulator
	alerts *alerts.Engine
	source upstream.Source
	cache  Cache
	config Config

	mu        sync.RWMutex
	notifiers []Notifier
	status    []StatusNotifier
	observers []TickObserver
	recent    []models.Trigger

	// refreshMu serializes Refresh with itself and Shutdown.
	refreshMu           sync.Mutex
	consecutiveFailures int

	ctx         context.Context
	cancel      context.CancelFunc
	dispatchWG  sync.WaitGroup
	unsubscribe func()
}

// New subscribes the monitor to the feed. cache may be nil.
func New(store *tokens.Store, sim *feed.Simulator, engine *alerts.Engine, source upstream.Source, cache Cache, config Config) *Monitor {
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = DefaultConfig().RefreshInterval
	}
	if config.RecentTriggers <= 0 {
		config.RecentTriggers = DefaultConfig().RecentTriggers
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		store:  store,
		feed:   sim,
		alerts: engine,
		source: source,
		cache:  cache,
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}
	m.unsubscribe = sim.Subscribe(m.onTick)
	return m
}

func (m *Monitor) AddNotifier(n Notifier) {
	m.mu.Lock()
	m.notifiers = append(m.notifiers, n)
	m.mu.Unlock()
}

func (m *Monitor) AddStatusNotifier(n StatusNotifier) {
	m.mu.Lock()
	m.status = append(m.status, n)
	m.mu.Unlock()
}

// AddTickObserver registers fn. It runs inside the feed tick and must not
// block or call back into Refresh.
func (m *Monitor) AddTickObserver(fn TickObserver) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

func (m *Monitor) Store() *tokens.Store   { return m.store }
func (m *Monitor) Alerts() *alerts.Engine { return m.alerts }

// RecentTriggers returns the newest triggers first.
func (m *Monitor) RecentTriggers() []models.Trigger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Trigger, len(m.recent))
	for i, t := range m.recent {
		out[len(m.recent)-1-i] = t
	}
	return out
}

// onTick applies the update, evaluates alerts on the fresh snapshot and fans
// triggers out. It runs under the feed's tick lock, so the next tick cannot
// mutate the store before evaluation finishes.
func (m *Monitor) onTick(u feed.Update) {
	if !m.store.ApplyUpdate(u.TokenID, u.Price, u.PriceChange24h) {
		return
	}
	snap := m.store.Snapshot()
	triggers := m.alerts.Evaluate(snap.Tokens)

	m.mu.RLock()
	observers := m.observers
	m.mu.RUnlock()
	if len(observers) > 0 {
		if tok, ok := m.store.Get(u.TokenID); ok {
			for _, fn := range observers {
				fn(tok)
			}
		}
	}

	if len(triggers) > 0 {
		m.dispatch(triggers)
	}
}

// dispatch records triggers and delivers them off the tick path.
func (m *Monitor) dispatch(triggers []models.Trigger) {
	m.mu.Lock()
	m.recent = append(m.recent, triggers...)
	if over := len(m.recent) - m.config.RecentTriggers; over > 0 {
		m.recent = append(m.recent[:0:0], m.recent[over:]...)
	}
	notifiers := m.notifiers
	m.mu.Unlock()

	for _, t := range triggers {
		for _, n := range notifiers {
			m.dispatchWG.Add(1)
			go func(n Notifier, t models.Trigger) {
				defer m.dispatchWG.Done()
				if err := n.Notify(m.ctx, t); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Failed to deliver trigger for alert %s: %v", t.AlertID, err)
				}
			}(n, t)
		}
	}
}

// Refresh fetches a new token collection. On failure the store keeps its
// tokens as stale data, the feed keeps running and the error is returned.
// On success the store is replaced, the snapshot cached and the feed
// restarted on the new collection.
func (m *Monitor) Refresh(ctx context.Context) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	start := time.Now()
	m.store.SetLoading(true)

	fetched, err := m.source.FetchTokens(ctx)
	if err != nil {
		m.store.SetError(err.Error())
		metrics.RefreshErrors.Inc()
		m.consecutiveFailures++
		logger.Error("Token refresh failed: %v", err)
		if m.consecutiveFailures == 1 {
			m.notifyStatus(func(n StatusNotifier) error { return n.SendError(ctx, err) })
		}
		return err
	}

	// Stop first so no tick from the old schedule lands on the new collection.
	m.feed.Stop()
	m.store.Replace(fetched)
	m.feed.Start(m.store.Snapshot().Tokens)

	if m.cache != nil {
		if err := m.cache.Save(ctx, fetched); err != nil {
			metrics.PersistErrors.WithLabelValues("token_cache").Inc()
			logger.Warn("Failed to cache token snapshot: %v", err)
		}
	}

	if m.consecutiveFailures > 0 {
		failures := m.consecutiveFailures
		m.notifyStatus(func(n StatusNotifier) error { return n.SendRecovery(ctx, failures) })
	}
	m.consecutiveFailures = 0

	logger.Info("Refreshed %d tokens in %v", len(fetched), time.Since(start))
	return nil
}

func (m *Monitor) notifyStatus(send func(StatusNotifier) error) {
	m.mu.RLock()
	status := m.status
	m.mu.RUnlock()
	for _, n := range status {
		if err := send(n); err != nil {
			logger.Warn("Failed to send status notification: %v", err)
		}
	}
}

// WarmStart seeds the store from the cached snapshot and starts the feed on
// it. The cached data is marked with an error so consumers know it is stale.
func (m *Monitor) WarmStart(ctx context.Context) bool {
	if m.cache == nil {
		return false
	}
	cached, savedAt, err := m.cache.Load(ctx)
	if err != nil || len(cached) == 0 {
		logger.Debug("No cached token snapshot available: %v", err)
		return false
	}

	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()
	m.feed.Stop()
	m.store.Replace(cached)
	m.store.SetError("showing cached tokens from " + savedAt.Format(time.RFC3339))
	m.feed.Start(m.store.Snapshot().Tokens)
	logger.Info("Warm start from %d cached tokens saved at %s", len(cached), savedAt.Format(time.RFC3339))
	return true
}

// Run performs the initial refresh, falling back to the cache when it fails,
// then refreshes every RefreshInterval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	if err := m.Refresh(ctx); err != nil {
		m.WarmStart(ctx)
	}

	ticker := time.NewTicker(m.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Monitor stopped")
			return
		case <-ticker.C:
			logger.Debug("Starting scheduled token refresh")
			_ = m.Refresh(ctx)
		}
	}
}

// Shutdown stops the feed and waits for in-flight notifications.
func (m *Monitor) Shutdown() {
	m.refreshMu.Lock()
	m.feed.Stop()
	m.refreshMu.Unlock()

	m.unsubscribe()
	m.cancel()
	m.dispatchWG.Wait()
	logger.Info("Monitor shut down")
}
