package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rewired-gh/tokenpulse/internal/models"
)

const (
	DefaultAlertsKey = "price_alerts"
	TokenSnapshotKey = "token_snapshot"

	opTimeout = 5 * time.Second
)

// AlertStore persists the full alert collection as one serialized list.
type AlertStore struct {
	kv  KV
	key string
}

func NewAlertStore(kv KV, key string) *AlertStore {
	if key == "" {
		key = DefaultAlertsKey
	}
	return &AlertStore{kv: kv, key: key}
}

// Load always returns a usable list. A missing key yields an empty list and
// no error; read or parse failures yield an empty list plus the error so the
// caller can log it.
func (s *AlertStore) Load() ([]models.PriceAlert, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return []models.PriceAlert{}, nil
	}
	if err != nil {
		return []models.PriceAlert{}, err
	}

	var alerts []models.PriceAlert
	if err := json.Unmarshal(raw, &alerts); err != nil {
		return []models.PriceAlert{}, fmt.Errorf("failed to unmarshal alerts: %w", err)
	}
	if alerts == nil {
		alerts = []models.PriceAlert{}
	}
	return alerts, nil
}

// Save overwrites the stored list.
func (s *AlertStore) Save(alerts []models.PriceAlert) error {
	if alerts == nil {
		alerts = []models.PriceAlert{}
	}
	raw, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("failed to marshal alerts: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return s.kv.Set(ctx, s.key, raw)
}

// TokenCache keeps the last good token snapshot for warm starts.
type TokenCache struct {
	kv KV
}

func NewTokenCache(kv KV) *TokenCache {
	return &TokenCache{kv: kv}
}

type cachedTokens struct {
	SavedAt time.Time      `json:"saved_at"`
	Tokens  []models.Token `json:"tokens"`
}

func (c *TokenCache) Save(ctx context.Context, tokens []models.Token) error {
	raw, err := json.Marshal(cachedTokens{SavedAt: time.Now(), Tokens: tokens})
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}
	return c.kv.Set(ctx, TokenSnapshotKey, raw)
}

// Load returns the cached tokens and when they were saved. A missing
// snapshot returns ErrNotFound.
func (c *TokenCache) Load(ctx context.Context) ([]models.Token, time.Time, error) {
	raw, err := c.kv.Get(ctx, TokenSnapshotKey)
	if err != nil {
		return nil, time.Time{}, err
	}
	var cached cachedTokens
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to unmarshal tokens: %w", err)
	}
	return cached.Tokens, cached.SavedAt, nil
}
