package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rewired-gh/tokenpulse/internal/logger"
	"github.com/rewired-gh/tokenpulse/internal/models"
)

// ClientConfig holds HTTP client tuning parameters.
type ClientConfig struct {
	MaxRetries     int
	RetryDelayBase time.Duration
}

// HTTPSource fetches a JSON array of tokens from a remote endpoint.
type HTTPSource struct {
	url            string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// NewHTTPSource creates a source for url.
func NewHTTPSource(url string, timeout time.Duration, cfg ClientConfig) *HTTPSource {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	return &HTTPSource{
		url:            url,
		httpClient:     &http.Client{Timeout: timeout},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
	}
}

// FetchTokens downloads and validates the token list. Invalid entries are
// dropped with a warning rather than failing the whole snapshot.
func (s *HTTPSource) FetchTokens(ctx context.Context) ([]models.Token, error) {
	resp, err := s.doRequest(ctx)
	if err != nil {
		return nil, &FetchError{Source: s.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Source: s.url, Err: fmt.Errorf("unexpected status: %d", resp.StatusCode)}
	}

	var raw []models.Token
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &FetchError{Source: s.url, Err: fmt.Errorf("failed to decode tokens: %w", err)}
	}

	tokens := make([]models.Token, 0, len(raw))
	for i := range raw {
		if err := raw[i].Validate(); err != nil {
			logger.Warn("Skipping invalid token %q: %v", raw[i].ID, err)
			continue
		}
		raw[i].PriceDirection = models.DirectionNeutral
		tokens = append(tokens, raw[i])
	}
	return tokens, nil
}

// doRequest performs the GET with linear-backoff retry on transport and 5xx
// errors.
func (s *HTTPSource) doRequest(ctx context.Context) (*http.Response, error) {
	var lastErr error
	for i := 0; i < s.maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := s.httpClient.Do(req)
		switch {
		case err != nil:
			lastErr = err
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
		default:
			return resp, nil
		}

		if i == s.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.retryDelayBase * time.Duration(i+1)):
		}
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
