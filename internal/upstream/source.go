// Package upstream fetches the token collection the dashboard tracks.
package upstream

import (
	"context"
	"fmt"

	"github.com/rewired-gh/tokenpulse/internal/models"
)

// Source supplies a full token snapshot.
type Source interface {
	FetchTokens(ctx context.Context) ([]models.Token, error)
}

// FetchError wraps any failure to obtain a snapshot. It is always retryable:
// the next scheduled refresh tries again.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch tokens from %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
