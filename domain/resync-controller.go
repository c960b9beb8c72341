package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
)

var (
	// ErrSnapshotTransient marks snapshot fetch failures worth retrying
	// (network errors, provider 5xx). Providers wrap with %w.
	ErrSnapshotTransient = errors.New("snapshot provider transient failure")

	// ErrResyncExhausted is fatal: the replica's correctness can no longer
	// be guaranteed and book reads must be treated as stale.
	ErrResyncExhausted = errors.New("unable to resynchronize, attempt budget exhausted")
)

// ResyncController fetches the fresh snapshot that re-baselines a stale
// replica. Transient provider failures are retried with exponential backoff
// up to a bounded attempt budget; protocol failures abort immediately.
type ResyncController struct {
	provider    SnapshotProvider
	listener    BookListener
	maxAttempts int
	backoff     *backoff.Backoff
}

func NewResyncController(provider SnapshotProvider, listener BookListener, maxAttempts int, minWait, maxWait time.Duration) *ResyncController {
	if listener == nil {
		listener = NoopListener{}
	}
	return &ResyncController{
		provider:    provider,
		listener:    listener,
		maxAttempts: maxAttempts,
		backoff: &backoff.Backoff{
			Min:    minWait,
			Max:    maxWait,
			Factor: 2,
			Jitter: true,
		},
	}
}

// FetchSnapshot requests a fresh snapshot for the symbol, retrying transient
// failures. The returned snapshot is meant to replace the old replica
// wholesale; partial state is assumed suspect.
func (c *ResyncController) FetchSnapshot(ctx context.Context, symbol *MarketSymbol) (*BookSnapshot, error) {
	c.backoff.Reset()
	c.listener.ResyncStarted()

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		snapshot, err := c.provider.OrderBookSnapshot(ctx, symbol)
		if err == nil {
			return snapshot, nil
		}
		if !errors.Is(err, ErrSnapshotTransient) {
			c.listener.ResyncFailed(err)
			return nil, err
		}

		lastErr = err
		logger.Printf("snapshot fetch for %s failed (attempt %d/%d): %s",
			symbol.String(), attempt, c.maxAttempts, err)

		if attempt == c.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			c.listener.ResyncFailed(ctx.Err())
			return nil, ctx.Err()
		case <-time.After(c.backoff.Duration()):
		}
	}

	err := fmt.Errorf("%w: %s", ErrResyncExhausted, lastErr)
	c.listener.ResyncFailed(err)
	return nil, err
}
