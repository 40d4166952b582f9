package ticker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RefreshFunc rebuilds one cached view
type RefreshFunc func(ctx context.Context) error

// Ticker periodically runs a refresh so cached views stay warm between requests
type Ticker struct {
	refresh  RefreshFunc
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewTicker creates a new Ticker. Each run is bounded by timeout.
func NewTicker(refresh RefreshFunc, interval, timeout time.Duration, logger zerolog.Logger) *Ticker {
	return &Ticker{
		refresh:  refresh,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With().Str("component", "ticker").Logger(),
	}
}

// Start refreshes once immediately and then on every tick until ctx is done
func (t *Ticker) Start(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info().Dur("interval", t.interval).Msg("ticker started")
	t.run(ctx)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info().Msg("ticker stopped")
			return

		case <-ticker.C:
			t.run(ctx)
		}
	}
}

func (t *Ticker) run(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	if err := t.refresh(runCtx); err != nil {
		t.logger.Warn().Err(err).Msg("refresh failed")
		return
	}
	t.logger.Debug().Dur("took", time.Since(start)).Msg("refreshed")
}
