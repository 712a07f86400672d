package service

import (
	"context"
	"log/slog"
	"time"

	"academy/internal/apperr"
	"academy/internal/metrics"
)

// TokenSweeper periodically clears expired refresh and reset tokens.
// Lookups already reject expired tokens; sweeping only keeps stale values
// out of the table.
type TokenSweeper struct {
	cleaner  ExpiredTokenCleaner
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewTokenSweeper creates a sweeper running every interval
func NewTokenSweeper(cleaner ExpiredTokenCleaner, interval time.Duration, logger *slog.Logger, m *metrics.Metrics) *TokenSweeper {
	return &TokenSweeper{
		cleaner:  cleaner,
		interval: interval,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done
func (s *TokenSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce clears expired tokens and returns how many were cleared
func (s *TokenSweeper) SweepOnce(ctx context.Context) int64 {
	cleared, err := s.cleaner.ClearExpiredTokens(ctx, s.now())
	if err != nil {
		apperr.LogError(s.logger, "failed to clear expired tokens",
			apperr.Wrap(err, apperr.CodeStoreFailure, "failed to clear expired tokens"))
		return 0
	}
	if cleared > 0 {
		s.logger.Info("cleared expired tokens", "count", cleared)
	}
	s.metrics.Swept(cleared)
	return cleared
}
