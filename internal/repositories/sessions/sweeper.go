package sessions

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweep calls DeleteExpired every interval until ctx is done. Lookups never
// depend on it; it only keeps the table small.
func (s *PostgresStore) Sweep(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.DeleteExpired(ctx)
			if err != nil {
				logger.Warn("session sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("expired sessions removed", zap.Int64("count", n))
			}
		}
	}
}
