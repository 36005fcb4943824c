package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// BreachScanner is the part of the workflow service the scanner drives.
type BreachScanner interface {
	ScanBreaches(ctx context.Context) (int, error)
}

// RunBreachScanner calls ScanBreaches every interval until ctx is done. A
// non-positive interval disables the scanner.
func RunBreachScanner(ctx context.Context, scanner BreachScanner, interval time.Duration, logger *zap.Logger) {
	if scanner == nil || interval <= 0 {
		logger.Info("sla breach scanner disabled")
		return
	}
	logger.Info("sla breach scanner started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("sla breach scanner stopped")
			return
		case <-ticker.C:
			scanOnce(ctx, scanner, logger)
		}
	}
}

func scanOnce(ctx context.Context, scanner BreachScanner, logger *zap.Logger) {
	start := time.Now()
	n, err := scanner.ScanBreaches(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logger.Error("sla breach scan failed", zap.Error(err), zap.Int("marked", n))
		return
	}
	logger.Debug("sla breach scan finished", zap.Int("marked", n), zap.Duration("took", time.Since(start)))
}
