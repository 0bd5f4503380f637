package inbound

import (
	"context"
	"log/slog"
	"time"

	"github.com/financeapp/otpgate/internal/pkg/config"
	"github.com/financeapp/otpgate/internal/pkg/goroutine"
)

// RegisterSweepJob runs the housekeeping sweep on a fixed interval until the
// parent context is canceled.
func RegisterSweepJob(ctx context.Context, cfg config.Config, routine *goroutine.Manager, uc uc) {
	interval := cfg.GetMinute("modules.otp.sweep_interval_minutes")
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	routine.Go(ctx, func(pCtx context.Context) error {
		slog.InfoContext(pCtx, "Running job for sweeping otp records", "interval", interval.String())

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-pCtx.Done():
				return nil
			case <-ticker.C:
				if err := uc.Sweep(pCtx); err != nil {
					slog.ErrorContext(pCtx, "sweep pass failed", "error", err)
				}
			}
		}
	})
}
