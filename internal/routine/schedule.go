// File: internal/routine/schedule.go
package routine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"campusdaily/internal/config"
)

// Watch fires the runner once per scheduled slot until the context is
// cancelled. A slot is the configured minute of each configured hour, local
// time; each slot triggers at most once per day.
func (r *Runner) Watch(ctx context.Context, cfg config.RoutineConfig, loadProfiles func() ([]config.Profile, error)) error {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	var lastFired time.Time
	r.log.Info("Watch mode started",
		zap.Ints("hours", cfg.Hours), zap.Int("minute", cfg.Minute))

	for {
		select {
		case <-ctx.Done():
			r.log.Info("Watch mode stopped")
			return ctx.Err()
		case now := <-ticker.C:
			slot, due := currentSlot(now, cfg.Hours, cfg.Minute)
			if !due || slot.Equal(lastFired) {
				continue
			}
			lastFired = slot

			profiles, err := loadProfiles()
			if err != nil {
				r.log.Error("Profile reload failed; skipping this slot", zap.Error(err))
				continue
			}
			r.log.Info("Scheduled run starting", zap.Int("profiles", len(profiles)))
			r.ProcessAll(ctx, profiles)
			r.log.Info("Scheduled run finished")
		}
	}
}

// currentSlot reports whether now falls inside a scheduled minute and, if so,
// the slot's canonical timestamp used for once-per-slot deduplication.
func currentSlot(now time.Time, hours []int, minute int) (time.Time, bool) {
	if now.Minute() != minute {
		return time.Time{}, false
	}
	for _, hour := range hours {
		if now.Hour() == hour {
			slot := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
			return slot, true
		}
	}
	return time.Time{}, false
}
