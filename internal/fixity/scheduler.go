package fixity

import (
	"context"
	"time"
)

// StartScheduler launches the background goroutine that triggers a
// weekly (or config-overridden) random_sample fixity pass, and an
// immediate startup check when checkOnStartup is set (spec.md §4.8:
// "A light scheduler triggers a random_sample weekly by default").
// sampleSize bounds each scheduled pass. It returns immediately; the
// background goroutine it starts exits once ctx is cancelled, mirroring
// the jobqueue worker pool's own ctx-driven goroutine shape.
func (s *Service) StartScheduler(ctx context.Context, sampleSize int) {
	if s.checkOnStartup {
		go s.runAndLog(ctx, RandomSampleScope(sampleSize), "scheduler:startup")
	}

	interval := time.Duration(s.intervalDays) * 24 * time.Hour
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.runAndLog(ctx, RandomSampleScope(sampleSize), "scheduler:interval")
			}
		}
	}()
}

func (s *Service) runAndLog(ctx context.Context, scope Scope, checkedBy string) {
	summary, err := s.Run(ctx, scope, checkedBy)
	if err != nil {
		s.log.WithError(err).Warn("scheduled fixity run failed")
		return
	}
	s.log.WithField("checked", summary.Checked).
		WithField("valid", summary.Valid).
		WithField("corrupted", summary.Corrupted).
		WithField("missing", summary.Missing).
		WithField("errors", summary.Errors).
		Info("fixity run complete")
}
