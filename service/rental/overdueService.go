package rental

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper reclassifies rentals whose end passed without a return. A sweep is
// one conditional statement, so running it concurrently with returns and
// cancellations can never drag a settled rental back to OVERDUE, and an
// interrupted run just leaves the rest for the next tick.
type Sweeper interface {
	SweepOverdue(ctx context.Context) (int64, error)
}

type sweeper struct {
	r   Repo
	log *slog.Logger
}

func NewSweeper(r Repo, log *slog.Logger) Sweeper { return &sweeper{r: r, log: log} }

func (s *sweeper) SweepOverdue(ctx context.Context) (int64, error) {
	n, err := s.r.MarkOverdueBefore(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("overdue sweep", "marked", n)
	}
	return n, nil
}

// RunSweeper drives the sweeper on a fixed interval until ctx is cancelled.
func RunSweeper(ctx context.Context, s Sweeper, interval time.Duration, log *slog.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.SweepOverdue(ctx); err != nil {
				log.Error("overdue sweep failed", "err", err)
			}
		}
	}
}
