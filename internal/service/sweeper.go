package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type SweeperConfig struct {
	StaleAfter time.Duration
	Interval   time.Duration
}

// Sweeper periodically cancels negotiations nobody has touched for StaleAfter.
type Sweeper struct {
	conf         SweeperConfig
	negotiations *NegotiationService
}

func NewSweeper(conf SweeperConfig, negotiations *NegotiationService) *Sweeper {
	return &Sweeper{
		conf:         conf,
		negotiations: negotiations,
	}
}

// Run blocks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if s.conf.StaleAfter <= 0 || s.conf.Interval <= 0 {
		zap.L().Info("negotiation sweeper disabled")
		return
	}

	zap.L().Info("starting negotiation sweeper",
		zap.Duration("stale_after", s.conf.StaleAfter),
		zap.Duration("interval", s.conf.Interval),
	)

	ticker := time.NewTicker(s.conf.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("stopping negotiation sweeper")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.negotiations.CancelExpired(ctx, s.conf.StaleAfter)
	if err != nil {
		zap.L().Error("negotiation sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		zap.L().Info("expired negotiations cancelled", zap.Int("count", n))
	}
}
