package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sergheiganenco/cwic-platform-sub018/pkg/apperrors"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/retry"
)

// RefreshScheduler runs the materializer and impact rebuild as one background
// job, on a cron schedule and on demand. At most one refresh runs at a time;
// edge writes are never blocked by a refresh in flight.
type RefreshScheduler struct {
	materializer PathMaterializer
	aggregator   ImpactAggregator
	logger       *zap.Logger

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

// NewRefreshScheduler creates a new RefreshScheduler.
func NewRefreshScheduler(materializer PathMaterializer, aggregator ImpactAggregator, logger *zap.Logger) *RefreshScheduler {
	return &RefreshScheduler{
		materializer: materializer,
		aggregator:   aggregator,
		logger:       logger.Named("refresh-scheduler"),
	}
}

// Start registers the cron schedule and begins background refreshes. An empty
// schedule disables the background job; RefreshNow still works.
func (s *RefreshScheduler) Start(schedule string) error {
	if schedule == "" {
		s.logger.Info("Scheduled lineage refresh disabled")
		return nil
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := s.RefreshNow(ctx); err != nil {
			if errors.Is(err, apperrors.ErrConflict) {
				s.logger.Info("Previous lineage refresh still running, skipping scheduled run")
				return
			}
			s.logger.Error("Scheduled lineage refresh failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Scheduled lineage refresh started", zap.String("schedule", schedule))
	return nil
}

// Stop halts the background schedule, waiting for an in-flight run.
func (s *RefreshScheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// RefreshNow rebuilds paths and impact summaries concurrently, retrying
// transient failures. An overlapping call fails with apperrors.ErrConflict;
// the refresh already underway will produce the same result.
func (s *RefreshScheduler) RefreshNow(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("lineage refresh already in progress: %w", apperrors.ErrConflict)
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return retry.DoIfRetryable(gctx, nil, func() error {
			_, err := s.materializer.Refresh(gctx)
			return err
		})
	})
	g.Go(func() error {
		return retry.DoIfRetryable(gctx, nil, func() error {
			return s.aggregator.Rebuild(gctx)
		})
	})
	return g.Wait()
}
