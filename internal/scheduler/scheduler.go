package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ReviewCast/internal/domain/errs"
	"ReviewCast/internal/domain/models"
	applogger "ReviewCast/pkg/logger"

	"github.com/robfig/cron/v3"
)

// RiskRunner is the slice of the pipeline the scheduler drives.
type RiskRunner interface {
	Products(ctx context.Context) ([]string, error)
	Risk(ctx context.Context, productID string) (models.RiskAssessment, error)
}

// TickReport summarizes one risk sweep.
type TickReport struct {
	Products int
	Assessed int
	Skipped  int
	Failed   int
}

// Scheduler re-evaluates product risk on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	runner  RiskRunner
	timeout time.Duration
	l       *applogger.Logger
}

// New creates a scheduler using a six-field (seconds) cron parser.
func New(runner RiskRunner, timeout time.Duration, l *applogger.Logger) *Scheduler {
	if l == nil {
		l = applogger.NewNop()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		runner:  runner,
		timeout: timeout,
		l:       l,
	}
}

// Register adds the risk sweep under spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() { s.RunRiskNow(context.Background()) }); err != nil {
		return fmt.Errorf("register risk task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.l.Info("scheduler started", applogger.Int("jobs", len(s.cron.Entries())))
}

// Stop stops the scheduler and waits for a running sweep until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.l.Info("scheduler stopped")
	case <-ctx.Done():
		s.l.Warn("scheduler stop timed out", applogger.Error(ctx.Err()))
	}
}

// RunRiskNow runs one sweep over every stored product. Per-product failures
// are logged and counted; the sweep always visits every product.
func (s *Scheduler) RunRiskNow(parent context.Context) TickReport {
	ctx := parent
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, s.timeout)
		defer cancel()
	}

	var rep TickReport
	ids, err := s.runner.Products(ctx)
	if err != nil {
		s.l.Error("risk sweep: list products", applogger.Error(err))
		return rep
	}
	rep.Products = len(ids)

	for _, id := range ids {
		if ctx.Err() != nil {
			rep.Skipped += rep.Products - rep.Assessed - rep.Skipped - rep.Failed
			s.l.Warn("risk sweep cut short", applogger.Error(ctx.Err()))
			break
		}
		ra, err := s.runner.Risk(ctx, id)
		switch {
		case errors.Is(err, errs.ErrNotFound):
			rep.Skipped++
		case err != nil:
			rep.Failed++
			s.l.Warn("risk sweep: product failed", applogger.String("product_id", id), applogger.Error(err))
		default:
			rep.Assessed++
			s.l.Debug("risk assessed",
				applogger.String("product_id", id),
				applogger.Any("score", ra.RiskScore),
				applogger.String("level", string(ra.RiskLevel)),
			)
		}
	}

	s.l.Info("risk sweep done",
		applogger.Int("products", rep.Products),
		applogger.Int("assessed", rep.Assessed),
		applogger.Int("skipped", rep.Skipped),
		applogger.Int("failed", rep.Failed),
	)
	return rep
}
