package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-api/internal/config"
	"github.com/spec-kit/helpdesk-api/internal/observability"
)

const (
	sweepResultOK    = "ok"
	sweepResultError = "error"
)

// BreachChecker flags overdue tickets and reports how many changed.
type BreachChecker interface {
	CheckSLABreaches(ctx context.Context) (int, error)
}

// SLASweeper runs the breach check on a cron schedule. A failed run is logged
// and the next scheduled run proceeds normally.
type SLASweeper struct {
	checker   BreachChecker
	logger    *zap.Logger
	metrics   *observability.Metrics
	cron      *cron.Cron
	schedule  string
	timeout   time.Duration
	onStartup bool

	mu      sync.Mutex
	rootCtx context.Context
	started bool
}

// NewSLASweeper builds a sweeper. Start must be called to schedule it.
func NewSLASweeper(checker BreachChecker, cfg config.SLAConfig, logger *zap.Logger, metrics *observability.Metrics) *SLASweeper {
	cronLogger := zapCronLogger{logger: logger.Sugar()}
	return &SLASweeper{
		checker:   checker,
		logger:    logger,
		metrics:   metrics,
		schedule:  cfg.SweepSchedule,
		timeout:   cfg.SweepTimeout(),
		onStartup: cfg.SweepOnStartup,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
	}
}

// Start schedules the sweep. Runs derive their context from ctx.
func (s *SLASweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { _, _ = s.RunOnce(s.parentContext()) }); err != nil {
		return fmt.Errorf("schedule sla sweep %q: %w", s.schedule, err)
	}
	s.rootCtx = ctx
	s.started = true
	s.cron.Start()
	s.logger.Info("sla sweeper started", zap.String("schedule", s.schedule))

	if s.onStartup {
		go func() { _, _ = s.RunOnce(ctx) }()
	}
	return nil
}

// Stop halts scheduling and returns a context that is done once any running
// sweep has finished.
func (s *SLASweeper) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	return s.cron.Stop()
}

// RunOnce executes a single bounded sweep.
func (s *SLASweeper) RunOnce(ctx context.Context) (flagged int, err error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sla sweep panicked: %v", r)
		}
		if err != nil {
			s.metrics.RecordSweep(sweepResultError, 0)
			s.logger.Error("sla sweep failed", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
			return
		}
		s.metrics.RecordSweep(sweepResultOK, flagged)
		s.logger.Info("sla sweep completed", zap.Int("flagged", flagged), zap.Duration("elapsed", time.Since(started)))
	}()

	return s.checker.CheckSLABreaches(ctx)
}

func (s *SLASweeper) parentContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rootCtx == nil {
		return context.Background()
	}
	return s.rootCtx
}

// zapCronLogger adapts zap to cron.Logger.
type zapCronLogger struct {
	logger *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw("cron: "+msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
