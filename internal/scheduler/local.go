package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"servicehealth/internal/types"
)

// SweepRunner executes one sweep.
type SweepRunner func(ctx context.Context, kind types.SweepKind) error

// Schedule binds a sweep to a cron expression. Five- and six-field
// (with seconds) expressions and descriptors like @every 5m are accepted.
type Schedule struct {
	Sweep types.SweepKind
	Cron  string
}

// LocalScheduler runs sweeps on cron schedules inside a long-lived process.
// A sweep that is still running when its next tick fires is skipped.
type LocalScheduler struct {
	run    SweepRunner
	logger types.Logger
	parser cron.Parser

	mu      sync.Mutex
	c       *cron.Cron
	loc     *time.Location
	entries map[types.SweepKind]cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewLocalScheduler creates a scheduler evaluating expressions in the named
// timezone. An empty timezone means UTC.
func NewLocalScheduler(run SweepRunner, timezone string, logger types.Logger) (*LocalScheduler, error) {
	loc := time.UTC
	if tz := strings.TrimSpace(timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeConfigurationMissing, fmt.Sprintf("invalid schedule timezone %q", tz), err)
		}
		loc = l
	}

	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &LocalScheduler{
		run:     run,
		logger:  logger,
		parser:  parser,
		loc:     loc,
		c:       cron.New(cron.WithParser(parser), cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		entries: make(map[types.SweepKind]cron.EntryID),
	}, nil
}

// Add registers schedules. It fails on the first invalid sweep or
// expression without registering the rest.
func (s *LocalScheduler) Add(schedules ...Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sc := range schedules {
		if err := ValidateSweep(sc.Sweep); err != nil {
			return err
		}
		if _, err := s.parser.Parse(sc.Cron); err != nil {
			return types.NewAppError(types.ErrCodeConfigurationMissing, fmt.Sprintf("invalid %s schedule %q", sc.Sweep, sc.Cron), err)
		}
	}
	for _, sc := range schedules {
		if id, ok := s.entries[sc.Sweep]; ok {
			s.c.Remove(id)
		}
		kind := sc.Sweep
		id, err := s.c.AddFunc(sc.Cron, func() { s.fire(kind) })
		if err != nil {
			return fmt.Errorf("scheduler: add %s: %w", kind, err)
		}
		s.entries[kind] = id
	}
	return nil
}

// Start begins firing schedules. Sweeps run with a context derived from
// ctx, canceled by Stop.
func (s *LocalScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.c.Start()
	s.logger.Info("scheduler started", "timezone", s.loc.String(), "schedules", len(s.entries))
}

// Stop halts scheduling and waits for running sweeps or ctx, whichever
// comes first.
func (s *LocalScheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}

	done := s.c.Stop().Done()
	cancel()
	select {
	case <-done:
		s.logger.Info("scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out", "error", ctx.Err().Error())
	}
}

// Next returns the next activation of a sweep, or the zero time when it
// is not scheduled or the scheduler is not running.
func (s *LocalScheduler) Next(kind types.SweepKind) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.entries[kind]
	if !ok {
		return time.Time{}
	}
	return s.c.Entry(id).Next
}

func (s *LocalScheduler) fire(kind types.SweepKind) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	s.runSweep(ctx, kind)
}

// runSweep executes one sweep and logs its outcome.
func (s *LocalScheduler) runSweep(ctx context.Context, kind types.SweepKind) {
	start := time.Now()
	logger := s.logger.With("sweep", string(kind))
	if err := s.run(ctx, kind); err != nil {
		logger.Error("scheduled sweep failed", "error", err.Error(), "duration_ms", time.Since(start).Milliseconds())
		return
	}
	logger.Info("scheduled sweep completed", "duration_ms", time.Since(start).Milliseconds())
}
