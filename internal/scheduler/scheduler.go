package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type Runner interface {
	Run(context.Context) error
}

// Scheduler triggers the runner on a cron schedule and keeps a snapshot of
// recent runs, scheduled or manual. Overlapping scheduled ticks are skipped;
// manual runs are never blocked.
type Scheduler struct {
	spec       string
	runner     Runner
	runTimeout time.Duration
	cron       *cron.Cron
	entry      cron.EntryID
	log        *slog.Logger

	mu     sync.Mutex
	active int
	state  RunState
}

type RunState struct {
	Running         bool      `json:"running"`
	CurrentTrigger  string    `json:"currentTrigger,omitempty"`
	StartedAt       time.Time `json:"startedAt"`
	LastCompletedAt time.Time `json:"lastCompletedAt"`
	LastDurationMS  int64     `json:"lastDurationMs"`
	LastError       string    `json:"lastError"`
	LastTrigger     string    `json:"lastTrigger"`
	Schedule        string    `json:"schedule"`
	NextRunAt       time.Time `json:"nextRunAt"`
}

type Options struct {
	// Spec is a 5-field cron expression. Empty disables scheduled runs.
	Spec       string
	Location   *time.Location
	RunTimeout time.Duration
	Logger     *slog.Logger
}

func New(runner Runner, opts Options) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("runner must not be nil")
	}
	s := &Scheduler{
		spec:       strings.TrimSpace(opts.Spec),
		runner:     runner,
		runTimeout: opts.RunTimeout,
		log:        opts.Logger,
	}
	if s.runTimeout <= 0 {
		s.runTimeout = 10 * time.Minute
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger{s.log}),
		cron.WithChain(cron.Recover(cronLogger{s.log}), cron.SkipIfStillRunning(cronLogger{s.log})),
	)
	if s.spec != "" {
		id, err := s.cron.AddFunc(s.spec, s.tick)
		if err != nil {
			return nil, fmt.Errorf("add cron %q: %w", s.spec, err)
		}
		s.entry = id
	}
	s.state.Schedule = s.spec
	return s, nil
}

// Start runs the cron loop until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	if s.spec == "" {
		s.log.Info("scheduler: no schedule configured; manual checks only")
		return
	}
	s.cron.Start()
	s.log.Info("scheduler: started", slog.String("schedule", s.spec), slog.Time("next", s.nextRun()))
	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		s.log.Info("scheduler: stopped")
	}()
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()
	if err := s.Track(ctx, "scheduled", s.runner.Run); err != nil {
		s.log.Error("scheduler: scheduled check failed", slog.Any("error", err))
	}
}

// Track runs fn and records it in the run snapshot under trigger.
func (s *Scheduler) Track(ctx context.Context, trigger string, fn func(context.Context) error) error {
	s.mu.Lock()
	s.active++
	s.state.Running = true
	s.state.CurrentTrigger = trigger
	s.state.StartedAt = time.Now()
	s.mu.Unlock()

	s.log.Info("scheduler: check started", slog.String("trigger", trigger))
	start := time.Now()
	err := fn(ctx)
	took := time.Since(start)

	s.mu.Lock()
	s.active--
	s.state.Running = s.active > 0
	if s.active == 0 {
		s.state.CurrentTrigger = ""
	}
	s.state.LastCompletedAt = time.Now()
	s.state.LastDurationMS = took.Milliseconds()
	s.state.LastTrigger = trigger
	if err != nil {
		s.state.LastError = err.Error()
	} else {
		s.state.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("scheduler: check finished with error", slog.String("trigger", trigger), slog.Duration("took", took.Round(time.Millisecond)), slog.Any("error", err))
		return err
	}
	s.log.Info("scheduler: check finished", slog.String("trigger", trigger), slog.Duration("took", took.Round(time.Millisecond)))
	return nil
}

func (s *Scheduler) Snapshot() RunState {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()
	st.NextRunAt = s.nextRun()
	return st
}

func (s *Scheduler) nextRun() time.Time {
	if s.entry == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// DailySpec converts "HH:MM" into a cron expression firing once a day.
func DailySpec(hhmm string) (string, error) {
	parts := strings.Split(strings.TrimSpace(hhmm), ":")
	if len(parts) != 2 {
		return "", errors.New("daily time must be HH:MM")
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return "", errors.New("invalid hour")
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return "", errors.New("invalid minute")
	}
	return fmt.Sprintf("%d %d * * *", m, h), nil
}

type cronLogger struct{ log *slog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("scheduler: cron "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("scheduler: cron "+msg, append(keysAndValues, "error", err)...)
}
