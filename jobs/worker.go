package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	jobmetrics "github.com/odyssey-erp/ppestock/internal/jobs"
)

// CronRegistration wires a schedule to a job. Spec is a standard five-field
// cron expression; Every takes precedence when set.
type CronRegistration struct {
	Name  string
	Spec  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	Logger   *slog.Logger
	Location *time.Location
	Metrics  *jobmetrics.Metrics
	Cron     []CronRegistration
}

type entry struct {
	name     string
	schedule cron.Schedule
	run      func(ctx context.Context) error
}

// Worker runs registered jobs on their schedules until its context ends.
// A run still in flight when its next tick arrives causes that tick to be skipped.
type Worker struct {
	entries  []entry
	location *time.Location
	logger   *slog.Logger
	metrics  *jobmetrics.Metrics
}

// NewWorker validates every registration and constructs a Worker.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	w := &Worker{location: loc, logger: logger.With(slog.String("component", "worker")), metrics: cfg.Metrics}
	for _, reg := range cfg.Cron {
		if reg.Name == "" || reg.Run == nil {
			return nil, fmt.Errorf("worker: registration %q incomplete", reg.Name)
		}
		var schedule cron.Schedule
		switch {
		case reg.Every > 0:
			schedule = cron.Every(reg.Every)
		case reg.Spec != "":
			parsed, err := cron.ParseStandard(reg.Spec)
			if err != nil {
				return nil, fmt.Errorf("worker: parse %s schedule: %w", reg.Name, err)
			}
			schedule = parsed
		default:
			return nil, fmt.Errorf("worker: %s has no schedule", reg.Name)
		}
		w.entries = append(w.entries, entry{name: reg.Name, schedule: schedule, run: reg.Run})
	}
	return w, nil
}

// Run starts the scheduler and blocks until ctx is cancelled, then waits for
// running jobs to return.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	log := cronLogger{logger: w.logger}
	c := cron.New(
		cron.WithLocation(w.location),
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	for _, e := range w.entries {
		e := e
		id := c.Schedule(e.schedule, cron.FuncJob(func() { w.execute(ctx, e) }))
		w.logger.Info("job scheduled", slog.String("job", e.name), slog.Time("next", c.Entry(id).Schedule.Next(time.Now().In(w.location))))
	}
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

func (w *Worker) execute(ctx context.Context, e entry) {
	if ctx.Err() != nil {
		return
	}
	logger := w.logger.With(slog.String("job", e.name))
	tracker := w.metrics.Track(e.name)
	if err := tracker.End(e.run(ctx)); err != nil {
		logger.Error("job failed", slog.Any("error", err))
		return
	}
	logger.Debug("job finished")
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{slog.Any("error", err)}, keysAndValues...)...)
}
