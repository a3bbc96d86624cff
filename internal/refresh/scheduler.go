// Package refresh re-resolves expiring feed URLs, one independent periodic cycle per source class.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-wall"
	"github.com/alanbriolat/video-wall/internal/metrics"
)

const (
	DefaultDynamicInterval = 5 * time.Hour
	DefaultVendorInterval  = 10 * time.Minute
	// MinInterval is the finest interval the cron timer supports.
	MinInterval = time.Second
)

var (
	ErrStarted  = errors.New("scheduler already started")
	ErrInterval = errors.New("refresh interval too short")
)

// Cycle is the outcome of one completed tick of one class.
type Cycle struct {
	ID         uuid.UUID
	Class      string
	Kind       video_wall.SourceKind
	Results    []video_wall.RefreshResult
	StartedAt  time.Time
	FinishedAt time.Time
}

func (c Cycle) Successful() int {
	n := 0
	for _, r := range c.Results {
		if r.Success {
			n++
		}
	}
	return n
}

// Listener is called once per completed cycle, after every per-feed result is known.
type Listener func(Cycle)

type entry struct {
	class    Class
	interval time.Duration
	job      cron.Job
}

type Scheduler struct {
	mu        sync.Mutex
	cron      *cron.Cron
	entries   []*entry
	listeners []Listener
	started   bool
	ctx       context.Context
	ctxCancel context.CancelFunc
	wg        sync.WaitGroup
	log       *zap.SugaredLogger
}

func NewScheduler(listeners ...Listener) *Scheduler {
	log := zap.S().Named("refresh")
	return &Scheduler{
		cron:      cron.New(cron.WithLogger(cronLogger{log})),
		listeners: listeners,
		log:       log,
	}
}

// Add schedules class every interval. Ticks of the same class never overlap: a tick that comes due while the previous
// one (including the initial run) is still going is skipped.
func (s *Scheduler) Add(class Class, interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}
	if interval < MinInterval {
		return fmt.Errorf("%w: %v < %v", ErrInterval, interval, MinInterval)
	}
	e := &entry{class: class, interval: interval}
	logger := cronLogger{s.log.With("class", class.Name())}
	e.job = cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(func() {
		s.RunOnce(s.ctx, class)
	}))
	s.entries = append(s.entries, e)
	return nil
}

// Start runs every class once immediately, each in its own goroutine, then starts the periodic timers.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}
	s.started = true
	s.ctx, s.ctxCancel = context.WithCancel(ctx)
	for _, e := range s.entries {
		s.cron.Schedule(cron.Every(e.interval), e.job)
		s.log.Infof("%s refresh scheduled every %v", e.class.Name(), e.interval)
		s.wg.Add(1)
		go func(job cron.Job) {
			defer s.wg.Done()
			job.Run()
		}(e.job)
	}
	s.cron.Start()
	return nil
}

// Stop cancels in-flight cycles and waits for them to finish. Listeners are not called after Stop returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.ctxCancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

// RunOnce runs a single cycle of class synchronously, notifying listeners. Usable without Start.
func (s *Scheduler) RunOnce(ctx context.Context, class Class) Cycle {
	if ctx == nil {
		ctx = context.Background()
	}
	cycle := Cycle{
		ID:        uuid.New(),
		Class:     class.Name(),
		Kind:      class.Kind(),
		StartedAt: time.Now(),
	}
	log := s.log.With("class", cycle.Class, "cycle", cycle.ID)
	ctx = video_wall.WithLogger(ctx, log.Desugar())
	log.Infof("%s refresh triggered", cycle.Class)
	cycle.Results = class.Refresh(ctx)
	cycle.FinishedAt = time.Now()

	metrics.RefreshCycles.WithLabelValues(cycle.Class).Inc()
	metrics.RefreshDuration.WithLabelValues(cycle.Class).Observe(cycle.FinishedAt.Sub(cycle.StartedAt).Seconds())
	for _, r := range cycle.Results {
		outcome := metrics.OutcomeFailure
		if r.Success {
			outcome = metrics.OutcomeSuccess
		}
		metrics.RefreshResults.WithLabelValues(cycle.Class, outcome).Inc()
	}
	log.Infof("%s refresh complete: %d/%d successful", cycle.Class, cycle.Successful(), len(cycle.Results))

	if ctx.Err() == nil {
		for _, l := range s.listeners {
			l(cycle)
		}
	}
	return cycle
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
