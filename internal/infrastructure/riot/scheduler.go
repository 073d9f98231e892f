package riot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/willckim/Rift-Architect/internal/infrastructure/eventbus"
	apperrors "github.com/willckim/Rift-Architect/pkg/errors"
	"github.com/willckim/Rift-Architect/pkg/safego"
)

// State is the scheduler's dispatch state.
type State int

const (
	StateRunning    State = iota // dispatching normally
	StateSoftPaused              // voluntary pause near the window ceiling
	StateHardPaused              // credentials expired, rejecting work
)

// String returns a human-readable label for the state.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateSoftPaused:
		return "soft_paused"
	case StateHardPaused:
		return "hard_paused"
	default:
		return "unknown"
	}
}

// Result is what a task reports back from one HTTP exchange. The scheduler
// reads the status code and rate headers; the body belongs to the caller.
type Result struct {
	StatusCode int
	Body       []byte
	RateLimit  string // X-App-Rate-Limit header, "" when absent
	RetryAfter int    // Retry-After seconds, 0 when absent
}

// Task performs one cloud request with the key current at dispatch time.
type Task func(ctx context.Context, apiKey string) (*Result, error)

// Outcome resolves an enqueued task.
type Outcome struct {
	Result *Result
	Err    error
}

type pending struct {
	task Task
	done chan Outcome
}

// SchedulerConfig tunes the dispatcher.
type SchedulerConfig struct {
	Spacing        time.Duration // min gap between dispatches (default 50ms)
	DefaultLimits  string        // initial bucket header (default DefaultRateLimit)
	SoftCeiling    int           // requests per soft window (default 100)
	SoftWindow     time.Duration // soft-throttle sliding window (default 120s)
	SoftPause      time.Duration // pause length once the ceiling trips (default 30s)
	RequestTimeout time.Duration // per attempt (default 10s)
	MaxRetries     int           // total attempts on 429 (default 3)
}

// Scheduler is the serial FIFO queue fronting the cloud API. Tasks depart
// strictly in enqueue order, one at a time, and only once every rate bucket
// admits. A 403 flips the scheduler to HardPaused until ReloadKey.
type Scheduler struct {
	cfg    SchedulerConfig
	bus    eventbus.Bus
	logger *zap.Logger

	key atomic.Value // string; read at dispatch time, never at enqueue time

	mu           sync.Mutex
	cond         *sync.Cond
	queue        []*pending
	state        State
	softUntil    time.Time
	buckets      BucketSet
	dispatches   []time.Time // soft-throttle window
	lastDispatch time.Time
	keySignaled  bool // key-expired emitted for the current hard pause
	running      bool
	stopCh       chan struct{}
}

// NewScheduler creates a scheduler with the given initial API key.
func NewScheduler(cfg SchedulerConfig, apiKey string, bus eventbus.Bus, logger *zap.Logger) *Scheduler {
	if cfg.Spacing <= 0 {
		cfg.Spacing = 50 * time.Millisecond
	}
	if cfg.SoftCeiling <= 0 {
		cfg.SoftCeiling = 100
	}
	if cfg.SoftWindow <= 0 {
		cfg.SoftWindow = 120 * time.Second
	}
	if cfg.SoftPause <= 0 {
		cfg.SoftPause = 30 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	s := &Scheduler{
		cfg:     cfg,
		bus:     bus,
		logger:  logger.With(zap.String("component", "scheduler")),
		state:   StateRunning,
		buckets: ParseRateLimit(cfg.DefaultLimits),
		stopCh:  make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	s.key.Store(apiKey)
	return s
}

// Start launches the dispatch loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	safego.Go(s.logger, "scheduler-dispatch", s.loop)
}

// Stop finishes the current dispatch and rejects the remainder.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	rest := s.queue
	s.queue = nil
	close(s.stopCh)
	s.cond.Broadcast()
	s.mu.Unlock()

	for _, item := range rest {
		item.done <- Outcome{Err: apperrors.NewInternalError("scheduler stopped")}
	}
	s.logger.Info("Scheduler stopped")
}

// Enqueue queues a task and returns its outcome channel. Tasks wait rather
// than fail, except while HardPaused, where they reject immediately with
// a credential-expired error and no HTTP call.
func (s *Scheduler) Enqueue(task Task) <-chan Outcome {
	done := make(chan Outcome, 1)

	s.mu.Lock()
	if s.state == StateHardPaused || !s.running {
		state := s.state
		s.mu.Unlock()
		if state == StateHardPaused {
			done <- Outcome{Err: apperrors.NewCredentialExpiredError("api key expired")}
		} else {
			done <- Outcome{Err: apperrors.NewInternalError("scheduler not running")}
		}
		return done
	}
	s.queue = append(s.queue, &pending{task: task, done: done})
	s.cond.Signal()
	s.mu.Unlock()

	return done
}

// ReloadKey installs a rotated API key and returns the scheduler to Running.
func (s *Scheduler) ReloadKey(apiKey string) {
	s.key.Store(apiKey)

	s.mu.Lock()
	if s.state == StateHardPaused {
		s.state = StateRunning
	}
	s.keySignaled = false
	s.cond.Broadcast()
	s.mu.Unlock()

	s.logger.Info("API key reloaded, scheduler running")
}

// WindowUsage returns the soft-window fill ratio. Cheap to read anywhere.
func (s *Scheduler) WindowUsage() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneWindowLocked(time.Now())
	return float64(len(s.dispatches)) / float64(s.cfg.SoftCeiling)
}

// IsPaused reports whether the scheduler is soft- or hard-paused.
func (s *Scheduler) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != StateRunning
}

// Pending returns the queue depth.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// CurrentState returns the dispatch state.
func (s *Scheduler) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) loop() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && s.running {
			s.cond.Wait()
		}
		if !s.running {
			s.mu.Unlock()
			return
		}
		item := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.dispatch(item)
	}
}

// dispatch waits for the pacing conditions, then runs one task to outcome.
func (s *Scheduler) dispatch(item *pending) {
	if !s.awaitSlot(item) {
		return
	}
	s.runTask(item)
}

// awaitSlot blocks until the task may depart: Running state, every bucket
// admitting, and the spacing gap elapsed. Returns false when the task was
// resolved without dispatching (hard pause or shutdown).
func (s *Scheduler) awaitSlot(item *pending) bool {
	for {
		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			item.done <- Outcome{Err: apperrors.NewInternalError("scheduler stopped")}
			return false
		}
		if s.state == StateHardPaused {
			s.mu.Unlock()
			item.done <- Outcome{Err: apperrors.NewCredentialExpiredError("api key expired")}
			return false
		}

		now := time.Now()
		var sleep time.Duration

		if s.state == StateSoftPaused {
			if now.Before(s.softUntil) {
				sleep = s.softUntil.Sub(now)
			} else {
				s.state = StateRunning
				s.logger.Info("Soft throttle released")
			}
		}
		if sleep == 0 {
			sleep = s.buckets.MaxWait(now)
		}
		if sleep == 0 && !s.lastDispatch.IsZero() {
			if gap := s.cfg.Spacing - now.Sub(s.lastDispatch); gap > 0 {
				sleep = gap
			}
		}

		if sleep == 0 {
			s.recordDispatchLocked(now)
			s.mu.Unlock()
			return true
		}
		s.mu.Unlock()

		select {
		case <-s.stopCh:
		case <-time.After(sleep):
		}
	}
}

// recordDispatchLocked stamps the departure into every bucket and the soft
// window, tripping the soft throttle for the next dispatch if needed.
func (s *Scheduler) recordDispatchLocked(now time.Time) {
	s.buckets.RecordAll(now)
	s.lastDispatch = now

	s.dispatches = append(s.dispatches, now)
	s.pruneWindowLocked(now)

	threshold := s.cfg.SoftCeiling * 8 / 10
	if len(s.dispatches) >= threshold && s.state == StateRunning {
		s.state = StateSoftPaused
		s.softUntil = now.Add(s.cfg.SoftPause)
		s.logger.Warn("Soft throttle engaged",
			zap.Int("window_count", len(s.dispatches)),
			zap.Time("until", s.softUntil),
		)
	}
}

func (s *Scheduler) pruneWindowLocked(now time.Time) {
	cutoff := now.Add(-s.cfg.SoftWindow)
	i := 0
	for i < len(s.dispatches) && !s.dispatches[i].After(cutoff) {
		i++
	}
	s.dispatches = s.dispatches[i:]
}

// runTask executes one task with 429 retries and 403 hard-pause handling.
func (s *Scheduler) runTask(item *pending) {
	var lastResult *Result

	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
		result, err := item.task(ctx, s.key.Load().(string))
		cancel()

		if err != nil {
			item.done <- Outcome{Err: err}
			return
		}
		lastResult = result

		switch {
		case result.StatusCode == 429:
			wait := result.RetryAfter
			if wait <= 0 {
				wait = 1
			}
			if attempt == s.cfg.MaxRetries {
				s.logger.Warn("Rate limited, giving up",
					zap.Int("attempts", attempt),
					zap.Int("retry_after", wait),
				)
				s.bus.Publish(context.Background(), eventbus.NewEvent(
					eventbus.EventTypeRateLimited,
					eventbus.RateLimitedPayload{RetryAfterSeconds: wait},
				))
				item.done <- Outcome{
					Result: result,
					Err:    apperrors.NewRateLimitedError("cloud API rate limited", nil),
				}
				return
			}
			s.logger.Debug("Rate limited, retrying",
				zap.Int("attempt", attempt),
				zap.Int("retry_after", wait),
			)
			select {
			case <-s.stopCh:
				item.done <- Outcome{Err: apperrors.NewInternalError("scheduler stopped")}
				return
			case <-time.After(time.Duration(wait) * time.Second):
			}

		case result.StatusCode == 403:
			s.hardPause()
			item.done <- Outcome{
				Result: result,
				Err:    apperrors.NewCredentialExpiredError("api key expired"),
			}
			return

		default:
			if result.RateLimit != "" {
				s.updateBuckets(result.RateLimit)
			}
			item.done <- Outcome{Result: result}
			return
		}
	}

	// Unreachable in practice; the retry loop always resolves the item.
	item.done <- Outcome{Result: lastResult, Err: apperrors.NewInternalError("dispatch fell through")}
}

// hardPause flips to HardPaused, drains the queue with credential errors,
// and emits key-expired exactly once per incident.
func (s *Scheduler) hardPause() {
	s.mu.Lock()
	s.state = StateHardPaused
	rest := s.queue
	s.queue = nil
	signal := !s.keySignaled
	s.keySignaled = true
	s.mu.Unlock()

	for _, queued := range rest {
		queued.done <- Outcome{Err: apperrors.NewCredentialExpiredError("api key expired")}
	}

	s.logger.Error("API key rejected, scheduler hard-paused",
		zap.Int("drained", len(rest)),
	)
	if signal {
		s.bus.Publish(context.Background(), eventbus.NewEvent(eventbus.EventTypeKeyExpired, nil))
	}
}

// updateBuckets swaps the bucket set atomically between dispatches.
func (s *Scheduler) updateBuckets(header string) {
	set := ParseRateLimit(header)

	s.mu.Lock()
	s.buckets = set
	s.mu.Unlock()

	s.logger.Debug("Rate limits updated", zap.String("header", header))
}
