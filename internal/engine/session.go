package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cxd309/rgv-engine/internal/config"
	"github.com/cxd309/rgv-engine/internal/scheduler"
	"github.com/cxd309/rgv-engine/internal/task"
)

// Session is a live simulation safe for concurrent use. It advances on Step
// calls or, between Start and Pause, from its own ticker: each tick steps the
// scheduler by the tick interval in seconds, scaled by the acceleration factor.
type Session struct {
	ID string

	mu       sync.Mutex
	sched    *scheduler.Scheduler
	cancel   context.CancelFunc
	runCtx   context.Context // owned by the current ticker loop
	interval time.Duration
	log      logrus.FieldLogger
}

// SessionState is the scheduler snapshot plus the session's run status.
type SessionState struct {
	scheduler.State
	SessionID string  `json:"session_id"`
	Running   bool    `json:"running"`
	Interval  float64 `json:"interval"` // seconds between ticks while running
}

// NewSession builds a paused session over cfg.
func NewSession(cfg config.Config, log logrus.FieldLogger) (*Session, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	log = log.WithField("session", id)
	s, err := scheduler.New(cfg.Options(log))
	if err != nil {
		return nil, err
	}
	return &Session{ID: id, sched: s, log: log}, nil
}

// AddTask hands t to the scheduler.
func (s *Session) AddTask(t task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.AddTask(t)
}

// Step advances the simulation by dt and returns the new state.
func (s *Session) Step(dt float64) SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sched.Step(dt)
	return s.stateLocked()
}

// State returns the current state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() SessionState {
	return SessionState{
		State:     s.sched.Snapshot(),
		SessionID: s.ID,
		Running:   s.cancel != nil,
		Interval:  s.interval.Seconds(),
	}
}

// Tasks returns the pending, assigned and completed task views.
func (s *Session) Tasks() (pending, assigned, completed []scheduler.TaskSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.PendingTasks(), s.sched.AssignedTasks(), s.sched.CompletedTasks()
}

func (s *Session) SpeedEvents() []scheduler.SpeedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.SpeedEvents()
}

func (s *Session) DeviceEvents() []scheduler.DeviceEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.DeviceEvents()
}

// Start runs the ticker loop until ctx is done or Pause is called. Starting a
// running session restarts it with the new interval.
func (s *Session) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("tick interval %v: %w", interval, ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.runCtx = ctx
	s.interval = interval

	go s.loop(ctx, interval)
	s.log.WithField("interval", interval).Info("simulation running")
	return nil
}

func (s *Session) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	dt := interval.Seconds()
	for {
		select {
		case <-ctx.Done():
			s.stopped(ctx)
			return
		case <-ticker.C:
			s.mu.Lock()
			if ctx.Err() == nil {
				s.sched.Step(dt)
			}
			s.mu.Unlock()
		}
	}
}

// stopped marks the session paused when the loop for ctx ends on its own,
// e.g. because the parent context was cancelled. A loop replaced by Start or
// Pause no longer owns the session and leaves it alone.
func (s *Session) stopped(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runCtx != ctx {
		return
	}
	s.cancel()
	s.cancel = nil
	s.runCtx = nil
	s.log.Info("simulation stopped")
}

// Pause stops the ticker loop. It is a no-op on a paused session.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.runCtx = nil
	s.log.Info("simulation paused")
}

// Running reports whether the session was started and not paused since.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
