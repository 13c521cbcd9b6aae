package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coursewatch/coursewatch/internal/alerter"
	"github.com/coursewatch/coursewatch/internal/evaluator"
	"github.com/coursewatch/coursewatch/internal/metrics"
	"github.com/coursewatch/coursewatch/internal/source"
	"github.com/coursewatch/coursewatch/internal/types"
)

// Phase is the scheduler's position in the poll cycle.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseFetching  Phase = "fetching"
	PhaseDiffing   Phase = "diffing"
	PhaseNotifying Phase = "notifying"
	PhaseSleeping  Phase = "sleeping"
	PhaseStopped   Phase = "stopped"
)

// Dispatcher delivers notification events. Dispatch must not fail.
type Dispatcher interface {
	Dispatch(ctx context.Context, event types.NotificationEvent)
}

// Status is a point-in-time copy of the scheduler's progress.
type Status struct {
	Phase               Phase               `json:"phase"`
	Cycles              int                 `json:"cycles"`
	LastCycleAt         time.Time           `json:"last_cycle_at"`
	LastSuccessAt       time.Time           `json:"last_success_at"`
	LastError           string              `json:"last_error,omitempty"`
	ConsecutiveFailures int                 `json:"consecutive_failures"`
	Open                []types.ResourceKey `json:"open"`
	// Notifications counts dispatched events; one event may list several keys.
	Notifications       int                 `json:"notifications"`
}

// Options configures a Scheduler.
type Options struct {
	Tracked        []types.ResourceKey
	Interval       time.Duration
	RequestTimeout time.Duration
}

// Scheduler runs fetch → diff → notify cycles at a fixed interval. Cycles
// never overlap and a failed cycle never stops the loop.
type Scheduler struct {
	opts       Options
	source     source.Source
	state      *alerter.State
	dispatcher Dispatcher
	metrics    *metrics.Recorder
	logger     zerolog.Logger
	now        func() time.Time

	mu     sync.RWMutex
	status Status
}

// New creates a scheduler. The tracked list must be non-empty.
func New(opts Options, src source.Source, state *alerter.State, dispatcher Dispatcher, rec *metrics.Recorder, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		opts:       opts,
		source:     src,
		state:      state,
		dispatcher: dispatcher,
		metrics:    rec,
		logger:     logger.With().Str("component", "scheduler").Logger(),
		now:        time.Now,
		status:     Status{Phase: PhaseIdle},
	}
}

// Run polls until ctx is cancelled. Cancellation is honoured between phases;
// a fetch already in flight completes or times out first.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info().
		Int("tracked", len(s.opts.Tracked)).
		Dur("interval", s.opts.Interval).
		Msg("Scheduler started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.setPhase(PhaseStopped)
			s.logger.Info().Msg("Scheduler stopped")
			return nil
		case <-timer.C:
		}

		s.RunOnce(ctx)

		if ctx.Err() != nil {
			continue
		}
		s.setPhase(PhaseSleeping)
		s.logger.Debug().
			Dur("interval", s.opts.Interval).
			Msg("Waiting before next check")
		timer.Reset(s.opts.Interval)
	}
}

// RunOnce executes a single cycle.
func (s *Scheduler) RunOnce(ctx context.Context) {
	cycleID := uuid.NewString()
	started := s.now()
	log := s.logger.With().
		Str("cycle_id", cycleID).
		Time("cycle_time", started).
		Logger()

	s.setPhase(PhaseFetching)
	log.Debug().Str("source", s.source.Name()).Msg("Checking for updates")

	closed, err := s.fetch(ctx)
	if err != nil {
		kind := source.KindOf(err)
		log.Error().
			Err(err).
			Str("kind", string(kind)).
			Msg("Skipping check due to fetch error")
		s.metrics.CycleFailed(string(kind))
		s.mu.Lock()
		s.status.Cycles++
		s.status.LastCycleAt = started
		s.status.LastError = err.Error()
		s.status.ConsecutiveFailures++
		s.mu.Unlock()
		return
	}

	if ctx.Err() != nil {
		return
	}
	s.setPhase(PhaseDiffing)
	results := evaluator.Diff(s.opts.Tracked, closed)
	open := evaluator.OpenKeys(results)
	toNotify := s.state.Update(results)

	s.metrics.CycleSucceeded(len(open), started)
	s.mu.Lock()
	s.status.Cycles++
	s.status.LastCycleAt = started
	s.status.LastSuccessAt = started
	s.status.LastError = ""
	s.status.ConsecutiveFailures = 0
	s.status.Open = open
	if len(toNotify) > 0 {
		s.status.Notifications++
	}
	s.mu.Unlock()

	if len(open) == 0 {
		log.Info().
			Int("closed_in_snapshot", len(closed)).
			Msg("None of the classes are open yet")
	}

	if len(toNotify) == 0 {
		if len(open) > 0 {
			log.Info().
				Int("open", len(open)).
				Msg("Classes open, already alerted")
		}
		return
	}

	if ctx.Err() != nil {
		return
	}
	s.setPhase(PhaseNotifying)
	for _, key := range toNotify {
		log.Info().
			Stringer("key", key).
			Msg("Class is now open")
	}
	event := types.NewNotificationEvent(cycleID, started, toNotify)
	s.dispatcher.Dispatch(ctx, event)
}

// fetch runs detached from shutdown so a request is never cut mid-flight; the
// request timeout still bounds it.
func (s *Scheduler) fetch(ctx context.Context) (types.ClosedSet, error) {
	fetchCtx := context.WithoutCancel(ctx)
	if s.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(fetchCtx, s.opts.RequestTimeout)
		defer cancel()
	}
	return s.source.Fetch(fetchCtx)
}

func (s *Scheduler) setPhase(p Phase) {
	s.mu.Lock()
	s.status.Phase = p
	s.mu.Unlock()
}

// Status returns a copy of the current status.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	st.Open = append(make([]types.ResourceKey, 0, len(s.status.Open)), s.status.Open...)
	return st
}
