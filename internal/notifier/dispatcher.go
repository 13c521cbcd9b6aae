package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/coursewatch/coursewatch/internal/metrics"
	"github.com/coursewatch/coursewatch/internal/types"
)

type registered struct {
	channel Channel
	timeout time.Duration
}

// Dispatcher fans an event out to every registered channel. Each channel runs
// in its own goroutine and its failure is logged, never returned.
type Dispatcher struct {
	title    string
	link     string
	grace    time.Duration
	logger   zerolog.Logger
	metrics  *metrics.Recorder
	channels []registered
	inflight sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Dispatch waits at most grace for
// channels before returning; slower channels keep running in the background.
func NewDispatcher(title, link string, grace time.Duration, rec *metrics.Recorder, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		title:   title,
		link:    link,
		grace:   grace,
		logger:  logger.With().Str("component", "dispatcher").Logger(),
		metrics: rec,
	}
}

// Add registers a channel. A zero timeout lets the channel run until it
// returns on its own. Channels must be added before the first Dispatch.
func (d *Dispatcher) Add(ch Channel, timeout time.Duration) {
	d.channels = append(d.channels, registered{channel: ch, timeout: timeout})
}

// Channels returns the names of registered channels.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for _, rc := range d.channels {
		names = append(names, rc.channel.Name())
	}
	return names
}

// Dispatch delivers event on every channel. Events without open keys are
// ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, event types.NotificationEvent) {
	if len(event.OpenKeys) == 0 || len(d.channels) == 0 {
		return
	}

	msg := NewMessage(event, d.title, d.link)
	d.metrics.AlertDispatched()

	// Channel tasks outlive shutdown of the poll loop; Drain bounds them.
	base := context.WithoutCancel(ctx)
	done := make(chan string, len(d.channels))

	for _, rc := range d.channels {
		d.inflight.Add(1)
		go func(rc registered) {
			defer d.inflight.Done()
			d.deliver(base, rc, msg)
			done <- rc.channel.Name()
		}(rc)
	}

	timer := time.NewTimer(d.grace)
	defer timer.Stop()

	for pending := len(d.channels); pending > 0; pending-- {
		select {
		case <-done:
		case <-timer.C:
			d.logger.Debug().
				Str("event_id", event.ID).
				Int("pending", pending).
				Dur("grace", d.grace).
				Msg("Channels still running, continuing in background")
			return
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, rc registered, msg Message) {
	if rc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rc.timeout)
		defer cancel()
	}

	name := rc.channel.Name()
	start := time.Now()
	err := safeNotify(ctx, rc.channel, msg)
	took := time.Since(start)
	d.metrics.Delivery(name, err, took)

	if err != nil {
		d.logger.Error().
			Err(err).
			Str("channel", name).
			Str("kind", string(KindOf(err))).
			Str("event_id", msg.Event.ID).
			Time("event_time", msg.Event.Timestamp).
			Msg("Failed to send notification")
		return
	}

	d.logger.Info().
		Str("channel", name).
		Str("event_id", msg.Event.ID).
		Dur("took", took).
		Msg("Notification sent")
}

func safeNotify(ctx context.Context, ch Channel, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel %s panicked: %v", ch.Name(), r)
		}
	}()
	return ch.Notify(ctx, msg)
}

// Drain waits for in-flight channel tasks, giving up after timeout. It
// reports whether every task finished.
func (d *Dispatcher) Drain(timeout time.Duration) bool {
	finished := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return true
	case <-time.After(timeout):
		d.logger.Warn().
			Dur("timeout", timeout).
			Msg("Abandoning notification channels still running")
		return false
	}
}
