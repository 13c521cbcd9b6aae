package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coursewatch/coursewatch/internal/types"
)

// Channel is one independent way of reaching the operator.
type Channel interface {
	Name() string
	Notify(ctx context.Context, msg Message) error
}

// Message is the rendered form of a NotificationEvent, shared by all channels.
type Message struct {
	Event   types.NotificationEvent
	Title   string
	Summary string
	Link    string
}

const summaryHeader = "The following classes are now open:"

// NewMessage renders event for delivery.
func NewMessage(event types.NotificationEvent, title, link string) Message {
	lines := make([]string, 0, len(event.OpenKeys))
	for _, key := range event.OpenKeys {
		lines = append(lines, key.String())
	}
	return Message{
		Event:   event,
		Title:   title,
		Summary: summaryHeader + "\n\n" + strings.Join(lines, "\n"),
		Link:    link,
	}
}

// Body is the summary followed by the reference link.
func (m Message) Body() string {
	if m.Link == "" {
		return m.Summary
	}
	return m.Summary + "\n\n" + m.Link
}

// ErrorKind classifies a channel failure.
type ErrorKind string

const (
	PlaybackUnavailable ErrorKind = "playback_unavailable"
	DisplayUnavailable  ErrorKind = "display_unavailable"
	DeliveryFailed      ErrorKind = "delivery_failed"
	LaunchFailed        ErrorKind = "launch_failed"
)

// ChannelError is returned by a Channel that could not deliver a message.
type ChannelError struct {
	Channel string
	Kind    ErrorKind
	Err     error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Channel, e.Kind, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a ChannelError, or "" for other errors.
func KindOf(err error) ErrorKind {
	var ce *ChannelError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
