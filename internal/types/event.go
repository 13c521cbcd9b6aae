package types

import "time"

// NotificationEvent is created once per cycle when at least one tracked key
// is newly open. It is not modified after construction.
type NotificationEvent struct {
	ID        string
	Timestamp time.Time
	OpenKeys  []ResourceKey
	// Test marks the synthetic startup alert.
	Test bool
}

// NewNotificationEvent copies keys so later changes by the caller do not leak
// into the event.
func NewNotificationEvent(id string, ts time.Time, keys []ResourceKey) NotificationEvent {
	openKeys := make([]ResourceKey, len(keys))
	copy(openKeys, keys)
	return NotificationEvent{
		ID:        id,
		Timestamp: ts,
		OpenKeys:  openKeys,
	}
}
