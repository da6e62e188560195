// Package notify fans alarm lifecycle events out to external sinks: a
// JSON webhook, an MQTT broker and connected event-stream clients.
// Delivery is asynchronous and lossy under pressure; the alarm engine
// never blocks on a slow sink.
package notify

import (
	"context"

	"github.com/birising/OT-honey/internal/alarms"
)

// Channel delivers one serialized event to an external sink.
type Channel interface {
	Name() string
	Send(ctx context.Context, payload []byte) error
}

// Multi forwards events to several notifiers.
type Multi struct {
	notifiers []alarms.Notifier
}

// NewMulti constructs a fan-out notifier.
func NewMulti(notifiers ...alarms.Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

// Notify implements alarms.Notifier.
func (m *Multi) Notify(ctx context.Context, event alarms.Event) {
	if m == nil {
		return
	}
	for _, notifier := range m.notifiers {
		if notifier != nil {
			notifier.Notify(ctx, event)
		}
	}
}
