package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/birising/OT-honey/internal/alarms"
	"github.com/birising/OT-honey/internal/observability/metrics"
)

const (
	defaultQueueSize   = 256
	defaultSendTimeout = 5 * time.Second
)

// envelope is the wire shape shared by the webhook and MQTT sinks.
type envelope struct {
	Event    string       `json:"event"`
	Facility string       `json:"facility"`
	At       time.Time    `json:"at"`
	Alarm    alarms.Alarm `json:"alarm"`
}

// Dispatcher queues alarm events and delivers them to every configured
// channel from a single worker. Enqueue never blocks; events are
// dropped once the queue is full.
type Dispatcher struct {
	facility  string
	channels  []Channel
	log       zerolog.Logger
	timeout   time.Duration
	queueSize int
	queue     chan alarms.Event
}

// DispatcherOption configures the dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = log }
}

// WithQueueSize overrides the event queue capacity.
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// WithSendTimeout overrides the per-channel delivery timeout.
func WithSendTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// NewDispatcher constructs a dispatcher over the given channels.
func NewDispatcher(facility string, channels []Channel, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		facility:  facility,
		channels:  channels,
		log:       zerolog.Nop(),
		timeout:   defaultSendTimeout,
		queueSize: defaultQueueSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.queue = make(chan alarms.Event, d.queueSize)
	return d
}

// Notify implements alarms.Notifier.
func (d *Dispatcher) Notify(_ context.Context, event alarms.Event) {
	if d == nil {
		return
	}
	select {
	case d.queue <- event:
	default:
		metrics.IncNotification("dispatcher", metrics.NotifyDropped)
		d.log.Warn().
			Str("alarm", event.Alarm.Code).
			Str("type", string(event.Type)).
			Msg("notification queue full, event dropped")
	}
}

// Run drains the queue until ctx is cancelled. It blocks; run it on its
// own goroutine.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-d.queue:
			d.deliver(ctx, event)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event alarms.Event) {
	payload, err := json.Marshal(envelope{
		Event:    string(event.Type),
		Facility: d.facility,
		At:       time.Now().UTC(),
		Alarm:    event.Alarm,
	})
	if err != nil {
		d.log.Error().Err(err).Str("alarm", event.Alarm.Code).Msg("event marshal failed")
		return
	}
	for _, channel := range d.channels {
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := channel.Send(sendCtx, payload)
		cancel()
		if err != nil {
			metrics.IncNotification(channel.Name(), metrics.NotifyFailed)
			d.log.Warn().Err(err).
				Str("channel", channel.Name()).
				Str("alarm", event.Alarm.Code).
				Msg("notification delivery failed")
			continue
		}
		metrics.IncNotification(channel.Name(), metrics.NotifySent)
	}
}
