package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/birising/OT-honey/internal/alarms"
)

type stubChannel struct {
	name string
	err  error

	mu   sync.Mutex
	got  [][]byte
	seen chan struct{}
}

func newStubChannel(name string, err error) *stubChannel {
	return &stubChannel{name: name, err: err, seen: make(chan struct{}, 16)}
}

func (s *stubChannel) Name() string { return s.name }

func (s *stubChannel) Send(_ context.Context, payload []byte) error {
	s.mu.Lock()
	s.got = append(s.got, append([]byte(nil), payload...))
	s.mu.Unlock()
	s.seen <- struct{}{}
	return s.err
}

func (s *stubChannel) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func (s *stubChannel) last() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.got) == 0 {
		return nil
	}
	return s.got[len(s.got)-1]
}

func waitSeen(t *testing.T, ch *stubChannel) {
	t.Helper()
	select {
	case <-ch.seen:
	case <-time.After(2 * time.Second):
		t.Fatalf("channel %s saw no delivery", ch.name)
	}
}

func testEvent(code string) alarms.Event {
	return alarms.Event{
		Type: alarms.EventRaised,
		Alarm: alarms.Alarm{
			ID:       "alarm-deadbeef",
			Code:     code,
			Tag:      "WWTP01:AERATION:DO301.PV",
			Severity: alarms.SeverityMedium,
			Text:     "Low dissolved oxygen in aeration tank",
			Status:   alarms.StatusActive,
			RaisedAt: time.Now(),
		},
	}
}

func TestDispatcherDeliversToEveryChannel(t *testing.T) {
	good := newStubChannel("good", nil)
	bad := newStubChannel("bad", errors.New("sink down"))
	d := NewDispatcher("NMM-CZ-01", []Channel{bad, good})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Notify(ctx, testEvent("LOW_DO"))
	waitSeen(t, bad)
	waitSeen(t, good)

	// A failing sink must not starve the others.
	var env struct {
		Event    string `json:"event"`
		Facility string `json:"facility"`
		Alarm    struct {
			Code     string `json:"code"`
			Severity string `json:"severity"`
		} `json:"alarm"`
	}
	if err := json.Unmarshal(good.last(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Event != "raised" || env.Facility != "NMM-CZ-01" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if env.Alarm.Code != "LOW_DO" || env.Alarm.Severity != "medium" {
		t.Fatalf("unexpected alarm body: %+v", env.Alarm)
	}
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	sink := newStubChannel("sink", nil)
	d := NewDispatcher("plant", []Channel{sink}, WithQueueSize(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// No worker yet: the first event fills the queue, the second must be
	// dropped without blocking.
	d.Notify(ctx, testEvent("FIRST"))
	d.Notify(ctx, testEvent("SECOND"))

	go d.Run(ctx)
	waitSeen(t, sink)

	select {
	case <-sink.seen:
		t.Fatal("dropped event was delivered anyway")
	case <-time.After(100 * time.Millisecond):
	}
	if sink.count() != 1 {
		t.Fatalf("deliveries = %d, want 1", sink.count())
	}
}

func TestWebhookChannelPostsJSON(t *testing.T) {
	var (
		mu      sync.Mutex
		gotBody []byte
		gotType string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotBody = body
		gotType = r.Header.Get("Content-Type")
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL)
	if err != nil {
		t.Fatalf("NewWebhookChannel: %v", err)
	}
	if err := channel.Send(context.Background(), []byte(`{"event":"raised"}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotType != "application/json" {
		t.Fatalf("content type = %q", gotType)
	}
	if string(gotBody) != `{"event":"raised"}` {
		t.Fatalf("body = %s", gotBody)
	}
}

func TestWebhookChannelRejectsNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL)
	if err != nil {
		t.Fatalf("NewWebhookChannel: %v", err)
	}
	if err := channel.Send(context.Background(), []byte(`{}`)); err == nil {
		t.Fatal("expected error for 500 response")
	}

	if _, err := NewWebhookChannel(""); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestMQTTChannelValidation(t *testing.T) {
	if _, err := NewMQTTChannel("", "wwtp/alarms", "client"); err == nil {
		t.Fatal("expected error for empty broker")
	}
	if _, err := NewMQTTChannel("tcp://127.0.0.1:1883", "", "client"); err == nil {
		t.Fatal("expected error for empty topic")
	}
	channel, err := NewMQTTChannel("tcp://127.0.0.1:1883", "wwtp/alarms", "client")
	if err != nil {
		t.Fatalf("NewMQTTChannel: %v", err)
	}
	if channel.Name() != "mqtt" {
		t.Fatalf("name = %q", channel.Name())
	}
}

func TestSSEBrokerFanout(t *testing.T) {
	broker := NewSSEBroker()
	first, second := broker.Subscribe(), broker.Subscribe()

	broker.Notify(context.Background(), testEvent("HH_WET_WELL"))

	for _, ch := range []chan []byte{first, second} {
		select {
		case payload := <-ch:
			var event struct {
				Type  string `json:"type"`
				Alarm struct {
					Code string `json:"code"`
				} `json:"alarm"`
			}
			if err := json.Unmarshal(payload, &event); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if event.Type != "raised" || event.Alarm.Code != "HH_WET_WELL" {
				t.Fatalf("unexpected frame: %+v", event)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber missed the broadcast")
		}
	}

	broker.Unsubscribe(first)
	if _, open := <-first; open {
		t.Fatal("unsubscribed channel left open")
	}

	broker.Notify(context.Background(), testEvent("LOW_DO"))
	select {
	case <-second:
	default:
		t.Fatal("remaining subscriber missed the broadcast")
	}
}

func TestSSEBrokerNeverBlocksOnStalledClient(t *testing.T) {
	broker := NewSSEBroker()
	stalled := broker.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 40; i++ {
			broker.Notify(context.Background(), testEvent("SPAM"))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a client that stopped reading")
	}
	if got := len(stalled); got != cap(stalled) {
		t.Fatalf("buffered frames = %d, want full buffer %d", got, cap(stalled))
	}
}

func TestMultiForwardsToAll(t *testing.T) {
	first := &recordingNotifier{}
	second := &recordingNotifier{}
	multi := NewMulti(first, nil, second)

	multi.Notify(context.Background(), testEvent("VFD_FAULT"))

	if first.count() != 1 || second.count() != 1 {
		t.Fatalf("forward counts = %d, %d, want 1 each", first.count(), second.count())
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []alarms.Event
}

func (r *recordingNotifier) Notify(_ context.Context, event alarms.Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
