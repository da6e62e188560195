package audit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Recorder writes interaction entries as JSON lines. One zerolog event
// per entry keeps each line a single write, so concurrent surfaces can
// share the recorder.
type Recorder struct {
	log zerolog.Logger
}

// NewRecorder constructs a recorder over the given sink.
func NewRecorder(w io.Writer) *Recorder {
	if w == nil {
		w = io.Discard
	}
	return &Recorder{log: zerolog.New(w).With().Timestamp().Logger()}
}

// Open opens (or creates) an append-only interaction log file. A
// directory path gets a dated ops_YYYYMMDD.jsonl inside it, picked at
// startup; long-lived deployments restart often enough that per-day
// files fall out without a rollover timer.
func Open(path string) (io.WriteCloser, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		name := fmt.Sprintf("ops_%s.jsonl", time.Now().UTC().Format("20060102"))
		path = filepath.Join(path, name)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// Log implements Logger.
func (r *Recorder) Log(_ context.Context, entry Entry) error {
	if r == nil {
		return errors.New("audit: nil recorder")
	}
	if entry.ID == "" {
		entry.ID = NewID()
	}
	event := r.log.Log().
		Str("id", entry.ID).
		Str("source", entry.Source).
		Str("action", entry.Action).
		Str("result", entry.Result)
	if entry.Actor != "" {
		event = event.Str("actor", entry.Actor)
	}
	if entry.IP != "" {
		event = event.Str("ip", entry.IP)
	}
	if entry.UserAgent != "" {
		event = event.Str("user_agent", entry.UserAgent)
	}
	if entry.Target != "" {
		event = event.Str("target", entry.Target)
	}
	if entry.Value != "" {
		event = event.Str("value", entry.Value)
	}
	if entry.Detail != "" {
		event = event.Str("detail", entry.Detail)
	}
	if !entry.At.IsZero() {
		event = event.Time("at", entry.At)
	}
	event.Send()
	return nil
}
