// Package alarms evaluates the plant alarm schedule against committed
// tag values and tracks each alarm through raise, acknowledge and clear.
package alarms

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/birising/OT-honey/internal/tags"
)

// Severity ranks an alarm on the four-step operator scale.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON renders the lowercase severity name used on the wire.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.ToLower(s.String()))
}

// Status is the lifecycle state of one alarm instance.
type Status string

const (
	// StatusActive means raised and awaiting acknowledgement.
	StatusActive Status = "active"
	// StatusAcknowledged means raised and acknowledged, condition still true.
	StatusAcknowledged Status = "acknowledged"
	// StatusCleared means the condition went false.
	StatusCleared Status = "cleared"
)

// Alarm is one instance of a condition firing. A new instance with a
// fresh ID is created each time the condition trips; the stable Code
// identifies the condition across instances.
type Alarm struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	Tag       string     `json:"tag"`
	Severity  Severity   `json:"severity"`
	Text      string     `json:"text"`
	Value     tags.Value `json:"value"`
	Status    Status     `json:"status"`
	RaisedAt  time.Time  `json:"raised_at"`
	AckedAt   time.Time  `json:"acked_at,omitempty"`
	ClearedAt time.Time  `json:"cleared_at,omitempty"`
}

// Clone returns a copy safe to hand across the API boundary.
func (a *Alarm) Clone() Alarm { return *a }

// EventType classifies a lifecycle transition.
type EventType string

const (
	EventRaised       EventType = "raised"
	EventAcknowledged EventType = "acknowledged"
	EventCleared      EventType = "cleared"
)

// Event is one alarm lifecycle transition, as handed to notifiers.
type Event struct {
	Type  EventType `json:"type"`
	Alarm Alarm     `json:"alarm"`
}
