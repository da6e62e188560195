// Package audit records every external interaction with the plant
// surfaces. The interaction log is the product of the whole deception:
// each HTTP call, register write and SNMP probe lands here as one JSON
// line with a correlation id.
package audit

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Interaction sources.
const (
	SourceHTTP   = "http"
	SourceModbus = "modbus"
	SourceSNMP   = "snmp"
)

// Interaction outcomes.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Actions recorded across surfaces. Callers may use free-form actions
// for surface-specific events; these cover the shared vocabulary.
const (
	ActionTagWrite      = "tag_write"
	ActionAlarmAck      = "alarm_ack"
	ActionScenarioStart = "scenario_start"
	ActionScenarioStop  = "scenario_stop"
	ActionModeChange    = "mode_change"
	ActionKillSwitch    = "kill_switch"
	ActionReset         = "reset"
	ActionAuthFailure   = "auth_failure"
	ActionExport        = "export"
	ActionProbe         = "probe"
)

// Entry is one recorded interaction.
type Entry struct {
	ID        string
	Source    string
	Actor     string
	IP        string
	UserAgent string
	Action    string
	Target    string
	Value     string
	Result    string
	Detail    string
	At        time.Time
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// NewID generates a short correlation id.
func NewID() string {
	id := uuid.New()
	return "audit-" + hex.EncodeToString(id[:8])
}
