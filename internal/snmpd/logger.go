package snmpd

import (
	"fmt"

	"github.com/rs/zerolog"
)

// agentLogger adapts zerolog to the SNMP library's logger interface.
// Fatal maps to error; the agent must never take the plant down.
type agentLogger struct {
	log zerolog.Logger
}

func (l *agentLogger) Debug(args ...interface{}) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l *agentLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}
func (l *agentLogger) Error(args ...interface{}) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l *agentLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf(format, args...)
}
func (l *agentLogger) Fatal(args ...interface{}) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l *agentLogger) Fatalf(format string, args ...interface{}) {
	l.log.Error().Msgf(format, args...)
}
func (l *agentLogger) Info(args ...interface{}) { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l *agentLogger) Infof(format string, args ...interface{}) {
	l.log.Info().Msgf(format, args...)
}
func (l *agentLogger) Trace(args ...interface{}) { l.log.Trace().Msg(fmt.Sprint(args...)) }
func (l *agentLogger) Tracef(format string, args ...interface{}) {
	l.log.Trace().Msgf(format, args...)
}
func (l *agentLogger) Warn(args ...interface{}) { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l *agentLogger) Warnf(format string, args ...interface{}) {
	l.log.Warn().Msgf(format, args...)
}
