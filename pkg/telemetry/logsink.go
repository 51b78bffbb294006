// Package telemetry provides the concrete autotune.Sink implementations
// the SITL harness wires together: a structured-log sink, a Prometheus
// metrics sink, a websocket broadcaster for ground-station clients, and
// a Multi sink that fans a single record out to all three. None of them
// hold any state the autotune core depends on — a Sink is pure output.
package telemetry

import (
	"fwautotune/pkg/autotune"
	"fwautotune/pkg/gains"
	"fwautotune/pkg/log"
)

// LogSink writes every autotune.Record through a structured logger, one
// logger per axis (autotune.roll / autotune.pitch), matching how the
// rest of this codebase names per-component loggers.
type LogSink struct {
	loggers [2]*log.Logger
}

// NewLogSink builds a LogSink on top of base, deriving one WithPrefix
// child logger per axis.
func NewLogSink(base *log.Logger) *LogSink {
	return &LogSink{
		loggers: [2]*log.Logger{
			base.WithPrefix("autotune.roll"),
			base.WithPrefix("autotune.pitch"),
		},
	}
}

func (s *LogSink) logger(axis gains.Axis) *log.Logger {
	return s.loggers[axis]
}

func (s *LogSink) WriteBlock(r autotune.Record) {
	s.logger(r.Axis).WithFields(log.Fields{
		"ts_us":        r.TimestampUS,
		"state":        r.State.String(),
		"actuator":     r.Actuator,
		"desired_rate": r.DesiredRate,
		"actual_rate":  r.ActualRate,
		"ff_single":    r.FFSingle,
		"ff":           r.FF,
		"p":            r.P,
		"i":            r.I,
		"d":            r.D,
		"action":       r.Action.String(),
		"rmax_pos":     r.RMaxPos,
		"tau":          r.Tau,
	}).Debug("autotune tick")
}

func (s *LogSink) NotifyAction(axis gains.Axis, action gains.Action) {
	s.logger(axis).WithField("action", action.String()).Info("gain-law action")
}

func (s *LogSink) NotifySave(axis gains.Axis) {
	s.logger(axis).Info("gains persisted")
}
