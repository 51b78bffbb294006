package telemetry

import (
	"fwautotune/pkg/autotune"
	"fwautotune/pkg/gains"
)

// Multi fans every telemetry callback out to a fixed set of sinks, in
// order. A nil entry is skipped, so callers can build the list
// conditionally (e.g. the websocket sink only when broadcasting is
// enabled) without a separate presence check at each call site.
type Multi []autotune.Sink

func (m Multi) WriteBlock(r autotune.Record) {
	for _, s := range m {
		if s != nil {
			s.WriteBlock(r)
		}
	}
}

func (m Multi) NotifyAction(axis gains.Axis, action gains.Action) {
	for _, s := range m {
		if s != nil {
			s.NotifyAction(axis, action)
		}
	}
}

func (m Multi) NotifySave(axis gains.Axis) {
	for _, s := range m {
		if s != nil {
			s.NotifySave(axis)
		}
	}
}
