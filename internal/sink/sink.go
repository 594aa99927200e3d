package sink

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"smokesignal/internal/logger"
	"smokesignal/internal/models"
)

// Sink receives emitted alerts, one call per alert, in rule-evaluation
// order. Implementations must not block the caller.
type Sink interface {
	Emit(alert models.Alert)
}

// LogSink writes each alert as a structured warning log line, the
// reference surfacing behavior.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a sink logging under the alerts component.
func NewLogSink() *LogSink {
	return &LogSink{log: logger.WithComponent("alerts")}
}

func (s *LogSink) Emit(alert models.Alert) {
	s.log.Warn().
		Str("alert_id", alert.ID).
		Str("kind", string(alert.Kind)).
		Str("key", alert.Key).
		Str("timestamp", alert.Timestamp).
		Msg(alert.Message)
}

// ChanSink forwards alerts to a buffered channel for embedding callers.
// When the buffer is full the alert is dropped and counted rather than
// blocking the event loop.
type ChanSink struct {
	ch      chan models.Alert
	dropped atomic.Uint64
}

// NewChanSink creates a channel sink with the given buffer size.
func NewChanSink(buffer int) *ChanSink {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChanSink{ch: make(chan models.Alert, buffer)}
}

func (s *ChanSink) Emit(alert models.Alert) {
	select {
	case s.ch <- alert:
	default:
		s.dropped.Add(1)
	}
}

// Alerts returns the receive side of the sink.
func (s *ChanSink) Alerts() <-chan models.Alert { return s.ch }

// Dropped returns how many alerts were discarded on a full buffer.
func (s *ChanSink) Dropped() uint64 { return s.dropped.Load() }

// Multi fans one alert out to several sinks in order.
type Multi []Sink

func (m Multi) Emit(alert models.Alert) {
	for _, s := range m {
		s.Emit(alert)
	}
}
