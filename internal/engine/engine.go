// Package engine ties the pipeline together: decode one raw payload,
// apply it to per-key state, evaluate the alert rules, and hand each
// resulting alert to the sink. One event at a time, in arrival order.
package engine

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"smokesignal/internal/logger"
	"smokesignal/internal/metrics"
	"smokesignal/internal/models"
	"smokesignal/internal/rules"
	"smokesignal/internal/sink"
	"smokesignal/internal/state"
)

// ErrInvalidConfig is returned by New for thresholds the engine cannot
// run with. Construction failures are fatal; there is no partial engine.
var ErrInvalidConfig = errors.New("invalid engine config")

// Reference thresholds for the temperature rules.
const (
	OverTempDegrees = 150.0
	ReadyDegrees    = 140.0
)

// Config holds engine construction parameters, immutable afterwards.
type Config struct {
	WindowCapacity    int
	StallThreshold    float64
	MessageThreshold  int
	FrequentTimeFrame float64 // seconds
	WatchAuthor       string
	WatchKeywords     []string

	// Key assigned to the single temperature stream
	StreamKey string

	// Bounded key retention; 0 keeps every key forever
	RetentionMaxKeys int

	// Destination for emitted alerts
	Sink sink.Sink
}

// Engine is the streaming window and alert-rule engine.
type Engine struct {
	store *state.Store
	rules *rules.Engine
	sink  sink.Sink
	log   zerolog.Logger

	processed atomic.Uint64
	dropped   atomic.Uint64
	emitted   atomic.Uint64
}

// New validates the config and constructs an engine.
func New(cfg Config) (*Engine, error) {
	if cfg.WindowCapacity <= 0 {
		return nil, fmt.Errorf("%w: window capacity %d", ErrInvalidConfig, cfg.WindowCapacity)
	}
	if cfg.StallThreshold < 0 {
		return nil, fmt.Errorf("%w: stall threshold %f", ErrInvalidConfig, cfg.StallThreshold)
	}
	if cfg.MessageThreshold <= 0 {
		return nil, fmt.Errorf("%w: message threshold %d", ErrInvalidConfig, cfg.MessageThreshold)
	}
	if cfg.FrequentTimeFrame <= 0 {
		return nil, fmt.Errorf("%w: frequent time frame %f", ErrInvalidConfig, cfg.FrequentTimeFrame)
	}
	if cfg.RetentionMaxKeys < 0 {
		return nil, fmt.Errorf("%w: retention max keys %d", ErrInvalidConfig, cfg.RetentionMaxKeys)
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("%w: sink is required", ErrInvalidConfig)
	}

	store, err := state.New(state.Config{
		WindowCapacity: cfg.WindowCapacity,
		StreamKey:      cfg.StreamKey,
		MaxKeys:        cfg.RetentionMaxKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	ruleEngine := rules.New(rules.Config{
		OverTempThreshold: OverTempDegrees,
		ReadyThreshold:    ReadyDegrees,
		StallThreshold:    cfg.StallThreshold,
		MessageThreshold:  cfg.MessageThreshold,
		FrequentTimeFrame: cfg.FrequentTimeFrame,
		WatchAuthor:       cfg.WatchAuthor,
		WatchKeywords:     cfg.WatchKeywords,
	})

	return &Engine{
		store: store,
		rules: ruleEngine,
		sink:  cfg.Sink,
		log:   logger.WithComponent("engine"),
	}, nil
}

// Process runs one raw payload through decode, state update, and rule
// evaluation, emitting each alert to the sink. A decode failure leaves
// all state untouched and returns the decode error; the caller drops the
// payload and continues with the next.
func (e *Engine) Process(raw []byte) ([]models.Alert, error) {
	start := time.Now()

	ev, err := models.Decode(raw)
	if err != nil {
		e.dropped.Add(1)
		metrics.EventsDroppedTotal.WithLabelValues(dropReason(err)).Inc()
		e.log.Error().Err(err).Str("payload", truncate(raw, 256)).Msg("payload dropped")
		return nil, err
	}

	snap := e.store.Apply(ev)
	alerts := e.rules.Evaluate(ev, snap)

	for i := range alerts {
		alerts[i].ID = uuid.NewString()
		e.sink.Emit(alerts[i])
		metrics.AlertsEmittedTotal.WithLabelValues(string(alerts[i].Kind)).Inc()
	}

	e.processed.Add(1)
	e.emitted.Add(uint64(len(alerts)))

	switch ev.(type) {
	case models.TemperatureEvent:
		metrics.EventsConsumedTotal.WithLabelValues("temperature").Inc()
		metrics.WindowFill.Set(float64(len(snap.Window)))
	case models.ChatEvent:
		metrics.EventsConsumedTotal.WithLabelValues("chat").Inc()
	}
	metrics.TrackedKeys.Set(float64(e.store.TrackedKeys()))
	metrics.ProcessDuration.Observe(time.Since(start).Seconds())

	return alerts, nil
}

// Stats holds engine counters.
type Stats struct {
	Processed   uint64
	Dropped     uint64
	Emitted     uint64
	TrackedKeys int
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Processed:   e.processed.Load(),
		Dropped:     e.dropped.Load(),
		Emitted:     e.emitted.Load(),
		TrackedKeys: e.store.TrackedKeys(),
	}
}

func dropReason(err error) string {
	if errors.Is(err, models.ErrMissingField) {
		return "missing_field"
	}
	return "malformed"
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
