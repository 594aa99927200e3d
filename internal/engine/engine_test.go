package engine_test

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smokesignal/internal/engine"
	"smokesignal/internal/logger"
	"smokesignal/internal/models"
)

func init() {
	logger.Logger = zerolog.Nop()
}

// captureSink records every emitted alert in order.
type captureSink struct {
	alerts []models.Alert
}

func (s *captureSink) Emit(a models.Alert) { s.alerts = append(s.alerts, a) }

func newEngine(t *testing.T, sink *captureSink) *engine.Engine {
	t.Helper()
	e, err := engine.New(engine.Config{
		WindowCapacity:    5,
		StallThreshold:    0.2,
		MessageThreshold:  100,
		FrequentTimeFrame: 10.0,
		WatchAuthor:       "alice",
		WatchKeywords:     []string{"urgent", "error"},
		StreamKey:         "smoker",
		Sink:              sink,
	})
	require.NoError(t, err)
	return e
}

func TestNewValidation(t *testing.T) {
	valid := func() engine.Config {
		return engine.Config{
			WindowCapacity:    5,
			StallThreshold:    0.2,
			MessageThreshold:  100,
			FrequentTimeFrame: 10.0,
			Sink:              &captureSink{},
		}
	}

	tests := []struct {
		name   string
		modify func(*engine.Config)
	}{
		{"zero window capacity", func(c *engine.Config) { c.WindowCapacity = 0 }},
		{"negative stall threshold", func(c *engine.Config) { c.StallThreshold = -0.1 }},
		{"zero message threshold", func(c *engine.Config) { c.MessageThreshold = 0 }},
		{"zero time frame", func(c *engine.Config) { c.FrequentTimeFrame = 0 }},
		{"negative retention", func(c *engine.Config) { c.RetentionMaxKeys = -1 }},
		{"nil sink", func(c *engine.Config) { c.Sink = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			_, err := engine.New(cfg)
			assert.ErrorIs(t, err, engine.ErrInvalidConfig)
		})
	}

	_, err := engine.New(valid())
	assert.NoError(t, err)
}

func TestDropSequence(t *testing.T) {
	// [70, 65, 80] produces exactly one temperature drop, on the second
	// reading.
	sink := &captureSink{}
	e := newEngine(t, sink)

	for i, temp := range []float64{70.0, 65.0, 80.0} {
		raw := []byte(fmt.Sprintf(`{"timestamp": "t%d", "temperature": %v}`, i+1, temp))
		_, err := e.Process(raw)
		require.NoError(t, err)
	}

	require.Len(t, sink.alerts, 1)
	assert.Equal(t, models.KindTemperatureDrop, sink.alerts[0].Kind)
	assert.Equal(t, "t2", sink.alerts[0].Timestamp)
	assert.Equal(t, "smoker", sink.alerts[0].Key)
	assert.NotEmpty(t, sink.alerts[0].ID)
}

func TestStallAfterWindowFills(t *testing.T) {
	sink := &captureSink{}
	e := newEngine(t, sink)

	temps := []float64{100.0, 100.1, 100.05, 100.0, 100.1}
	for i, temp := range temps {
		raw := []byte(fmt.Sprintf(`{"timestamp": "t%d", "temperature": %v}`, i+1, temp))
		_, err := e.Process(raw)
		require.NoError(t, err)
	}

	// Two drops along the way (100.1->100.05, 100.05->100.0), then a
	// stall once the fifth reading fills the window.
	var stalls, drops int
	for _, a := range sink.alerts {
		switch a.Kind {
		case models.KindStallDetected:
			stalls++
		case models.KindTemperatureDrop:
			drops++
		}
	}
	assert.Equal(t, 1, stalls)
	assert.Equal(t, 2, drops)
	assert.Equal(t, models.KindStallDetected, sink.alerts[len(sink.alerts)-1].Kind)
}

func TestFrequentMessagesThroughPipeline(t *testing.T) {
	sink := &captureSink{}
	e := newEngine(t, sink)

	_, err := e.Process([]byte(`{"author": "bob", "message": "one", "timestamp": 100.0}`))
	require.NoError(t, err)
	require.Empty(t, sink.alerts, "first message is never frequent")

	alerts, err := e.Process([]byte(`{"author": "bob", "message": "two", "timestamp": 103.0}`))
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.KindFrequentMessages, alerts[0].Kind)

	alerts, err = e.Process([]byte(`{"author": "bob", "message": "three", "timestamp": 118.0}`))
	require.NoError(t, err)
	assert.Empty(t, alerts, "15 seconds apart is not frequent")
}

func TestMalformedPayloadIsolation(t *testing.T) {
	// An invalid payload is dropped and counted; the next valid event
	// sees uncorrupted state.
	sink := &captureSink{}
	e := newEngine(t, sink)

	_, err := e.Process([]byte(`{"timestamp": "t1", "temperature": 70.0}`))
	require.NoError(t, err)

	_, err = e.Process([]byte(`{not json`))
	require.ErrorIs(t, err, models.ErrMalformedPayload)

	alerts, err := e.Process([]byte(`{"timestamp": "t2", "temperature": 65.0}`))
	require.NoError(t, err)
	require.Len(t, alerts, 1, "drop detection must survive the malformed payload")
	assert.Equal(t, models.KindTemperatureDrop, alerts[0].Kind)

	stats := e.Stats()
	assert.Equal(t, uint64(2), stats.Processed)
	assert.Equal(t, uint64(1), stats.Dropped)
}

func TestMissingFieldLeavesStateUntouched(t *testing.T) {
	sink := &captureSink{}
	e := newEngine(t, sink)

	_, err := e.Process([]byte(`{"timestamp": "t1", "temperature": 100.0}`))
	require.NoError(t, err)

	// Mistyped temperature: rejected before any state update.
	_, err = e.Process([]byte(`{"timestamp": "t2", "temperature": "hot"}`))
	require.ErrorIs(t, err, models.ErrMissingField)

	// No drop alert: previous reading is still 100.0, not corrupted.
	alerts, err := e.Process([]byte(`{"timestamp": "t3", "temperature": 100.0}`))
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestMixedStreams(t *testing.T) {
	// Temperature and chat events share one engine without interfering.
	sink := &captureSink{}
	e := newEngine(t, sink)

	_, err := e.Process([]byte(`{"timestamp": "t1", "temperature": 145.0}`))
	require.NoError(t, err)

	_, err = e.Process([]byte(`{"author": "Alice", "message": "urgent: check the smoker", "timestamp": 50.0}`))
	require.NoError(t, err)

	require.Len(t, sink.alerts, 3)
	assert.Equal(t, models.KindReadyThreshold, sink.alerts[0].Kind)
	assert.Equal(t, models.KindImportantAuthor, sink.alerts[1].Kind)
	assert.Equal(t, models.KindKeywordMatch, sink.alerts[2].Kind)
	assert.Equal(t, "smoker", sink.alerts[0].Key)
	assert.Equal(t, "Alice", sink.alerts[1].Key)
}

func TestAlertIDsAreUnique(t *testing.T) {
	sink := &captureSink{}
	e := newEngine(t, sink)

	_, err := e.Process([]byte(`{"author": "Alice", "message": "urgent error", "timestamp": 1.0}`))
	require.NoError(t, err)

	require.Len(t, sink.alerts, 2)
	assert.NotEqual(t, sink.alerts[0].ID, sink.alerts[1].ID)
}
