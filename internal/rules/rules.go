// Package rules evaluates the fixed alert rule set against a freshly
// updated state snapshot. Every rule is total over anything the store can
// produce; all applicable rules fire, in a fixed order.
package rules

import (
	"fmt"
	"strconv"
	"strings"

	"smokesignal/internal/models"
	"smokesignal/internal/state"
)

// Config holds rule thresholds, immutable after construction.
type Config struct {
	// Temperature at or above which OverTemp fires
	OverTempThreshold float64

	// Temperature at or above which ReadyThreshold fires, unless
	// OverTemp already did
	ReadyThreshold float64

	// Maximum full-window range still considered a stall
	StallThreshold float64

	// Message count at or above which VolumeThreshold fires
	MessageThreshold int

	// Seconds within which a repeat message counts as frequent
	FrequentTimeFrame float64

	// Author watched by ImportantAuthor, matched case-insensitively
	WatchAuthor string

	// Keywords watched by KeywordMatch, matched case-insensitively
	WatchKeywords []string
}

// Engine evaluates the rule set. Evaluate is a pure function of its
// arguments; the engine carries only pre-lowered configuration.
type Engine struct {
	cfg         Config
	watchAuthor string
	keywords    []string
}

// New constructs a rule engine from config.
func New(cfg Config) *Engine {
	keywords := make([]string, 0, len(cfg.WatchKeywords))
	for _, kw := range cfg.WatchKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return &Engine{
		cfg:         cfg,
		watchAuthor: strings.ToLower(cfg.WatchAuthor),
		keywords:    keywords,
	}
}

// Evaluate runs every applicable rule against the event and its post-update
// snapshot, returning alerts in rule order. Alert IDs are left empty; the
// caller assigns them at emit time.
func (e *Engine) Evaluate(ev models.Event, snap state.Snapshot) []models.Alert {
	switch event := ev.(type) {
	case models.TemperatureEvent:
		return e.evaluateTemperature(event, snap)
	case models.ChatEvent:
		return e.evaluateChat(event, snap)
	default:
		return nil
	}
}

func (e *Engine) evaluateTemperature(ev models.TemperatureEvent, snap state.Snapshot) []models.Alert {
	var alerts []models.Alert

	// Drop: previous reading strictly greater than this one. Tracked
	// one-deep, independent of the window.
	if snap.PrevReading != nil && *snap.PrevReading > ev.Temperature {
		alerts = append(alerts, models.Alert{
			Kind:      models.KindTemperatureDrop,
			Key:       snap.Key,
			Timestamp: ev.Timestamp,
			Message: fmt.Sprintf("temperature dropped from %.1f°F to %.1f°F at timestamp %s",
				*snap.PrevReading, ev.Temperature, ev.Timestamp),
		})
	}

	// OverTemp and ReadyThreshold are mutually exclusive: the ready check
	// is skipped once the over-temperature check fires.
	if ev.Temperature >= e.cfg.OverTempThreshold {
		alerts = append(alerts, models.Alert{
			Kind:      models.KindOverTemp,
			Key:       snap.Key,
			Timestamp: ev.Timestamp,
			Message: fmt.Sprintf("overcooked: reached %.1f°F at timestamp %s",
				ev.Temperature, ev.Timestamp),
		})
	} else if ev.Temperature >= e.cfg.ReadyThreshold {
		alerts = append(alerts, models.Alert{
			Kind:      models.KindReadyThreshold,
			Key:       snap.Key,
			Timestamp: ev.Timestamp,
			Message: fmt.Sprintf("ready: reached %.1f°F at timestamp %s",
				ev.Temperature, ev.Timestamp),
		})
	}

	if verdict, ok := state.Analyze(snap, e.cfg.StallThreshold); ok && verdict.Stalled {
		alerts = append(alerts, models.Alert{
			Kind:      models.KindStallDetected,
			Key:       snap.Key,
			Timestamp: ev.Timestamp,
			Message: fmt.Sprintf("stall detected at timestamp %s: range %.2f°F over last %d readings",
				ev.Timestamp, verdict.Range, len(snap.Window)),
		})
	}

	return alerts
}

func (e *Engine) evaluateChat(ev models.ChatEvent, snap state.Snapshot) []models.Alert {
	var alerts []models.Alert
	ts := strconv.FormatFloat(ev.Timestamp, 'f', -1, 64)

	// Frequent: a previous timestamp must exist; a brand-new author is
	// never frequent.
	if snap.PrevLastSeenAt != nil && ev.Timestamp-*snap.PrevLastSeenAt <= e.cfg.FrequentTimeFrame {
		alerts = append(alerts, models.Alert{
			Kind:      models.KindFrequentMessages,
			Key:       snap.Key,
			Timestamp: ts,
			Message: fmt.Sprintf("%s sent multiple messages within %.0f seconds",
				ev.Author, e.cfg.FrequentTimeFrame),
		})
	}

	if e.watchAuthor != "" && strings.ToLower(ev.Author) == e.watchAuthor {
		alerts = append(alerts, models.Alert{
			Kind:      models.KindImportantAuthor,
			Key:       snap.Key,
			Timestamp: ts,
			Message:   fmt.Sprintf("message received from watched author %q", ev.Author),
		})
	}

	// Level-triggered: keeps firing on every message past the threshold.
	if e.cfg.MessageThreshold > 0 && snap.MessageCount >= e.cfg.MessageThreshold {
		alerts = append(alerts, models.Alert{
			Kind:      models.KindVolumeThreshold,
			Key:       snap.Key,
			Timestamp: ts,
			Message: fmt.Sprintf("%s has sent %d messages, consider reviewing",
				ev.Author, snap.MessageCount),
		})
	}

	if kw, ok := e.matchKeyword(ev.Content); ok {
		alerts = append(alerts, models.Alert{
			Kind:      models.KindKeywordMatch,
			Key:       snap.Key,
			Timestamp: ts,
			Message: fmt.Sprintf("message from %s contains keyword %q: %s",
				ev.Author, kw, ev.Content),
		})
	}

	return alerts
}

// matchKeyword returns the first configured keyword contained in the
// content, case-insensitively. One alert per event even if several match.
func (e *Engine) matchKeyword(content string) (string, bool) {
	lowered := strings.ToLower(content)
	for _, kw := range e.keywords {
		if strings.Contains(lowered, kw) {
			return kw, true
		}
	}
	return "", false
}
