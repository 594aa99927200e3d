package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Decode errors
var (
	// ErrMalformedPayload means the raw payload was not a JSON object.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrMissingField means a required field was absent or had the wrong type.
	ErrMissingField = errors.New("missing or mistyped field")
)

// Event is a decoded stream event. Exactly two shapes exist:
// TemperatureEvent and ChatEvent.
type Event interface {
	isEvent()
}

// TemperatureEvent is a single reading from the temperature stream.
// The timestamp is an opaque ordering key and is never parsed.
type TemperatureEvent struct {
	Timestamp   string  `json:"timestamp"`
	Temperature float64 `json:"temperature"`
}

func (TemperatureEvent) isEvent() {}

// ChatEvent is a single author/content message. Timestamp is epoch seconds.
type ChatEvent struct {
	Author    string  `json:"author"`
	Content   string  `json:"message"`
	Timestamp float64 `json:"timestamp"`
}

func (ChatEvent) isEvent() {}

// Decode classifies a raw payload by which required fields are present and
// returns the typed event. The shape is decided once, here; nothing
// downstream re-inspects the payload.
func Decode(raw []byte) (Event, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: payload is not an object", ErrMalformedPayload)
	}

	if _, ok := obj["temperature"]; ok {
		return decodeTemperature(obj)
	}
	if _, ok := obj["author"]; ok {
		return decodeChat(obj)
	}
	return nil, fmt.Errorf("%w: neither temperature nor author present", ErrMissingField)
}

func decodeTemperature(obj map[string]json.RawMessage) (Event, error) {
	var ev TemperatureEvent

	// Decode through a pointer so a JSON null is rejected, not zeroed.
	var temp *float64
	if err := json.Unmarshal(obj["temperature"], &temp); err != nil || temp == nil {
		return nil, fmt.Errorf("%w: temperature", ErrMissingField)
	}
	ev.Temperature = *temp

	tsRaw, ok := obj["timestamp"]
	if !ok {
		return nil, fmt.Errorf("%w: timestamp", ErrMissingField)
	}
	ts, err := decodeOrderingKey(tsRaw)
	if err != nil {
		return nil, err
	}
	ev.Timestamp = ts

	return ev, nil
}

func decodeChat(obj map[string]json.RawMessage) (Event, error) {
	var ev ChatEvent

	var author *string
	if err := json.Unmarshal(obj["author"], &author); err != nil || author == nil {
		return nil, fmt.Errorf("%w: author", ErrMissingField)
	}
	ev.Author = *author

	msgRaw, ok := obj["message"]
	if !ok {
		return nil, fmt.Errorf("%w: message", ErrMissingField)
	}
	var content *string
	if err := json.Unmarshal(msgRaw, &content); err != nil || content == nil {
		return nil, fmt.Errorf("%w: message", ErrMissingField)
	}
	ev.Content = *content

	tsRaw, ok := obj["timestamp"]
	if !ok {
		return nil, fmt.Errorf("%w: timestamp", ErrMissingField)
	}
	var ts *float64
	if err := json.Unmarshal(tsRaw, &ts); err != nil || ts == nil {
		return nil, fmt.Errorf("%w: timestamp", ErrMissingField)
	}
	ev.Timestamp = *ts

	return ev, nil
}

// decodeOrderingKey accepts a string or numeric timestamp and returns its
// string form. Temperature feeds historically carry either.
func decodeOrderingKey(raw json.RawMessage) (string, error) {
	var s *string
	if err := json.Unmarshal(raw, &s); err == nil && s != nil {
		return *s, nil
	}
	var f *float64
	if err := json.Unmarshal(raw, &f); err == nil && f != nil {
		return strconv.FormatFloat(*f, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("%w: timestamp", ErrMissingField)
}
