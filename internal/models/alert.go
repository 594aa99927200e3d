package models

// Kind identifies which alert rule fired.
type Kind string

const (
	KindTemperatureDrop  Kind = "temperature_drop"
	KindOverTemp         Kind = "over_temp"
	KindReadyThreshold   Kind = "ready_threshold"
	KindStallDetected    Kind = "stall_detected"
	KindFrequentMessages Kind = "frequent_messages"
	KindImportantAuthor  Kind = "important_author"
	KindVolumeThreshold  Kind = "volume_threshold"
	KindKeywordMatch     Kind = "keyword_match"
)

// IsValid reports whether the kind is one of the known alert kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindTemperatureDrop, KindOverTemp, KindReadyThreshold, KindStallDetected,
		KindFrequentMessages, KindImportantAuthor, KindVolumeThreshold, KindKeywordMatch:
		return true
	default:
		return false
	}
}

// Alert is one emitted alert record.
type Alert struct {
	// Unique identifier assigned by the engine at emit time
	ID string `json:"id"`

	// Which rule fired
	Kind Kind `json:"kind"`

	// The subject: an author for chat rules, a stream id for temperature rules
	Key string `json:"key"`

	// Human-readable description
	Message string `json:"message"`

	// Timestamp of the triggering event, as carried on the wire
	Timestamp string `json:"timestamp"`
}
