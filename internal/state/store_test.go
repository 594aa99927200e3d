package state_test

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"smokesignal/internal/models"
	"smokesignal/internal/state"
)

func newStore(t *testing.T, cfg state.Config) *state.Store {
	t.Helper()
	s, err := state.New(cfg)
	if err != nil {
		t.Fatalf("state.New() error = %v", err)
	}
	return s
}

func TestNewStoreValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     state.Config
		wantErr error
	}{
		{"zero capacity", state.Config{WindowCapacity: 0}, state.ErrInvalidCapacity},
		{"negative capacity", state.Config{WindowCapacity: -1}, state.ErrInvalidCapacity},
		{"negative retention", state.Config{WindowCapacity: 5, MaxKeys: -1}, state.ErrInvalidRetention},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := state.New(tt.cfg); !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyTemperature(t *testing.T) {
	s := newStore(t, state.Config{WindowCapacity: 3, StreamKey: "smoker"})

	snap := s.Apply(models.TemperatureEvent{Timestamp: "t1", Temperature: 70.0})
	if snap.Key != "smoker" {
		t.Errorf("Key = %q, want smoker", snap.Key)
	}
	if snap.PrevReading != nil {
		t.Errorf("PrevReading = %v on first event, want nil", *snap.PrevReading)
	}
	if !reflect.DeepEqual(snap.Window, []float64{70.0}) {
		t.Errorf("Window = %v", snap.Window)
	}
	if snap.WindowFull {
		t.Error("window should not be full after one push")
	}

	snap = s.Apply(models.TemperatureEvent{Timestamp: "t2", Temperature: 65.0})
	if snap.PrevReading == nil || *snap.PrevReading != 70.0 {
		t.Errorf("PrevReading = %v, want 70.0", snap.PrevReading)
	}

	// Fill past capacity: window sees post-update state with eviction.
	s.Apply(models.TemperatureEvent{Timestamp: "t3", Temperature: 80.0})
	snap = s.Apply(models.TemperatureEvent{Timestamp: "t4", Temperature: 85.0})
	if !reflect.DeepEqual(snap.Window, []float64{65.0, 80.0, 85.0}) {
		t.Errorf("Window after eviction = %v", snap.Window)
	}
	if !snap.WindowFull {
		t.Error("window should be full")
	}
}

func TestApplyChat(t *testing.T) {
	s := newStore(t, state.Config{WindowCapacity: 5})

	snap := s.Apply(models.ChatEvent{Author: "bob", Content: "hi", Timestamp: 100.0})
	if snap.Key != "bob" {
		t.Errorf("Key = %q, want bob", snap.Key)
	}
	if snap.MessageCount != 1 {
		t.Errorf("MessageCount = %d, want 1", snap.MessageCount)
	}
	if snap.PrevLastSeenAt != nil {
		t.Errorf("PrevLastSeenAt = %v on first message, want nil", *snap.PrevLastSeenAt)
	}

	// The snapshot carries the pre-overwrite last-seen.
	snap = s.Apply(models.ChatEvent{Author: "bob", Content: "again", Timestamp: 103.0})
	if snap.MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", snap.MessageCount)
	}
	if snap.PrevLastSeenAt == nil || *snap.PrevLastSeenAt != 100.0 {
		t.Errorf("PrevLastSeenAt = %v, want 100.0", snap.PrevLastSeenAt)
	}
}

func TestApplyKeysAreIndependent(t *testing.T) {
	s := newStore(t, state.Config{WindowCapacity: 5})

	s.Apply(models.ChatEvent{Author: "bob", Content: "one", Timestamp: 1.0})
	s.Apply(models.ChatEvent{Author: "bob", Content: "two", Timestamp: 2.0})
	snap := s.Apply(models.ChatEvent{Author: "eve", Content: "first", Timestamp: 3.0})

	if snap.MessageCount != 1 {
		t.Errorf("eve MessageCount = %d, want 1", snap.MessageCount)
	}
	if snap.PrevLastSeenAt != nil {
		t.Error("eve should have no previous timestamp")
	}
	if s.TrackedKeys() != 2 {
		t.Errorf("TrackedKeys() = %d, want 2", s.TrackedKeys())
	}
}

func TestBoundedRetentionEvictsOldestKey(t *testing.T) {
	s := newStore(t, state.Config{WindowCapacity: 5, MaxKeys: 2})

	s.Apply(models.ChatEvent{Author: "a", Content: "x", Timestamp: 1.0})
	s.Apply(models.ChatEvent{Author: "b", Content: "x", Timestamp: 2.0})
	s.Apply(models.ChatEvent{Author: "c", Content: "x", Timestamp: 3.0})

	if got := s.TrackedKeys(); got != 2 {
		t.Fatalf("TrackedKeys() = %d, want 2", got)
	}

	// "a" was evicted; its history is gone and it starts over.
	snap := s.Apply(models.ChatEvent{Author: "a", Content: "back", Timestamp: 4.0})
	if snap.MessageCount != 1 {
		t.Errorf("MessageCount after eviction = %d, want 1", snap.MessageCount)
	}
	if snap.PrevLastSeenAt != nil {
		t.Error("evicted author should have no previous timestamp")
	}
}

func TestUnboundedRetentionKeepsAllKeys(t *testing.T) {
	s := newStore(t, state.Config{WindowCapacity: 5})

	for i := 0; i < 50; i++ {
		s.Apply(models.ChatEvent{Author: fmt.Sprintf("author-%d", i), Content: "x", Timestamp: float64(i)})
	}
	if got := s.TrackedKeys(); got != 50 {
		t.Errorf("TrackedKeys() = %d, want 50", got)
	}
}
