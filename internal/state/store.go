package state

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"smokesignal/internal/models"
)

// Construction errors
var (
	ErrInvalidCapacity  = errors.New("window capacity must be positive")
	ErrInvalidRetention = errors.New("retention max keys must be non-negative")
)

// Config holds Store construction parameters, immutable afterwards.
type Config struct {
	// Sliding window capacity per key
	WindowCapacity int

	// Key assigned to the single temperature stream
	StreamKey string

	// Maximum number of tracked keys; 0 means unbounded (the reference
	// behavior). When positive, the least-recently-seen key is evicted
	// along with its whole history.
	MaxKeys int
}

// keyState is everything the store tracks for one key.
type keyState struct {
	window       *SlidingWindow
	prevReading  *float64
	messageCount int
	lastSeenAt   *float64
}

// Store owns all per-key state: one sliding window and one-deep previous
// reading per numeric stream, message counters and last-seen timestamps
// per author. All mutation goes through Apply. The store is safe for
// concurrent use, though correctness only requires per-key ordering.
type Store struct {
	mu  sync.Mutex
	cfg Config

	keys     map[string]*keyState          // unbounded mode
	retained *lru.Cache[string, *keyState] // bounded mode
}

// New constructs a Store. Fails on non-positive window capacity or a
// negative retention bound.
func New(cfg Config) (*Store, error) {
	if cfg.WindowCapacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, cfg.WindowCapacity)
	}
	if cfg.MaxKeys < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRetention, cfg.MaxKeys)
	}
	if cfg.StreamKey == "" {
		cfg.StreamKey = "stream"
	}

	s := &Store{cfg: cfg}
	if cfg.MaxKeys > 0 {
		cache, err := lru.New[string, *keyState](cfg.MaxKeys)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRetention, err)
		}
		s.retained = cache
	} else {
		s.keys = make(map[string]*keyState)
	}
	return s, nil
}

// Snapshot is the post-update view of one key's state, as seen by rule
// evaluation for the event that produced it.
type Snapshot struct {
	// The subject key (stream id or author)
	Key string

	// Window contents after this event's push, arrival order
	Window []float64

	// Whether the window has reached capacity
	WindowFull bool

	// The reading immediately before this one, nil on the first
	PrevReading *float64

	// Messages seen from this author, including this one
	MessageCount int

	// The author's last-seen timestamp before this event overwrote it
	PrevLastSeenAt *float64
}

// Apply updates the state for the event's key and returns the post-update
// snapshot. Updates for the same key are applied in call order.
func (s *Store) Apply(ev models.Event) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := ev.(type) {
	case models.TemperatureEvent:
		return s.applyTemperature(e)
	case models.ChatEvent:
		return s.applyChat(e)
	default:
		// Decode produces only the two shapes above.
		return Snapshot{}
	}
}

func (s *Store) applyTemperature(ev models.TemperatureEvent) Snapshot {
	ks := s.lookup(s.cfg.StreamKey)

	prev := ks.prevReading
	ks.window.Push(ev.Temperature)
	t := ev.Temperature
	ks.prevReading = &t

	return Snapshot{
		Key:         s.cfg.StreamKey,
		Window:      ks.window.Values(),
		WindowFull:  ks.window.Full(),
		PrevReading: prev,
	}
}

func (s *Store) applyChat(ev models.ChatEvent) Snapshot {
	ks := s.lookup(ev.Author)

	prevSeen := ks.lastSeenAt
	ks.messageCount++
	ts := ev.Timestamp
	ks.lastSeenAt = &ts

	return Snapshot{
		Key:            ev.Author,
		MessageCount:   ks.messageCount,
		PrevLastSeenAt: prevSeen,
	}
}

// lookup returns the state for a key, creating it on first sight. In
// bounded mode the lookup refreshes the key's recency.
func (s *Store) lookup(key string) *keyState {
	if s.retained != nil {
		if ks, ok := s.retained.Get(key); ok {
			return ks
		}
		ks := s.newKeyState()
		s.retained.Add(key, ks)
		return ks
	}

	ks, ok := s.keys[key]
	if !ok {
		ks = s.newKeyState()
		s.keys[key] = ks
	}
	return ks
}

func (s *Store) newKeyState() *keyState {
	return &keyState{window: NewSlidingWindow(s.cfg.WindowCapacity)}
}

// TrackedKeys returns the number of keys currently held.
func (s *Store) TrackedKeys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retained != nil {
		return s.retained.Len()
	}
	return len(s.keys)
}
