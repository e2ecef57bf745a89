// Package debounce contains the pure key-debouncing core.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters; the tick cadence is the
// caller's responsibility.
package debounce

import "time"

// EventType classifies a consumed key event.
type EventType string

const (
	EventPress  EventType = "PRESS"
	EventRepeat EventType = "REPEAT"
	EventShort  EventType = "SHORT"
	EventLong   EventType = "LONG"
)

// KeyEvent represents one consumed key event to be published.
type KeyEvent struct {
	Timestamp time.Time
	Type      EventType
	Key       int   // key index, 0-7
	Held      uint8 // debounced key mask at consumption time
}

// Config holds the repeat timing parameters, in ticks.
type Config struct {
	// RepeatStart is the number of held ticks before the first repeat
	// event. At a 10ms tick the default of 50 is 500ms.
	RepeatStart int
	// RepeatNext is the number of ticks between subsequent repeats.
	// Default 20 (200ms at a 10ms tick).
	RepeatNext int
	// RepeatMask selects which keys participate in repeat.
	RepeatMask uint8
}

// Default repeat timing for a 10ms tick.
const (
	DefaultRepeatStart = 50
	DefaultRepeatNext  = 20
)

// withDefaults fills in zero fields.
func (c Config) withDefaults() Config {
	if c.RepeatStart <= 0 {
		c.RepeatStart = DefaultRepeatStart
	}
	if c.RepeatNext <= 0 {
		c.RepeatNext = DefaultRepeatNext
	}
	return c
}

// EventCounts tracks the number of consumed events per class since startup.
type EventCounts struct {
	Presses int
	Repeats int
	Shorts  int
	Longs   int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}

// KeysOf returns the key indices of the set bits in mask, ascending.
func KeysOf(mask uint8) []int {
	var keys []int
	for i := 0; i < 8; i++ {
		if mask&(1<<i) != 0 {
			keys = append(keys, i)
		}
	}
	return keys
}
