// Package status provides a thread-safe status tracker for the keypad-sensor
// daemon. It is designed to be read by HTTP handlers and (future) LED drivers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/keypad-sensor/internal/debounce"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	TickMs           int64
	RepeatStartTicks int
	RepeatNextTicks  int
	RepeatMask       uint8
	ShortLongMask    uint8
	HeartbeatMs      int64
	Broker           string
	HTTPAddr         string
	WSBroker         string // Websocket broker URL for browser MQTT (empty = disabled)
	Pins             []int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	Keys          uint8 // debounced key mask, bit set = held
	Ticks         uint64
	Counts        debounce.EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// HeldKeys returns the indices of the keys currently held.
func (s Snapshot) HeldKeys() []int {
	return debounce.KeysOf(s.Keys)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the debounced key mask, tick count, and event counts.
// Called from the run loop on every tick.
func (t *Tracker) Update(keys uint8, ticks uint64, counts debounce.EventCounts) {
	t.mu.Lock()
	t.snap.Keys = keys
	t.snap.Ticks = ticks
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
