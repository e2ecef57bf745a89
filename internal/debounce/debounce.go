package debounce

import (
	"math/bits"
	"sync"
	"time"
)

// Debouncer filters up to eight key inputs sampled once per tick and
// classifies presses, repeats, and short/long holds.
//
// All eight keys are debounced in parallel: instead of one counter per key,
// ct0 and ct1 hold a 2-bit up-counter per key, bit-sliced across two bytes,
// so the whole bank updates in a handful of byte-wide boolean operations. A
// key's debounced level flips only after its raw level has disagreed with it
// for three consecutive ticks.
//
// The repeat countdown is a single scalar shared by every key in RepeatMask.
// A second repeat-eligible key pressed while another is already held joins
// the in-flight cadence rather than getting its own fresh RepeatStart delay.
//
// Tick runs on the sampling cadence; the Consume methods run from any other
// goroutine. The mutex makes every read-and-clear indivisible with respect
// to the tick update, so an event bit is never lost or delivered twice.
type Debouncer struct {
	mu sync.Mutex

	cfg Config

	state  uint8 // debounced key levels, bit set = held
	press  uint8 // unconsumed 0->1 transitions
	repeat uint8 // unconsumed repeat events

	ct0, ct1 uint8 // bit-sliced 2-bit counters, one per key
	rpt      int   // shared repeat countdown, in ticks

	ticks         uint64
	counts        EventCounts
	startTime     time.Time
	lastHeartbeat time.Time
}

// NewDebouncer creates a Debouncer with the given repeat configuration.
// The startTime is used for calculating uptime in heartbeat events.
func NewDebouncer(cfg Config, startTime time.Time) *Debouncer {
	cfg = cfg.withDefaults()
	return &Debouncer{
		cfg:           cfg,
		rpt:           cfg.RepeatStart,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Tick integrates one raw input snapshot. Call it exactly once per sampling
// period. Bit i of raw must be 1 while key i's line is asserted (any
// active-low inversion happens at sample time, in the GPIO layer).
func (d *Debouncer) Tick(raw uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()

	changed := d.state ^ raw

	// Increment the per-key 2-bit counters where the raw level disagrees
	// with the debounced level, reset them to zero where it agrees.
	ct0 := changed &^ d.ct0
	ct1 := changed & (d.ct1 ^ d.ct0)

	// A key is confirmed once its counter reaches 3 while still disagreeing.
	confirmed := changed & ct0 & ct1
	d.ct0 = ct0 &^ confirmed
	d.ct1 = ct1 &^ confirmed

	d.state ^= confirmed
	d.press |= d.state & confirmed // 0->1 transitions only

	if d.state&d.cfg.RepeatMask == 0 {
		d.rpt = d.cfg.RepeatStart
	} else {
		d.rpt--
		if d.rpt == 0 {
			d.rpt = d.cfg.RepeatNext
			d.repeat |= d.state & d.cfg.RepeatMask
		}
	}

	d.ticks++
}

// ConsumePress returns and clears the pending press bits selected by mask.
// A press bit is delivered to at most one caller.
func (d *Debouncer) ConsumePress(mask uint8) uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	got := d.consumePress(mask)
	d.counts.Presses += bits.OnesCount8(got)
	return got
}

// ConsumeRepeat returns and clears the pending repeat bits selected by mask.
func (d *Debouncer) ConsumeRepeat(mask uint8) uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	got := d.consumeRepeat(mask)
	d.counts.Repeats += bits.OnesCount8(got)
	return got
}

// ConsumeShortPress returns and clears pending presses for keys that are no
// longer held, i.e. keys that were pressed and released between queries.
// Sampling the debounced state and consuming the press is one atomic unit.
func (d *Debouncer) ConsumeShortPress(mask uint8) uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	got := d.consumePress(mask &^ d.state)
	d.counts.Shorts += bits.OnesCount8(got)
	return got
}

// ConsumeLongPress returns the keys whose first repeat just fired, delivered
// once per hold. The repeat bits are consumed first; the result then selects
// which press bits to consume, so a later ConsumePress for the same key
// returns nothing.
func (d *Debouncer) ConsumeLongPress(mask uint8) uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	got := d.consumePress(d.consumeRepeat(mask))
	d.counts.Longs += bits.OnesCount8(got)
	return got
}

func (d *Debouncer) consumePress(mask uint8) uint8 {
	mask &= d.press
	d.press ^= mask
	return mask
}

func (d *Debouncer) consumeRepeat(mask uint8) uint8 {
	mask &= d.repeat
	d.repeat ^= mask
	return mask
}

// State returns the current debounced key mask.
func (d *Debouncer) State() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Ticks returns the number of Tick calls since startup.
func (d *Debouncer) Ticks() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ticks
}

// EventCountsSnapshot returns a copy of the consumed-event counters.
func (d *Debouncer) EventCountsSnapshot() EventCounts {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since
// the last heartbeat (or startup). Returns nil if the interval has not
// elapsed or if interval is <= 0 (disabled).
func (d *Debouncer) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.counts,
	}
}
