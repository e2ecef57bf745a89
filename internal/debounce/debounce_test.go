package debounce

import (
	"testing"
	"time"
)

var testStart = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// tickN feeds the same raw snapshot for n consecutive ticks.
func tickN(d *Debouncer, raw uint8, n int) {
	for i := 0; i < n; i++ {
		d.Tick(raw)
	}
}

func TestNewDebouncerDefaults(t *testing.T) {
	d := NewDebouncer(Config{RepeatMask: 0xFF}, testStart)
	if d.cfg.RepeatStart != DefaultRepeatStart {
		t.Errorf("RepeatStart: got %d, want %d", d.cfg.RepeatStart, DefaultRepeatStart)
	}
	if d.cfg.RepeatNext != DefaultRepeatNext {
		t.Errorf("RepeatNext: got %d, want %d", d.cfg.RepeatNext, DefaultRepeatNext)
	}
	if d.State() != 0 {
		t.Errorf("initial state: got %#02x, want 0", d.State())
	}
	if d.Ticks() != 0 {
		t.Errorf("initial ticks: got %d, want 0", d.Ticks())
	}
}

func TestDebounceRequiresThreeConsecutiveTicks(t *testing.T) {
	d := NewDebouncer(Config{RepeatMask: 0}, testStart)

	// Two disagreeing ticks are not enough.
	tickN(d, 0x01, 2)
	if d.State() != 0 {
		t.Errorf("state after 2 ticks: got %#02x, want 0", d.State())
	}
	if got := d.ConsumePress(0xFF); got != 0 {
		t.Errorf("press after 2 ticks: got %#02x, want 0", got)
	}

	// Third tick confirms.
	d.Tick(0x01)
	if d.State() != 0x01 {
		t.Errorf("state after 3 ticks: got %#02x, want 0x01", d.State())
	}
	if got := d.ConsumePress(0xFF); got != 0x01 {
		t.Errorf("press after 3 ticks: got %#02x, want 0x01", got)
	}
}

func TestBounceResetsCounter(t *testing.T) {
	d := NewDebouncer(Config{RepeatMask: 0}, testStart)

	// Two disagreeing ticks, then one agreeing tick resets the counter.
	tickN(d, 0x01, 2)
	d.Tick(0x00)
	tickN(d, 0x01, 2)
	if d.State() != 0 {
		t.Errorf("state after bounce: got %#02x, want 0", d.State())
	}

	// Three clean ticks from the reset point confirm.
	d.Tick(0x01)
	if d.State() != 0x01 {
		t.Errorf("state after 3 clean ticks: got %#02x, want 0x01", d.State())
	}
}

func TestReleaseDebouncesAfterThreeTicks(t *testing.T) {
	d := NewDebouncer(Config{RepeatMask: 0}, testStart)

	tickN(d, 0x01, 3)
	if d.State() != 0x01 {
		t.Fatalf("state after press: got %#02x, want 0x01", d.State())
	}
	if got := d.ConsumePress(0xFF); got != 0x01 {
		t.Fatalf("press: got %#02x, want 0x01", got)
	}

	// Released: two ticks are not enough, the third flips back.
	tickN(d, 0x00, 2)
	if d.State() != 0x01 {
		t.Errorf("state 2 ticks after release: got %#02x, want 0x01", d.State())
	}
	d.Tick(0x00)
	if d.State() != 0 {
		t.Errorf("state 3 ticks after release: got %#02x, want 0", d.State())
	}

	// A release is not a press.
	if got := d.ConsumePress(0xFF); got != 0 {
		t.Errorf("press after release: got %#02x, want 0", got)
	}
}

func TestConsumePressIdempotentDrain(t *testing.T) {
	d := NewDebouncer(Config{RepeatMask: 0}, testStart)
	tickN(d, 0x05, 3)

	if got := d.ConsumePress(0xFF); got != 0x05 {
		t.Errorf("first drain: got %#02x, want 0x05", got)
	}
	if got := d.ConsumePress(0xFF); got != 0 {
		t.Errorf("second drain: got %#02x, want 0", got)
	}
}

func TestConsumePressRespectsMask(t *testing.T) {
	d := NewDebouncer(Config{RepeatMask: 0}, testStart)
	tickN(d, 0x03, 3)

	if got := d.ConsumePress(0x01); got != 0x01 {
		t.Errorf("masked drain: got %#02x, want 0x01", got)
	}
	// Key 1's press is still pending.
	if got := d.ConsumePress(0xFF); got != 0x02 {
		t.Errorf("remaining drain: got %#02x, want 0x02", got)
	}
}

func TestEmptyMaskHasNoSideEffects(t *testing.T) {
	d := NewDebouncer(Config{RepeatMask: 0xFF}, testStart)
	tickN(d, 0x01, 3)

	if got := d.ConsumePress(0); got != 0 {
		t.Errorf("ConsumePress(0): got %#02x, want 0", got)
	}
	if got := d.ConsumeRepeat(0); got != 0 {
		t.Errorf("ConsumeRepeat(0): got %#02x, want 0", got)
	}
	if got := d.ConsumePress(0xFF); got != 0x01 {
		t.Errorf("press still pending: got %#02x, want 0x01", got)
	}
}

func TestParallelKeys(t *testing.T) {
	d := NewDebouncer(Config{RepeatMask: 0}, testStart)

	// Keys 0 and 3 pressed together, key 6 joins two ticks later.
	tickN(d, 0x09, 2)
	tickN(d, 0x49, 3)

	if d.State() != 0x49 {
		t.Errorf("state: got %#02x, want 0x49", d.State())
	}
	// Keys 0 and 3 confirmed first, key 6 on the later tick; all pending.
	if got := d.ConsumePress(0xFF); got != 0x49 {
		t.Errorf("press: got %#02x, want 0x49", got)
	}
}

func TestRepeatCadence(t *testing.T) {
	d := NewDebouncer(Config{RepeatStart: 5, RepeatNext: 3, RepeatMask: 0x01}, testStart)

	// Confirm takes 3 ticks; the confirm tick is the first held tick.
	// First repeat on held tick 5, then every 3 held ticks.
	wantFire := map[int]bool{7: true, 10: true, 13: true}

	for tick := 1; tick <= 14; tick++ {
		d.Tick(0x01)
		got := d.ConsumeRepeat(0xFF)
		if wantFire[tick] && got != 0x01 {
			t.Errorf("tick %d: repeat got %#02x, want 0x01", tick, got)
		}
		if !wantFire[tick] && got != 0 {
			t.Errorf("tick %d: repeat got %#02x, want 0", tick, got)
		}
	}
}

func TestRepeatNeverFiresWhileReleased(t *testing.T) {
	d := NewDebouncer(Config{RepeatStart: 5, RepeatNext: 3, RepeatMask: 0x01}, testStart)

	for tick := 0; tick < 50; tick++ {
		d.Tick(0x00)
		if got := d.ConsumeRepeat(0xFF); got != 0 {
			t.Fatalf("tick %d: repeat fired while released: %#02x", tick, got)
		}
	}
}

func TestRepeatIgnoresNonEligibleKeys(t *testing.T) {
	d := NewDebouncer(Config{RepeatStart: 5, RepeatNext: 3, RepeatMask: 0x01}, testStart)

	// Key 1 is not in the repeat mask; holding it forever never fires.
	tickN(d, 0x02, 40)
	if got := d.ConsumeRepeat(0xFF); got != 0 {
		t.Errorf("repeat for non-eligible key: got %#02x, want 0", got)
	}
}

func TestSharedRepeatCountdown(t *testing.T) {
	d := NewDebouncer(Config{RepeatStart: 5, RepeatNext: 3, RepeatMask: 0x03}, testStart)

	// Key 0 held from tick 1 (confirmed tick 3), key 1 joins from tick 4
	// (confirmed tick 6). The countdown is shared: key 1 does not get its
	// own RepeatStart delay, both fire together on tick 7.
	tickN(d, 0x01, 3)
	tickN(d, 0x03, 3)
	if d.State() != 0x03 {
		t.Fatalf("state: got %#02x, want 0x03", d.State())
	}
	if got := d.ConsumeRepeat(0xFF); got != 0 {
		t.Fatalf("repeat before tick 7: got %#02x, want 0", got)
	}

	d.Tick(0x03)
	if got := d.ConsumeRepeat(0xFF); got != 0x03 {
		t.Errorf("repeat on tick 7: got %#02x, want 0x03", got)
	}
}

func TestShortPressOnlyAfterRelease(t *testing.T) {
	d := NewDebouncer(Config{RepeatMask: 0}, testStart)

	tickN(d, 0x01, 3)

	// Still held: no short press, and the press bit must survive.
	if got := d.ConsumeShortPress(0xFF); got != 0 {
		t.Errorf("short press while held: got %#02x, want 0", got)
	}

	// Released and debounced back: now it reads as a short press.
	tickN(d, 0x00, 3)
	if got := d.ConsumeShortPress(0xFF); got != 0x01 {
		t.Errorf("short press after release: got %#02x, want 0x01", got)
	}
	if got := d.ConsumeShortPress(0xFF); got != 0 {
		t.Errorf("second short press drain: got %#02x, want 0", got)
	}
}

func TestShortPressLeavesHeldKeyPending(t *testing.T) {
	d := NewDebouncer(Config{RepeatMask: 0}, testStart)

	tickN(d, 0x01, 3)
	d.ConsumeShortPress(0xFF) // held, consumes nothing

	if got := d.ConsumePress(0xFF); got != 0x01 {
		t.Errorf("press after short-press attempt: got %#02x, want 0x01", got)
	}
}

func TestLongPressFiresOnceAtFirstRepeat(t *testing.T) {
	d := NewDebouncer(Config{RepeatStart: 5, RepeatNext: 3, RepeatMask: 0x01}, testStart)

	// Held ticks 1..6: no long press yet.
	for tick := 1; tick <= 6; tick++ {
		d.Tick(0x01)
		if got := d.ConsumeLongPress(0xFF); got != 0 {
			t.Fatalf("tick %d: long press got %#02x, want 0", tick, got)
		}
	}

	// Tick 7 is the first repeat firing.
	d.Tick(0x01)
	if got := d.ConsumeLongPress(0xFF); got != 0x01 {
		t.Errorf("long press at first repeat: got %#02x, want 0x01", got)
	}

	// Only once, even when called repeatedly with no new repeat event.
	if got := d.ConsumeLongPress(0xFF); got != 0 {
		t.Errorf("second long press drain: got %#02x, want 0", got)
	}
	// The press bit was consumed along the way.
	if got := d.ConsumePress(0xFF); got != 0 {
		t.Errorf("press after long press: got %#02x, want 0", got)
	}
}

func TestPressAndReleaseScenario(t *testing.T) {
	d := NewDebouncer(Config{RepeatMask: 0}, testStart)

	// Key 0 asserted for 3 ticks.
	tickN(d, 0x01, 3)
	if d.State()&0x01 == 0 {
		t.Error("expected key 0 debounced after 3 ticks")
	}

	// One drain clears the press.
	if got := d.ConsumePress(0xFF); got != 0x01 {
		t.Errorf("press: got %#02x, want 0x01", got)
	}
	if got := d.ConsumePress(0xFF); got != 0 {
		t.Errorf("press after drain: got %#02x, want 0", got)
	}

	// Released: state returns to 0 three ticks later.
	tickN(d, 0x00, 3)
	if d.State() != 0 {
		t.Errorf("state after release: got %#02x, want 0", d.State())
	}
}

func TestEventCounts(t *testing.T) {
	d := NewDebouncer(Config{RepeatStart: 5, RepeatNext: 3, RepeatMask: 0x02}, testStart)

	// Key 0: plain press. Key 1: held through two repeats.
	tickN(d, 0x03, 3)
	d.ConsumePress(0x01)
	tickN(d, 0x03, 7) // ticks 4..10, repeats on held ticks 5 and 8
	d.ConsumeRepeat(0x02)
	tickN(d, 0x03, 3)
	d.ConsumeRepeat(0x02)

	counts := d.EventCountsSnapshot()
	if counts.Presses != 1 {
		t.Errorf("Presses: got %d, want 1", counts.Presses)
	}
	if counts.Repeats != 2 {
		t.Errorf("Repeats: got %d, want 2", counts.Repeats)
	}
	if counts.Shorts != 0 || counts.Longs != 0 {
		t.Errorf("Shorts/Longs: got %d/%d, want 0/0", counts.Shorts, counts.Longs)
	}
}

func TestTicksCounter(t *testing.T) {
	d := NewDebouncer(Config{RepeatMask: 0}, testStart)
	tickN(d, 0x00, 17)
	if d.Ticks() != 17 {
		t.Errorf("Ticks: got %d, want 17", d.Ticks())
	}
}

func TestCheckHeartbeat(t *testing.T) {
	d := NewDebouncer(Config{RepeatMask: 0}, testStart)

	// Disabled interval.
	if hb := d.CheckHeartbeat(testStart.Add(time.Hour), 0); hb != nil {
		t.Error("expected nil heartbeat when disabled")
	}

	// Before the interval elapses.
	if hb := d.CheckHeartbeat(testStart.Add(30*time.Second), time.Minute); hb != nil {
		t.Error("expected nil heartbeat before interval")
	}

	// After the interval.
	now := testStart.Add(2 * time.Minute)
	hb := d.CheckHeartbeat(now, time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat after interval")
	}
	if !hb.Timestamp.Equal(now) {
		t.Errorf("Timestamp: got %v, want %v", hb.Timestamp, now)
	}
	if hb.Uptime != 2*time.Minute {
		t.Errorf("Uptime: got %v, want 2m", hb.Uptime)
	}

	// Interval restarts from the last heartbeat.
	if hb := d.CheckHeartbeat(now.Add(30*time.Second), time.Minute); hb != nil {
		t.Error("expected nil heartbeat 30s after previous one")
	}
}

func TestKeysOf(t *testing.T) {
	cases := []struct {
		mask uint8
		want []int
	}{
		{0x00, nil},
		{0x01, []int{0}},
		{0x81, []int{0, 7}},
		{0x0F, []int{0, 1, 2, 3}},
	}
	for _, tc := range cases {
		got := KeysOf(tc.mask)
		if len(got) != len(tc.want) {
			t.Errorf("KeysOf(%#02x): got %v, want %v", tc.mask, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("KeysOf(%#02x): got %v, want %v", tc.mask, got, tc.want)
				break
			}
		}
	}
}
