//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads the key bank from actual hardware using the Linux GPIO
// character device.
type RealReader struct {
	chip  *gpiocdev.Chip
	lines []*gpiocdev.Line
}

// NewRealReader requests the given BCM pins as inputs with pull-up, in key
// order: pins[i] becomes bit i of the snapshot. At most MaxKeys pins.
func NewRealReader(pins []int) (*RealReader, error) {
	if len(pins) == 0 {
		return nil, fmt.Errorf("no pins configured")
	}
	if len(pins) > MaxKeys {
		return nil, fmt.Errorf("too many pins: %d (max %d)", len(pins), MaxKeys)
	}

	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealReader{chip: chip}
	for i, pin := range pins {
		// Pull-up so an unwired line reads high, i.e. released.
		line, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request key %d pin %d: %w", i, pin, err)
		}
		r.lines = append(r.lines, line)
	}

	return r, nil
}

// Read returns the asserted-key mask for the bank.
// Inverts raw GPIO: line low (0) = key pressed = bit set.
func (r *RealReader) Read() (uint8, error) {
	var keys uint8
	for i, line := range r.lines {
		v, err := line.Value()
		if err != nil {
			return 0, fmt.Errorf("read key %d: %w", i, err)
		}
		if v == 0 {
			keys |= 1 << i
		}
	}
	return keys, nil
}

// Close releases GPIO resources.
// Reconfigures lines to input with pull-up before closing so the keypad
// stays in a defined state across a daemon restart.
func (r *RealReader) Close() error {
	var errs []error

	for i, line := range r.lines {
		if line == nil {
			continue
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure key %d: %w", i, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close key %d: %w", i, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
