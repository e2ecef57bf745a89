// Package gpio provides GPIO input reading with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads one snapshot of the key bank.
type Reader interface {
	// Read returns the asserted-key mask: bit i is 1 while key i's line
	// is asserted. The raw GPIO values are active-low (pull-up wiring:
	// line low = key pressed); the inversion happens here, at sample
	// time, so callers never see raw levels.
	Read() (uint8, error)

	// Close releases GPIO resources.
	Close() error
}

// MaxKeys is the width of one key bank.
const MaxKeys = 8

// DefaultPins is the four-key layout (BCM numbering): mode, next,
// plus, minus. Key index = position in the slice = bit position.
var DefaultPins = []int{26, 16, 20, 21}
