// Package analyze flags frames that plausibly carry a temperature and
// proposes decoded values under several candidate encodings at once.
// It is a reverse-engineering aid: the classifier is deliberately
// permissive, surfacing candidates for a human to review rather than
// asserting ground truth.
package analyze

import "fmt"

// Window is a closed interval over the raw byte domain.
type Window struct {
	Lo, Hi byte
}

func (w Window) Contains(b byte) bool {
	return b >= w.Lo && b <= w.Hi
}

func (w Window) String() string {
	return fmt.Sprintf("[0x%02X,0x%02X]", w.Lo, w.Hi)
}

// IDRange is a closed interval of CAN identifiers.
type IDRange struct {
	Lo, Hi uint32
}

func (r IDRange) Contains(id uint32) bool {
	return id >= r.Lo && id <= r.Hi
}

// Config carries the classification heuristics and table sizing. All
// values are start-up constants; nothing is reconfigured at runtime.
type Config struct {
	// IDs are identifiers always considered, e.g. known module
	// response identifiers.
	IDs []uint32
	// IDRanges are identifier ranges considered, e.g. a body/HVAC
	// broadcast block.
	IDRanges []IDRange
	// Windows are byte-value intervals a payload byte must hit for the
	// frame to pass. The defaults overlap on purpose: each window is a
	// separate encoding guess (direct Celsius, direct Fahrenheit, raw
	// setpoint) and narrowing them would trade exploratory coverage
	// for a precision this stage does not need.
	Windows []Window

	// HistoryDepth is the number of payload snapshots kept per
	// identifier, HistoryCapacity the number of identifiers tracked.
	HistoryDepth    int
	HistoryCapacity int
}

// DefaultConfig returns the heuristics used on the Ford F-150 bench:
// the known BCM/HVAC/engine/OBD identifiers plus the 0x300-0x500
// broadcast block, and three overlapping plausible-byte windows.
func DefaultConfig() Config {
	return Config{
		IDs: []uint32{0x3B3, 0x3D3, 0x410, 0x420, 0x430, 0x7E8},
		IDRanges: []IDRange{
			{Lo: 0x300, Hi: 0x500},
		},
		Windows: []Window{
			{Lo: 0x20, Hi: 0x80}, // plausible direct Celsius
			{Lo: 0x50, Hi: 0xA0}, // plausible direct Fahrenheit
			{Lo: 0x30, Hi: 0x60}, // plausible raw setpoint
		},
	}
}

// Classifier decides whether a frame is a temperature candidate. It is
// a pure function of the identifier, the payload and the configured
// ranges; classifying never mutates state.
type Classifier struct {
	ids     map[uint32]struct{}
	ranges  []IDRange
	windows []Window
}

func NewClassifier(cfg Config) *Classifier {
	ids := make(map[uint32]struct{}, len(cfg.IDs))
	for _, id := range cfg.IDs {
		ids[id] = struct{}{}
	}
	return &Classifier{
		ids:     ids,
		ranges:  cfg.IDRanges,
		windows: cfg.Windows,
	}
}

// Classify reports whether the frame is a temperature candidate: the
// identifier must be allow-listed and at least one payload byte must
// land in a plausibility window.
func (c *Classifier) Classify(id uint32, data []byte) bool {
	if !c.allowed(id) {
		return false
	}
	for _, b := range data {
		for _, w := range c.windows {
			if w.Contains(b) {
				return true
			}
		}
	}
	return false
}

func (c *Classifier) allowed(id uint32) bool {
	if _, ok := c.ids[id]; ok {
		return true
	}
	for _, r := range c.ranges {
		if r.Contains(id) {
			return true
		}
	}
	return false
}
