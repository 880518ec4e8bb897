package cantemp

import (
	"context"
	"math/rand"
	"time"
)

// Sim is a virtual adapter producing HVAC/BCM-like traffic so the
// analysis pipeline can be exercised without a vehicle on the bench.
// The message shapes mirror a Ford F-150 broadcast mix: body control
// ambient data on 0x3B3, climate setpoints on 0x3D3, engine data on
// 0x420 and OBD-II responses on 0x7E8.
type Sim struct {
	*BaseAdapter
	interval time.Duration
	rnd      *rand.Rand
}

func init() {
	if err := RegisterAdapter(&AdapterInfo{
		Name:               "Sim",
		Description:        "Simulated HVAC/BCM traffic generator",
		RequiresSerialPort: false,
		New:                NewSim,
	}); err != nil {
		panic(err)
	}
}

func NewSim(cfg *AdapterConfig) (Adapter, error) {
	return &Sim{
		BaseAdapter: NewBaseAdapter("Sim", cfg),
		interval:    100 * time.Millisecond,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

func (v *Sim) Open(ctx context.Context) error {
	go v.genManager(ctx)
	return nil
}

func (v *Sim) Close() error {
	v.BaseAdapter.Close()
	return nil
}

func (v *Sim) genManager(ctx context.Context) {
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()
	var counter int
	for {
		select {
		case <-ctx.Done():
			return
		case <-v.closeChan:
			return
		case <-ticker.C:
			counter++
			v.deliver(v.generate(counter))
		}
	}
}

// byteBetween returns a random byte in [lo,hi].
func (v *Sim) byteBetween(lo, hi byte) byte {
	return lo + byte(v.rnd.Intn(int(hi-lo)+1))
}

func (v *Sim) generate(counter int) *Frame {
	switch counter % 4 {
	case 0: // BCM broadcast, byte 2 wanders like an outside temp would
		return NewFrame(0x3B3, []byte{
			0x42, 0x11,
			v.byteBetween(0x20, 0x80),
			v.byteBetween(0x10, 0x90),
			0xFF, 0x00,
		})
	case 1: // climate setpoints, bytes 0 and 1
		return NewFrame(0x3D3, []byte{
			v.byteBetween(0x40, 0x80),
			v.byteBetween(0x30, 0x70),
			0x12, 0x34,
		})
	case 2: // engine data
		return NewFrame(0x420, []byte{0x7E, v.byteBetween(0x80, 0xC0)})
	default: // OBD-II mode 01 PID 05 response, coolant temp in byte 3
		return NewFrame(0x7E8, []byte{0x03, 0x41, 0x05, v.byteBetween(0x50, 0x90)})
	}
}
