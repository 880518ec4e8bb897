// Package history keeps a bounded per-identifier change history for
// observed CAN frames. Memory is fixed at construction time: at most
// Capacity identifiers are tracked, each with a circular buffer of the
// last Depth payload snapshots and a change counter per byte position.
package history

import (
	"errors"
	"time"
)

const (
	// MaxPayload is the CAN 2.0 payload size.
	MaxPayload = 8

	// DefaultDepth is the number of payload snapshots kept per identifier.
	DefaultDepth = 10

	// DefaultCapacity is the number of identifiers tracked before new
	// ones are refused.
	DefaultCapacity = 30
)

// ErrTableFull is returned when an unseen identifier arrives and the
// table is at capacity. Already tracked identifiers are unaffected;
// the caller should treat the frame as untracked, not as a failure.
var ErrTableFull = errors.New("history table full")

// Snapshot is one recorded payload. Valid distinguishes a written slot
// from a never-written one, so a legitimate zero timestamp can never be
// mistaken for "no prior observation".
type Snapshot struct {
	Data  [MaxPayload]byte
	Time  time.Time
	Valid bool
}

// Record tracks one identifier. It is owned by its Store and must not
// be retained across a Reset.
type Record struct {
	ID          uint32
	ChangeCount [MaxPayload]uint32
	Length      int
	Candidate   bool

	snapshots []Snapshot
	cursor    int
}

func newRecord(id uint32, depth int) *Record {
	return &Record{
		ID:        id,
		snapshots: make([]Snapshot, depth),
	}
}

// Depth returns the snapshot ring size.
func (r *Record) Depth() int {
	return len(r.snapshots)
}

// Cursor returns the index of the slot that will be written next.
func (r *Record) Cursor() int {
	return r.cursor
}

// Latest returns the most recently written snapshot.
func (r *Record) Latest() (Snapshot, bool) {
	s := r.snapshots[r.prevIndex()]
	return s, s.Valid
}

// Previous returns the snapshot written before the latest one.
func (r *Record) Previous() (Snapshot, bool) {
	i := r.prevIndex() - 1
	if i < 0 {
		i += len(r.snapshots)
	}
	s := r.snapshots[i]
	return s, s.Valid
}

// Snapshots returns the written snapshots in order, oldest first.
func (r *Record) Snapshots() []Snapshot {
	depth := len(r.snapshots)
	out := make([]Snapshot, 0, depth)
	for i := 0; i < depth; i++ {
		s := r.snapshots[(r.cursor+i)%depth]
		if s.Valid {
			out = append(out, s)
		}
	}
	return out
}

// TotalChanges sums the per-byte change counters.
func (r *Record) TotalChanges() uint32 {
	var total uint32
	for _, c := range r.ChangeCount {
		total += c
	}
	return total
}

func (r *Record) prevIndex() int {
	i := r.cursor - 1
	if i < 0 {
		i += len(r.snapshots)
	}
	return i
}

// Update holds the outcome of one Store.Update call.
type Update struct {
	Record *Record
	// Changed lists the byte indices that differ from the previous
	// snapshot, ascending. Empty on the first observation.
	Changed []int
	// First is set on the very first observation of an identifier,
	// where no comparison is meaningful.
	First bool
}

// Store is a fixed-capacity mapping from identifier to Record. Lookup
// is a linear scan; with a few dozen tracked identifiers that is cheap
// next to the frame arrival rate.
//
// A Store is not safe for concurrent use. The intended owner is a
// single analysis loop draining the bus.
type Store struct {
	depth   int
	cap     int
	records []*Record
}

// NewStore creates an empty store tracking up to capacity identifiers
// with depth snapshots each. Non-positive arguments fall back to the
// defaults.
func NewStore(capacity, depth int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Store{
		depth:   depth,
		cap:     capacity,
		records: make([]*Record, 0, capacity),
	}
}

// Lookup finds the record for id, if tracked.
func (s *Store) Lookup(id uint32) (*Record, bool) {
	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}

// Len returns the number of tracked identifiers.
func (s *Store) Len() int {
	return len(s.records)
}

// Capacity returns the maximum number of tracked identifiers.
func (s *Store) Capacity() int {
	return s.cap
}

// Records returns the tracked records in insertion order.
func (s *Store) Records() []*Record {
	return s.records
}

// Reset drops all tracked state.
func (s *Store) Reset() {
	s.records = s.records[:0]
}

func (s *Store) getOrCreate(id uint32) (*Record, error) {
	if r, ok := s.Lookup(id); ok {
		return r, nil
	}
	if len(s.records) >= s.cap {
		return nil, ErrTableFull
	}
	r := newRecord(id, s.depth)
	s.records = append(s.records, r)
	return r, nil
}

// Update records one observation of id. The payload is written into the
// next ring slot and compared byte-for-byte against the previous slot;
// counters increment only when a previous observation exists. At most
// MaxPayload bytes of data are considered.
//
// Returns ErrTableFull when id is unseen and the table is at capacity.
func (s *Store) Update(id uint32, data []byte, ts time.Time) (Update, error) {
	r, err := s.getOrCreate(id)
	if err != nil {
		return Update{}, err
	}

	length := len(data)
	if length > MaxPayload {
		length = MaxPayload
	}

	prev := r.snapshots[r.prevIndex()]
	slot := &r.snapshots[r.cursor]
	slot.Time = ts
	slot.Valid = true
	for i := 0; i < length; i++ {
		slot.Data[i] = data[i]
	}
	for i := length; i < MaxPayload; i++ {
		slot.Data[i] = 0
	}

	out := Update{Record: r, First: !prev.Valid}
	if prev.Valid {
		for i := 0; i < length; i++ {
			if slot.Data[i] != prev.Data[i] {
				r.ChangeCount[i]++
				out.Changed = append(out.Changed, i)
			}
		}
	}

	r.cursor = (r.cursor + 1) % len(r.snapshots)
	r.Length = length
	return out, nil
}
