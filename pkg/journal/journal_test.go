package journal

import (
	"path/filepath"
	"testing"
	"time"

	"cantemp/pkg/analyze"
)

func testJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "sightings.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordRoundTrip(t *testing.T) {
	j := testJournal(t)

	rep := analyze.Report{
		ID:        0x3D3,
		Tracked:   true,
		Candidate: true,
		Changed:   []int{0},
		Values: map[int][]analyze.Value{
			0: {{Name: "offset40", Value: 34}},
		},
	}
	ts := time.Unix(1700000000, 0)
	if err := j.Record(rep, []byte{0x4A, 0x00}, ts); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	entries, err := j.Entries()
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(Entries()) = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.ID != 0x3D3 {
		t.Errorf("ID = 0x%X, want 0x3D3", e.ID)
	}
	if e.Data != "4a00" {
		t.Errorf("Data = %q, want %q", e.Data, "4a00")
	}
	if len(e.Changed) != 1 || e.Changed[0] != 0 {
		t.Errorf("Changed = %v, want [0]", e.Changed)
	}
	if len(e.Values[0]) != 1 || e.Values[0][0] != 34 {
		t.Errorf("Values[0] = %v, want [34]", e.Values[0])
	}
	if len(e.Names[0]) != 1 || e.Names[0][0] != "offset40" {
		t.Errorf("Names[0] = %v, want [offset40]", e.Names[0])
	}
}

func TestRepeatSightingsAllSurvive(t *testing.T) {
	j := testJournal(t)
	rep := analyze.Report{ID: 0x3B3, Tracked: true, Candidate: true, Changed: []int{2}}
	for i := 0; i < 3; i++ {
		ts := time.Unix(1700000000+int64(i), 0)
		if err := j.Record(rep, []byte{0x42, 0x11, byte(0x50 + i)}, ts); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	entries, err := j.Entries()
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("len(Entries()) = %d, want 3", len(entries))
	}
}

func TestClear(t *testing.T) {
	j := testJournal(t)
	rep := analyze.Report{ID: 0x3D3, Tracked: true, Candidate: true}
	if err := j.Record(rep, []byte{0x4A}, time.Unix(1700000000, 0)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := j.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	entries, err := j.Entries()
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("len(Entries()) = %d after Clear, want 0", len(entries))
	}
	// The journal remains usable after a clear.
	if err := j.Record(rep, []byte{0x4B}, time.Unix(1700000001, 0)); err != nil {
		t.Errorf("Record() after Clear error = %v", err)
	}
}
