package analyze

import (
	"strings"
	"testing"
	"time"

	"cantemp"
)

func frameAt(id uint32, data []byte, ms int) *cantemp.Frame {
	f := cantemp.NewFrame(id, data)
	f.Timestamp = time.Unix(0, int64(ms)*int64(time.Millisecond))
	return f
}

func TestAnalyzeScenario(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HistoryCapacity = 20
	cfg.HistoryDepth = 10
	a := New(cfg)

	// Baseline: first observation, nothing to compare against.
	rep := a.Analyze(frameAt(0x3D3, []byte{0x48, 0x00}, 1))
	if !rep.Tracked {
		t.Fatal("baseline report untracked")
	}
	if !rep.First {
		t.Error("baseline report should be First")
	}
	if len(rep.Changed) != 0 {
		t.Errorf("baseline Changed = %v, want empty", rep.Changed)
	}

	// Byte 0 changes: 0x48 -> 0x4A.
	rep = a.Analyze(frameAt(0x3D3, []byte{0x4A, 0x00}, 2))
	if len(rep.Changed) != 1 || rep.Changed[0] != 0 {
		t.Fatalf("Changed = %v, want [0]", rep.Changed)
	}
	r, ok := a.Store().Lookup(0x3D3)
	if !ok {
		t.Fatal("record missing after updates")
	}
	if r.ChangeCount[0] != 1 {
		t.Errorf("ChangeCount[0] = %d, want 1", r.ChangeCount[0])
	}
	if !rep.Candidate {
		t.Error("0x3D3 with byte 0x4A should classify as candidate")
	}

	// 0x4A is 74 decimal: the offset40 hypothesis must propose 34 °C.
	vals, ok := rep.Values[0]
	if !ok {
		t.Fatal("no candidate values for byte 0")
	}
	got, ok := findValue(vals, "offset40")
	if !ok {
		t.Fatal("offset40 hypothesis missing")
	}
	if got != 34 {
		t.Errorf("offset40 = %.1f, want 34.0", got)
	}
}

func TestAnalyzeTableFullDegenerate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HistoryCapacity = 2
	a := New(cfg)

	a.Analyze(frameAt(0x3B3, []byte{0x42}, 1))
	a.Analyze(frameAt(0x3D3, []byte{0x48}, 2))

	rep := a.Analyze(frameAt(0x420, []byte{0x48}, 3))
	if rep.Tracked {
		t.Error("report for untracked frame should not be Tracked")
	}
	if rep.Candidate {
		t.Error("untracked frame must not classify")
	}
	if len(rep.Changed) != 0 || rep.Values != nil {
		t.Errorf("untracked report carries analysis: %+v", rep)
	}

	// Tracked identifiers are unaffected by fullness.
	rep = a.Analyze(frameAt(0x3D3, []byte{0x4A}, 4))
	if !rep.Tracked || len(rep.Changed) != 1 {
		t.Errorf("tracked id degraded after table full: %+v", rep)
	}
}

func TestAnalyzeNonCandidateHasNoValues(t *testing.T) {
	a := New(DefaultConfig())
	a.Analyze(frameAt(0x123, []byte{0x48}, 1))
	rep := a.Analyze(frameAt(0x123, []byte{0x4A}, 2))
	if rep.Candidate {
		t.Error("0x123 is outside all identifier ranges")
	}
	if len(rep.Changed) != 1 {
		t.Errorf("Changed = %v, want one index", rep.Changed)
	}
	if rep.Values != nil {
		t.Errorf("non-candidate report carries values: %v", rep.Values)
	}
}

func TestSummaryOrdering(t *testing.T) {
	a := New(DefaultConfig())

	// 0x3D3 byte 0 changes three times, 0x3B3 byte 2 changes once.
	a.Analyze(frameAt(0x3D3, []byte{0x48, 0x00}, 1))
	a.Analyze(frameAt(0x3D3, []byte{0x49, 0x00}, 2))
	a.Analyze(frameAt(0x3D3, []byte{0x4A, 0x00}, 3))
	a.Analyze(frameAt(0x3D3, []byte{0x4B, 0x00}, 4))
	a.Analyze(frameAt(0x3B3, []byte{0x42, 0x11, 0x50}, 5))
	a.Analyze(frameAt(0x3B3, []byte{0x42, 0x11, 0x52}, 6))

	sum := a.Summary()
	if len(sum) != 2 {
		t.Fatalf("len(Summary()) = %d, want 2", len(sum))
	}
	if sum[0].ID != 0x3D3 || sum[0].Total != 3 {
		t.Errorf("Summary()[0] = 0x%X total %d, want 0x3D3 total 3", sum[0].ID, sum[0].Total)
	}
	if sum[1].ID != 0x3B3 || sum[1].Total != 1 {
		t.Errorf("Summary()[1] = 0x%X total %d, want 0x3B3 total 1", sum[1].ID, sum[1].Total)
	}
	if len(sum[0].TopBytes) != 1 || sum[0].TopBytes[0].Index != 0 || sum[0].TopBytes[0].Latest != 0x4B {
		t.Errorf("Summary()[0].TopBytes = %+v", sum[0].TopBytes)
	}

	rendered := RenderSummary(sum)
	if !strings.Contains(rendered, "0x3D3") || !strings.Contains(rendered, "B0:3") {
		t.Errorf("RenderSummary() missing expected fields:\n%s", rendered)
	}
}

func TestReportString(t *testing.T) {
	cfg := DefaultConfig()
	a := New(cfg)
	a.Analyze(frameAt(0x3D3, []byte{0x48, 0x00}, 1))
	rep := a.Analyze(frameAt(0x3D3, []byte{0x4A, 0x00}, 2))

	s := rep.String()
	for _, want := range []string{"0x3D3", "B0", "[TEMP?]", "offset40=34.0"} {
		if !strings.Contains(s, want) {
			t.Errorf("Report.String() = %q, missing %q", s, want)
		}
	}

	a.Reset()
	rep = a.Analyze(frameAt(0x3D3, []byte{0x48}, 3))
	if s := rep.String(); !strings.Contains(s, "baseline") {
		t.Errorf("baseline Report.String() = %q", s)
	}
}
