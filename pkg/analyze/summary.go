package analyze

import (
	"fmt"
	"sort"
	"strings"
)

// ByteActivity is the change count of one byte position.
type ByteActivity struct {
	Index  int
	Count  uint32
	Latest byte
}

// IDActivity summarizes one tracked identifier: total changes and the
// most active byte positions, busiest first.
type IDActivity struct {
	ID        uint32
	Length    int
	Candidate bool
	Total     uint32
	TopBytes  []ByteActivity
}

// Summary reports per-identifier change activity, most active
// identifier first, with up to three most-changed byte positions each.
// It reads the history without mutating it.
func (a *Analyzer) Summary() []IDActivity {
	records := a.store.Records()
	out := make([]IDActivity, 0, len(records))
	for _, r := range records {
		act := IDActivity{
			ID:        r.ID,
			Length:    r.Length,
			Candidate: r.Candidate,
			Total:     r.TotalChanges(),
		}
		latest, _ := r.Latest()
		var bytes []ByteActivity
		for i, c := range r.ChangeCount {
			if c > 0 {
				bytes = append(bytes, ByteActivity{Index: i, Count: c, Latest: latest.Data[i]})
			}
		}
		sort.SliceStable(bytes, func(i, j int) bool { return bytes[i].Count > bytes[j].Count })
		if len(bytes) > 3 {
			bytes = bytes[:3]
		}
		act.TopBytes = bytes
		out = append(out, act)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out
}

// RenderSummary formats activities as the monitor's summary table.
func RenderSummary(activities []IDActivity) string {
	var out strings.Builder
	out.WriteString("--- CANDIDATE ACTIVITY ---\n")
	out.WriteString("ID     | Changes | Most Active Bytes\n")
	out.WriteString("-------|---------|------------------\n")
	for _, act := range activities {
		fmt.Fprintf(&out, "0x%03X  | %7d | ", act.ID, act.Total)
		for _, b := range act.TopBytes {
			fmt.Fprintf(&out, "B%d:%d (0x%02X) ", b.Index, b.Count, b.Latest)
		}
		if act.Candidate {
			out.WriteString("[TEMP?]")
		}
		out.WriteString("\n")
	}
	return out.String()
}
