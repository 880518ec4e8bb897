package analyze

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"

	"cantemp"
	"cantemp/pkg/history"
)

// Report is the outcome of analyzing one frame. It is ephemeral; the
// analyzer keeps no reference to it after returning.
type Report struct {
	ID     uint32
	Length int
	// Tracked is false when the history table was full and the frame
	// could not be followed. The frame itself is still available to
	// the caller for raw logging.
	Tracked   bool
	Candidate bool
	First     bool
	// Changed lists the byte indices that differ from the previous
	// observation of this identifier, ascending.
	Changed []int
	// Values maps each changed byte index to its plausible decodings,
	// present only when the frame is a candidate.
	Values map[int][]Value
}

// Analyzer orchestrates history tracking, classification and decoding
// for a stream of frames. It is single-owner: one polling loop calls
// Analyze to completion per frame, so no locking is needed.
type Analyzer struct {
	store      *history.Store
	classifier *Classifier
	hypotheses []Hypothesis
}

func New(cfg Config) *Analyzer {
	return &Analyzer{
		store:      history.NewStore(cfg.HistoryCapacity, cfg.HistoryDepth),
		classifier: NewClassifier(cfg),
		hypotheses: Hypotheses(),
	}
}

// Store exposes the underlying history table, mainly for summaries.
func (a *Analyzer) Store() *history.Store {
	return a.store
}

// Reset drops all tracked history.
func (a *Analyzer) Reset() {
	a.store.Reset()
}

// Analyze records the frame, determines which bytes changed since the
// previous observation, classifies the frame and, for candidates with
// changes, attaches the plausible decodings of each changed byte.
//
// A full table is an ordinary outcome, not an error: the report comes
// back untracked and the stream continues.
func (a *Analyzer) Analyze(f *cantemp.Frame) Report {
	rep := Report{ID: f.Identifier, Length: f.Length()}

	up, err := a.store.Update(f.Identifier, f.Data, f.Timestamp)
	if errors.Is(err, history.ErrTableFull) {
		return rep
	}
	rep.Tracked = true
	rep.First = up.First
	rep.Changed = up.Changed

	rep.Candidate = a.classifier.Classify(f.Identifier, f.Data)
	up.Record.Candidate = rep.Candidate

	if rep.Candidate && len(up.Changed) > 0 {
		rep.Values = make(map[int][]Value, len(up.Changed))
		for _, i := range up.Changed {
			if vals := DecodeAll(f.Data[i], a.hypotheses); len(vals) > 0 {
				rep.Values[i] = vals
			}
		}
	}
	return rep
}

func (r Report) String() string {
	return r.render(false)
}

var (
	cyan   = color.New(color.FgCyan).SprintfFunc()
	hiRed  = color.New(color.FgHiRed).SprintfFunc()
	hiWhte = color.New(color.FgHiWhite).SprintfFunc()
)

func (r Report) ColorString() string {
	return r.render(true)
}

func (r Report) render(colored bool) string {
	var out strings.Builder
	if colored {
		out.WriteString(cyan("0x%03X", r.ID))
	} else {
		fmt.Fprintf(&out, "0x%03X", r.ID)
	}
	switch {
	case !r.Tracked:
		out.WriteString(" untracked (table full)")
		return out.String()
	case r.First:
		out.WriteString(" baseline")
		return out.String()
	case len(r.Changed) == 0:
		out.WriteString(" no change")
		return out.String()
	}

	out.WriteString(" changed")
	for _, i := range r.Changed {
		if colored {
			out.WriteString(hiRed(" B%d", i))
		} else {
			fmt.Fprintf(&out, " B%d", i)
		}
	}
	if !r.Candidate {
		return out.String()
	}

	out.WriteString(" [TEMP?]")
	indices := make([]int, 0, len(r.Values))
	for i := range r.Values {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	for _, i := range indices {
		fmt.Fprintf(&out, " | B%d:", i)
		for _, v := range r.Values[i] {
			if colored {
				out.WriteString(hiWhte(" %s=%.1f°C", v.Name, v.Value))
			} else {
				fmt.Fprintf(&out, " %s=%.1f°C", v.Name, v.Value)
			}
		}
	}
	return out.String()
}
