// Package characterize identifies detected peaks by comparing their
// calibrated mass with the entries of a mass dictionary.
package characterize

import (
	"sort"

	"github.com/524D/tofcal/internal/calib"
	"github.com/524D/tofcal/internal/massdict"
	"github.com/524D/tofcal/internal/peaks"
	"github.com/524D/tofcal/internal/waveform"
)

// DefaultPrecision is the maximum relative mass mismatch for a match
const DefaultPrecision = 0.01

// Match is a dictionary species and its similarity to a peak mass
type Match struct {
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

// Row describes one detected peak
type Row struct {
	Peak      int     `json:"peak"` // trace index
	Time      float64 `json:"time"` // us
	Mass      float64 `json:"mass"` // u
	MassUnits float64 `json:"mass_units"`
	// Best is the most similar species, or the zero Match when even that
	// one differs by precision or more
	Best Match `json:"best"`
	// Candidates holds every species with similarity > 1-precision,
	// most similar first
	Candidates []Match `json:"candidates"`
}

// Table is the characterization of all peaks of a waveform
type Table struct {
	Element   string  `json:"element"`
	Precision float64 `json:"precision"`
	Rows      []Row   `json:"rows"`
}

// Similarity is min(a,b)/max(a,b), 1 for identical masses
func Similarity(a, b float64) float64 {
	if a > b {
		a, b = b, a
	}
	if b == 0 {
		return 0
	}
	return a / b
}

// Characterize matches every peak of s against the dictionary of ctx.
// Similarity ties resolve to the first species in dictionary order.
// The result only depends on its arguments.
func Characterize(w *waveform.Waveform, s peaks.Set, p calib.Params, ctx massdict.Context, precision float64) Table {
	t := Table{Element: ctx.Element, Precision: precision, Rows: make([]Row, 0, s.Len())}
	n := ctx.Dict.Len()
	sim := make([]float64, n)
	for _, i := range s.Index {
		r := Row{
			Peak:      i,
			Time:      w.Time[i],
			Mass:      p.Mass(w.Time[i]),
			MassUnits: p.InUnits(w.Time[i], ctx.ElementMass),
		}
		best := -1
		for k := 0; k < n; k++ {
			sim[k] = Similarity(r.Mass, ctx.Dict.At(k).Mass)
			if best < 0 || sim[k] > sim[best] {
				best = k
			}
			if sim[k] > 1-precision {
				r.Candidates = append(r.Candidates, Match{ctx.Dict.At(k).Name, sim[k]})
			}
		}
		if best >= 0 && 1-sim[best] < precision {
			r.Best = Match{ctx.Dict.At(best).Name, sim[best]}
		}
		sort.SliceStable(r.Candidates, func(a, b int) bool {
			return r.Candidates[a].Similarity > r.Candidates[b].Similarity
		})
		t.Rows = append(t.Rows, r)
	}
	return t
}

// BestNames returns the best match name per row, empty when unmatched
func (t Table) BestNames() []string {
	names := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		names[i] = r.Best.Name
	}
	return names
}

// Peaks returns the trace index per row
func (t Table) Peaks() []int {
	idx := make([]int, len(t.Rows))
	for i, r := range t.Rows {
		idx[i] = r.Peak
	}
	return idx
}

// MaxCandidates is the largest number of candidates of any row
func (t Table) MaxCandidates() int {
	m := 0
	for _, r := range t.Rows {
		if len(r.Candidates) > m {
			m = len(r.Candidates)
		}
	}
	return m
}

// Matched counts the rows with a best match
func (t Table) Matched() int {
	c := 0
	for _, r := range t.Rows {
		if r.Best.Name != "" {
			c++
		}
	}
	return c
}
