package calib

import (
	"fmt"
	"math"

	"github.com/524D/tofcal/internal/peaks"
)

// DefaultAnchorWindow is the distance, in reference element masses, within
// which a peak may act as atom or dimer
const DefaultAnchorWindow = 0.25

// NoAnchor marks a missing anchor
const NoAnchor = -1

// Anchors are the trace indices of the atom and dimer peaks of the
// reference element
type Anchors struct {
	Atom  int `json:"atom"`
	Dimer int `json:"dimer"`
}

// Protected reports whether trace index i is an anchor
func (a Anchors) Protected(i int) bool {
	return i != NoAnchor && (i == a.Atom || i == a.Dimer)
}

// Complete reports whether both anchors were found
func (a Anchors) Complete() bool {
	return a.Atom != NoAnchor && a.Dimer != NoAnchor
}

// FindAnchors converts the peak times with the rough calibration prior and
// picks, for 1x and 2x the reference mass unit, the most prominent peak
// within window. Equal prominences resolve to the lower index. Missing
// anchors are set to NoAnchor and reported with ErrNoAnchor.
func FindAnchors(time []float64, s peaks.Set, prior Params, unit, window float64) (Anchors, error) {
	a := Anchors{Atom: pick(time, s, prior, unit, window, 1), Dimer: pick(time, s, prior, unit, window, 2)}
	switch {
	case a.Atom == NoAnchor && a.Dimer == NoAnchor:
		return a, fmt.Errorf("%w: no atom or dimer within %g units", ErrNoAnchor, window)
	case a.Atom == NoAnchor:
		return a, fmt.Errorf("%w: no atom within %g units", ErrNoAnchor, window)
	case a.Dimer == NoAnchor:
		return a, fmt.Errorf("%w: no dimer within %g units", ErrNoAnchor, window)
	}
	return a, nil
}

func pick(time []float64, s peaks.Set, prior Params, unit, window float64, n int) int {
	best := NoAnchor
	bestProm := math.Inf(-1)
	for k, i := range s.Index {
		if math.Abs(prior.InUnits(time[i], unit)-float64(n)) >= window {
			continue
		}
		if s.Prominence[k] > bestProm {
			best = i
			bestProm = s.Prominence[k]
		}
	}
	return best
}
