package peaks

import "math"

// Resolving describes the resolving power of one peak
type Resolving struct {
	Peak  int     // index into the trace
	Time  float64 // peak time
	Width float64 // full width at half prominence, in time units
	Power float64 // t / (2 * width), equal to m / dm for a quadratic time-mass relation
}

// Resolution evaluates the resolving power of the peak nearest to target.
// time and v are parallel arrays of the trace the peaks were detected in.
func Resolution(time, v []float64, s Set, target float64) (Resolving, error) {
	if s.Len() == 0 {
		return Resolving{}, ErrNoPeaks
	}
	best := 0
	for k := 1; k < s.Len(); k++ {
		if math.Abs(time[s.Index[k]]-target) < math.Abs(time[s.Index[best]]-target) {
			best = k
		}
	}
	w := Widths(v, s, best, 0.5)
	dt := interp(time, w.Right) - interp(time, w.Left)
	r := Resolving{Peak: s.Index[best], Time: time[s.Index[best]], Width: dt}
	if dt > 0 {
		r.Power = r.Time / (2 * dt)
	}
	return r, nil
}

func interp(x []float64, idx float64) float64 {
	i := int(math.Floor(idx))
	if i < 0 {
		return x[0]
	}
	if i >= len(x)-1 {
		return x[len(x)-1]
	}
	f := idx - float64(i)
	return x[i] + f*(x[i+1]-x[i])
}
