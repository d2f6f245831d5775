package calib

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/optimize"

	"github.com/524D/tofcal/internal/massdict"
)

// Calibrant is a detected peak with the exact mass it was identified as
type Calibrant struct {
	Peak int     `json:"peak"` // trace index
	Time float64 `json:"time"`
	Mass float64 `json:"mass"`
	Name string  `json:"name"`
}

// Calibrants selects the peaks whose best match is a pure cluster of the
// reference element. names holds the best match for each entry of idx,
// empty for unmatched peaks.
func Calibrants(time []float64, idx []int, names []string, ctx massdict.Context) []Calibrant {
	var cal []Calibrant
	for k, i := range idx {
		if !ctx.IsPure(names[k]) {
			continue
		}
		m, ok := ctx.Dict.Mass(names[k])
		if !ok {
			continue
		}
		cal = append(cal, Calibrant{Peak: i, Time: time[i], Mass: m, Name: names[k]})
	}
	return cal
}

// ChiSquare is sum((mass(t_i)-m_i)^2 / m_i) over the calibrants
func ChiSquare(cal []Calibrant, p Params) float64 {
	chi2 := 0.0
	for _, c := range cal {
		d := p.Mass(c.Time) - c.Mass
		chi2 += d * d / c.Mass
	}
	return chi2
}

// Phase records one single-parameter fit with its pruning pass
type Phase struct {
	Start     float64 `json:"start"`      // parameter value before the fit
	Value     float64 `json:"value"`      // parameter value after pruning
	Initial   float64 `json:"chi2_start"` // chi-square at Start
	Benchmark float64 `json:"chi2"`       // chi-square after pruning
	Pruned    []int   `json:"pruned"`     // trace indices of dropped calibrants
}

// Refinement is the outcome of Calibrator.Refine
type Refinement struct {
	Seed   Params `json:"seed"`
	Params Params `json:"params"`
	G      Phase  `json:"g_phase"`
	TOff   Phase  `json:"t_off_phase"`
}

// Calibrator refines a seed calibration by chi-square minimization,
// dropping calibrants whose removal changes the fit by more than Threshold
type Calibrator struct {
	Threshold float64
	Logger    *zap.Logger
}

// Refine first fits G with t_off fixed at the seed, then fits t_off with G
// fixed at the result. Each fit is followed by a single forward pass in
// trace index order over the calibrants. Anchors are never dropped.
// Without calibrants the seed is returned with ErrNoCalibrants.
func (c Calibrator) Refine(cal []Calibrant, seed Params, anchors Anchors) (Refinement, error) {
	log := c.logger()
	r := Refinement{Seed: seed, Params: seed}
	if len(cal) == 0 {
		return r, ErrNoCalibrants
	}
	sorted := make([]Calibrant, len(cal))
	copy(sorted, cal)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Peak < sorted[j].Peak })

	gPhase, err := c.phase(sorted, anchors, seed.G, func(x float64) Params {
		return Params{G: x, TOff: seed.TOff}
	})
	if err != nil {
		return r, fmt.Errorf("G phase: %w", err)
	}
	r.G = gPhase
	r.Params.G = gPhase.Value
	log.Debug("G phase done",
		zap.Float64("g", gPhase.Value), zap.Float64("chi2", gPhase.Benchmark), zap.Ints("pruned", gPhase.Pruned))

	tPhase, err := c.phase(sorted, anchors, seed.TOff, func(x float64) Params {
		return Params{G: gPhase.Value, TOff: x}
	})
	if err != nil {
		return r, fmt.Errorf("t_off phase: %w", err)
	}
	r.TOff = tPhase
	r.Params.TOff = tPhase.Value
	log.Debug("t_off phase done",
		zap.Float64("t_off", tPhase.Value), zap.Float64("chi2", tPhase.Benchmark), zap.Ints("pruned", tPhase.Pruned))

	if r.Params.G < 0 {
		return r, fmt.Errorf("%w: G=%g", ErrNegativeGain, r.Params.G)
	}
	return r, nil
}

func (c Calibrator) phase(cal []Calibrant, anchors Anchors, start float64, params func(float64) Params) (Phase, error) {
	ph := Phase{Start: start, Initial: ChiSquare(cal, params(start))}
	x, chi2, err := fit(cal, start, params)
	if err != nil {
		return ph, err
	}
	ph.Value, ph.Benchmark = x, chi2

	keep := make([]Calibrant, len(cal))
	copy(keep, cal)
	for _, cand := range cal {
		if anchors.Protected(cand.Peak) {
			continue
		}
		trial := without(keep, cand.Peak)
		if len(trial) == 0 {
			continue
		}
		x, chi2, err := fit(trial, ph.Value, params)
		if err != nil {
			return ph, err
		}
		if math.Abs(chi2-ph.Benchmark) > c.Threshold {
			c.logger().Debug("calibrant dropped",
				zap.Int("peak", cand.Peak), zap.String("name", cand.Name),
				zap.Float64("chi2", chi2), zap.Float64("benchmark", ph.Benchmark))
			keep = trial
			ph.Value, ph.Benchmark = x, chi2
			ph.Pruned = append(ph.Pruned, cand.Peak)
		}
	}
	return ph, nil
}

func (c Calibrator) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// fit minimizes the chi-square over one free parameter
func fit(cal []Calibrant, x0 float64, params func(float64) Params) (float64, float64, error) {
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return ChiSquare(cal, params(x[0]))
		},
	}
	res, err := optimize.Minimize(problem, []float64{x0}, nil, nil)
	if err != nil {
		return x0, ChiSquare(cal, params(x0)), fmt.Errorf("%w: %v", ErrNoConvergence, err)
	}
	return res.X[0], res.F, nil
}

func without(cal []Calibrant, peak int) []Calibrant {
	out := make([]Calibrant, 0, len(cal))
	for _, c := range cal {
		if c.Peak != peak {
			out = append(out, c)
		}
	}
	return out
}
