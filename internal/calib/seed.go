package calib

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	maxNewtonIter = 100
	newtonTol     = 1e-10 // relative to the target masses
)

// Point is a known (time, mass) pair
type Point struct {
	Time float64
	Mass float64
}

// Seed solves the atom/dimer system G*(t_i-t_off)^2 = i*unit for the two
// anchor peaks, starting at guess.
func Seed(time []float64, a Anchors, unit float64, guess Params) (Params, error) {
	if !a.Complete() {
		return guess, ErrNoAnchor
	}
	return SolveTwoPoint(Point{time[a.Atom], unit}, Point{time[a.Dimer], 2 * unit}, guess)
}

// SolveTwoPoint finds the parameters for which both points lie exactly on
// the calibration curve, using Newton iteration with a finite difference
// Jacobian. On failure the last iterate is returned with the error.
func SolveTwoPoint(p1, p2 Point, guess Params) (Params, error) {
	f := func(y, x []float64) {
		y[0] = Mass(p1.Time, x[0], x[1]) - p1.Mass
		y[1] = Mass(p2.Time, x[0], x[1]) - p2.Mass
	}
	tol := newtonTol * math.Max(1, math.Max(math.Abs(p1.Mass), math.Abs(p2.Mass)))

	x := []float64{guess.G, guess.TOff}
	y := make([]float64, 2)
	f(y, x)
	jac := mat.NewDense(2, 2, nil)
	settings := &fd.JacobianSettings{Formula: fd.Central}
	var step mat.VecDense
	trial := make([]float64, 2)
	ty := make([]float64, 2)

	for iter := 0; iter < maxNewtonIter; iter++ {
		res := floats.Norm(y, math.Inf(1))
		if res <= tol {
			p := Params{G: x[0], TOff: x[1]}
			if p.G < 0 {
				return p, fmt.Errorf("%w: G=%g", ErrNegativeGain, p.G)
			}
			return p, nil
		}
		fd.Jacobian(jac, f, x, settings)
		if err := step.SolveVec(jac, mat.NewVecDense(2, []float64{-y[0], -y[1]})); err != nil {
			return Params{G: x[0], TOff: x[1]}, fmt.Errorf("%w: %v", ErrNoConvergence, err)
		}
		// Backtrack until the residual decreases
		lambda := 1.0
		for ; lambda > 1e-10; lambda /= 2 {
			trial[0] = x[0] + lambda*step.AtVec(0)
			trial[1] = x[1] + lambda*step.AtVec(1)
			f(ty, trial)
			if floats.Norm(ty, math.Inf(1)) < res {
				break
			}
		}
		if lambda <= 1e-10 {
			return Params{G: x[0], TOff: x[1]}, fmt.Errorf("%w: residual %g", ErrNoConvergence, res)
		}
		copy(x, trial)
		copy(y, ty)
	}
	return Params{G: x[0], TOff: x[1]}, fmt.Errorf("%w: %d iterations", ErrNoConvergence, maxNewtonIter)
}
