package waveform

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Recognized smoothing strengths
const (
	MinLambda = 1e0
	MaxLambda = 1e12
)

var (
	// ErrLambda means the smoothing strength is outside [MinLambda, MaxLambda]
	ErrLambda = errors.New("waveform: lambda out of range")
	// ErrSingular means the smoothing system could not be factorized
	ErrSingular = errors.New("waveform: smoothing system not positive definite")
)

// Smoother estimates instrument drift from a reference trace with a
// discrete smoothing spline: it solves (I + lambda*D*D^T) z = y, where D is
// the n x (n-2) second order difference matrix.
type Smoother struct {
	Lambda     float64 // larger is smoother
	Multiplier float64 // scale applied to the smooth trend
}

// Smooth returns the smooth trend z of y. The system matrix is
// pentadiagonal, so it is stored as a symmetric band matrix and solved with
// a banded Cholesky factorization.
func (s Smoother) Smooth(y []float64) ([]float64, error) {
	if s.Lambda < MinLambda || s.Lambda > MaxLambda {
		return nil, fmt.Errorf("%w: %g", ErrLambda, s.Lambda)
	}
	n := len(y)
	if n < 3 {
		// No second differences to penalize
		z := make([]float64, n)
		copy(z, y)
		return z, nil
	}

	a := SmoothingSystem(n, s.Lambda)
	var ch mat.BandCholesky
	if ok := ch.Factorize(a); !ok {
		return nil, ErrSingular
	}
	z := mat.NewVecDense(n, nil)
	if err := ch.SolveVecTo(z, mat.NewVecDense(n, append([]float64(nil), y...))); err != nil {
		return nil, fmt.Errorf("waveform: smoothing solve: %w", err)
	}
	return z.RawVector().Data, nil
}

// Baseline smooths the reference voltage and scales it by Multiplier
func (s Smoother) Baseline(ref *Waveform) ([]float64, error) {
	if ref == nil || ref.Len() == 0 {
		return nil, ErrEmpty
	}
	z, err := s.Smooth(ref.Voltage)
	if err != nil {
		return nil, err
	}
	floats.Scale(s.Multiplier, z)
	return z, nil
}

// SmoothingSystem builds I + lambda*D*D^T as a band matrix with bandwidth 2.
// Column j of D holds the stencil (1, -2, 1) at rows j..j+2.
func SmoothingSystem(n int, lambda float64) *mat.SymBandDense {
	stencil := [3]float64{1, -2, 1}
	d0 := make([]float64, n)
	d1 := make([]float64, n)
	d2 := make([]float64, n)
	for i := range d0 {
		d0[i] = 1
	}
	for j := 0; j+2 < n; j++ {
		for p := 0; p < 3; p++ {
			for q := p; q < 3; q++ {
				v := lambda * stencil[p] * stencil[q]
				switch q - p {
				case 0:
					d0[j+p] += v
				case 1:
					d1[j+p] += v
				case 2:
					d2[j+p] += v
				}
			}
		}
	}

	a := mat.NewSymBandDense(n, 2, nil)
	for i := 0; i < n; i++ {
		a.SetSymBand(i, i, d0[i])
		if i+1 < n {
			a.SetSymBand(i, i+1, d1[i])
		}
		if i+2 < n {
			a.SetSymBand(i, i+2, d2[i])
		}
	}
	return a
}
