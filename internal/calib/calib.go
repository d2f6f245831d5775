// Package calib converts flight times to masses with the quadratic
// time-of-flight relation mass = G*(t-t_off)^2, and estimates G and t_off
// from detected peaks.
package calib

import "errors"

// Instrument priors, used for anchor identification and as solver start
const (
	DefaultG    = 0.09949062 // u/us^2
	DefaultTOff = 0.23745731 // us
)

// DefaultThreshold is the chi-square improvement needed to drop a calibrant
const DefaultThreshold = 0.001

var (
	// ErrNoConvergence means an iterative solver gave up
	ErrNoConvergence = errors.New("calib: solver did not converge")
	// ErrNoAnchor means no atom or dimer peak could be identified
	ErrNoAnchor = errors.New("calib: no anchor peak")
	// ErrNegativeGain means a solve ended at G < 0
	ErrNegativeGain = errors.New("calib: negative gain")
	// ErrNoCalibrants means no peak matched a pure cluster of the reference element
	ErrNoCalibrants = errors.New("calib: no calibration peaks")
)

// Params are the two free parameters of the time to mass relation
type Params struct {
	G    float64 `json:"g"`
	TOff float64 `json:"t_off"`
}

// Default returns the instrument priors
func Default() Params {
	return Params{G: DefaultG, TOff: DefaultTOff}
}

// Mass computes G*(t-tOff)^2. Any t is accepted, including t < tOff.
func Mass(t, g, tOff float64) float64 {
	d := t - tOff
	return g * d * d
}

// Mass converts a single time
func (p Params) Mass(t float64) float64 {
	return Mass(t, p.G, p.TOff)
}

// InUnits converts a time to a mass expressed in multiples of unit
func (p Params) InUnits(t, unit float64) float64 {
	return p.Mass(t) / unit
}

// Masses converts a time axis
func (p Params) Masses(time []float64) []float64 {
	m := make([]float64, len(time))
	for i, t := range time {
		m[i] = p.Mass(t)
	}
	return m
}
