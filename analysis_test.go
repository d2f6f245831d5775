// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/524D/tofcal/internal/calib"
	"github.com/524D/tofcal/internal/massdict"
	"github.com/524D/tofcal/internal/peaks"
	"github.com/524D/tofcal/internal/waveform"
)

const (
	massCo = 58.93319
	massAr = 39.948
)

func testContext(t *testing.T) massdict.Context {
	t.Helper()
	masses := map[string]float64{"Ar1-": massAr, "Co1Ar1-": massCo + massAr}
	for n := 1; n <= 8; n++ {
		masses[massdict.ClusterName("Co", n)] = float64(n) * massCo
	}
	d, err := massdict.New(masses)
	require.NoError(t, err)
	ctx, err := massdict.NewContext(d, "Co")
	require.NoError(t, err)
	return ctx
}

func testOptions() Options {
	return Options{
		Prominence:   0.2,
		Precision:    0.01,
		Threshold:    calib.DefaultThreshold,
		AnchorWindow: calib.DefaultAnchorWindow,
		Prior:        calib.Default(),
	}
}

// syntheticWaveform builds an instrument trace (seconds, negative peaks on
// a small offset) with Gaussian peaks at the flight times of masses
func syntheticWaveform(t *testing.T, p calib.Params, masses []float64, offset float64) *waveform.Waveform {
	t.Helper()
	time, raw := syntheticSamples(p, masses, offset)
	w, err := waveform.Load(time, raw)
	require.NoError(t, err)
	return w
}

func syntheticSamples(p calib.Params, masses []float64, offset float64) ([]float64, []float64) {
	const dt = 1e-9 // s
	last := 0.0
	for _, m := range masses {
		last = math.Max(last, p.TOff+math.Sqrt(m/p.G))
	}
	n := int(last*1e-6/dt*1.2) + 1000
	time := make([]float64, n)
	raw := make([]float64, n)
	for i := range time {
		time[i] = float64(i)*dt - 100*dt
		raw[i] = -offset
	}
	for k, m := range masses {
		c := int(math.Round((p.TOff+math.Sqrt(m/p.G))*1e-6/dt)) + 100
		h := 1.0 - 0.05*float64(k)
		for i := c - 300; i <= c+300; i++ {
			d := float64(i-c) / 20
			raw[i] -= h * math.Exp(-0.5*d*d)
		}
	}
	return time, raw
}

func TestAnalyze(t *testing.T) {
	ctx := testContext(t)
	truth := calib.Params{G: 0.0993, TOff: 0.2411}
	masses := []float64{massAr, massCo, 2 * massCo, 3 * massCo, 4 * massCo, 5 * massCo, 6 * massCo}
	w := syntheticWaveform(t, truth, masses, 0.01)

	s := NewSession(ctx, testOptions(), nil)
	res, err := s.Analyze(w)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.InDelta(t, 0.01, res.Baseline, 1e-12)
	require.Equal(t, len(masses), res.Peaks.Len())
	assert.True(t, res.Anchors.Complete())
	require.NotNil(t, res.Refinement)
	assert.Len(t, res.Calibrants, 6)
	assert.Empty(t, res.Refinement.G.Pruned)
	assert.Empty(t, res.Refinement.TOff.Pruned)

	assert.Equal(t, []string{"Ar1-", "Co1-", "Co2-", "Co3-", "Co4-", "Co5-", "Co6-"}, res.Table.BestNames())
	for i, r := range res.Table.Rows {
		assert.InDelta(t, masses[i], r.Mass, 0.05, "peak %d", i)
	}
	assert.InDelta(t, truth.G, res.Params.G, 1e-4)
	assert.Equal(t, res.Params, s.Params())
}

func TestAnalyzeNoPeaks(t *testing.T) {
	ctx := testContext(t)
	w, err := waveform.Load([]float64{0, 1e-9, 2e-9, 3e-9}, []float64{0, 0, 0, 0})
	require.NoError(t, err)
	_, err = NewSession(ctx, testOptions(), nil).Analyze(w)
	assert.ErrorIs(t, err, peaks.ErrNoPeaks)

	_, err = NewSession(ctx, testOptions(), nil).Analyze(nil)
	assert.ErrorIs(t, err, waveform.ErrEmpty)
}

func TestAnalyzeWithoutAnchors(t *testing.T) {
	ctx := testContext(t)
	w := syntheticWaveform(t, calib.Default(), []float64{massAr}, 0)
	opts := testOptions()
	s := NewSession(ctx, opts, nil)
	res, err := s.Analyze(w)
	require.NoError(t, err)
	assert.True(t, res.HasWarning(calib.ErrNoAnchor))
	assert.True(t, res.HasWarning(calib.ErrNoCalibrants))
	assert.Nil(t, res.Refinement)
	assert.Equal(t, opts.Prior, res.Params)
	assert.Equal(t, opts.Prior, s.Params())
	assert.Equal(t, []string{"Ar1-"}, res.Table.BestNames())
}

func TestAnalyzeReferenceBaselineLength(t *testing.T) {
	ctx := testContext(t)
	w := syntheticWaveform(t, calib.Default(), []float64{massCo, 2 * massCo}, 0)
	opts := testOptions()
	opts.Baseline = make([]float64, w.Len()-1)
	_, err := NewSession(ctx, opts, nil).Analyze(w)
	assert.True(t, errors.Is(err, waveform.ErrLength))
}

func TestAnalyzeFallsBackToSessionCalibration(t *testing.T) {
	ctx := testContext(t)
	truth := calib.Params{G: 0.0993, TOff: 0.2411}
	s := NewSession(ctx, testOptions(), nil)

	first, err := s.Analyze(syntheticWaveform(t, truth, []float64{massCo, 2 * massCo, 3 * massCo}, 0))
	require.NoError(t, err)
	require.Empty(t, first.Warnings)
	require.Equal(t, first.Params, s.Params())

	// No atom or dimer: the seed is the calibration of the previous trace
	second, err := s.Analyze(syntheticWaveform(t, truth, []float64{3 * massCo, 4 * massCo}, 0))
	require.NoError(t, err)
	assert.True(t, second.HasWarning(calib.ErrNoAnchor))
	assert.Equal(t, first.Params, second.Seed)
	require.NotNil(t, second.Refinement)
	assert.Len(t, second.Calibrants, 2)
	assert.InDelta(t, truth.G, second.Params.G, 1e-4)
	assert.Equal(t, []string{"Co3-", "Co4-"}, second.Table.BestNames())
	assert.Equal(t, second.Params, s.Params())

	// Nothing to calibrate on: the session calibration is kept as is
	third, err := s.Analyze(syntheticWaveform(t, truth, []float64{1.5 * massCo}, 0))
	require.NoError(t, err)
	assert.True(t, third.HasWarning(calib.ErrNoAnchor))
	assert.True(t, third.HasWarning(calib.ErrNoCalibrants))
	assert.Nil(t, third.Refinement)
	assert.Equal(t, second.Params, third.Params)
	assert.Equal(t, second.Params, s.Params())
}

func TestAnalyzeSeedFailureKeepsPrior(t *testing.T) {
	ctx := testContext(t)
	opts := testOptions()
	// A window this wide selects the single peak as both atom and dimer and
	// the two point system becomes singular
	opts.AnchorWindow = 0.6
	w := syntheticWaveform(t, opts.Prior, []float64{1.5 * massCo}, 0)
	s := NewSession(ctx, opts, nil)
	res, err := s.Analyze(w)
	require.NoError(t, err)
	require.Equal(t, res.Anchors.Atom, res.Anchors.Dimer)
	assert.True(t, res.HasWarning(calib.ErrNoConvergence))
	assert.False(t, res.HasWarning(calib.ErrNoAnchor))
	assert.Equal(t, opts.Prior, res.Seed)
	assert.Equal(t, opts.Prior, res.Params)
	assert.Equal(t, opts.Prior, s.Params())
}

func TestAnalyzeDetectsAfterBaseline(t *testing.T) {
	ctx := testContext(t)
	truth := calib.Params{G: 0.0993, TOff: 0.2411}
	// Peak tops stay below the absolute height gate until the offset is removed
	w := syntheticWaveform(t, truth, []float64{massCo, 2 * massCo, 3 * massCo}, -0.9)
	opts := testOptions()
	_, err := peaks.Detect(append([]float64(nil), w.Voltage...), opts.Prominence)
	require.ErrorIs(t, err, peaks.ErrNoPeaks)

	res, err := NewSession(ctx, opts, nil).Analyze(w)
	require.NoError(t, err)
	assert.InDelta(t, -0.9, res.Baseline, 1e-12)
	assert.Equal(t, 3, res.Peaks.Len())
	assert.Empty(t, res.Warnings)
}

func writeTraceCSV(t *testing.T, fn string, time, raw []float64) {
	t.Helper()
	var b strings.Builder
	b.WriteString("time,voltage\n")
	for i := range time {
		fmt.Fprintf(&b, "%s,%s\n", strconv.FormatFloat(time[i], 'g', -1, 64), strconv.FormatFloat(raw[i], 'g', -1, 64))
	}
	require.NoError(t, os.WriteFile(fn, []byte(b.String()), 0o644))
}

func TestAnalyzeWithReferenceBaseline(t *testing.T) {
	ctx := testContext(t)
	truth := calib.Params{G: 0.0993, TOff: 0.2411}
	masses := []float64{massCo, 2 * massCo, 3 * massCo}
	time, raw := syntheticSamples(truth, masses, 0.01)
	// Linear drift on top of the offset, in the trace and in the reference
	ref := make([]float64, len(raw))
	for i := range raw {
		drift := 0.05 * float64(i) / float64(len(raw))
		raw[i] -= drift
		ref[i] = -0.01 - drift
	}
	fn := filepath.Join(t.TempDir(), "background.csv")
	writeTraceCSV(t, fn, time, ref)

	w, err := waveform.Load(time, raw)
	require.NoError(t, err)
	s := defaultSettings()
	s.reference = fn
	opts := testOptions()
	opts.Baseline, err = referenceBaseline(s, waveform.DefaultColumns, w.Len())
	require.NoError(t, err)

	res, err := NewSession(ctx, opts, nil).Analyze(w)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Zero(t, res.Baseline)
	assert.InDelta(t, 0, w.Voltage[0], 1e-6)
	assert.InDelta(t, 0, w.Voltage[w.Len()-1], 1e-6)
	assert.Equal(t, 3, res.Peaks.Len())
	assert.Equal(t, []string{"Co1-", "Co2-", "Co3-"}, res.Table.BestNames())
	assert.InDelta(t, truth.G, res.Params.G, 1e-4)
}
