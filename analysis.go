// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/524D/tofcal/internal/calib"
	"github.com/524D/tofcal/internal/characterize"
	"github.com/524D/tofcal/internal/logging"
	"github.com/524D/tofcal/internal/massdict"
	"github.com/524D/tofcal/internal/peaks"
	"github.com/524D/tofcal/internal/waveform"
)

// Options control a Session
type Options struct {
	Prominence   float64
	Precision    float64
	Threshold    float64
	AnchorWindow float64
	Prior        calib.Params // rough calibration, also the seed solver start
	// Baseline, when set, is subtracted instead of the trailing mean
	Baseline []float64
}

// Session analyzes waveforms against one dictionary and reference element.
// It keeps the last good calibration as the fallback for later waveforms.
type Session struct {
	ctx    massdict.Context
	opts   Options
	log    *zap.Logger
	params calib.Params
}

// Result is the outcome of Session.Analyze
type Result struct {
	Waveform   *waveform.Waveform
	Baseline   float64 // subtracted trailing mean, 0 with a reference baseline
	Peaks      peaks.Set
	Anchors    calib.Anchors
	Seed       calib.Params
	Calibrants []calib.Calibrant
	Refinement *calib.Refinement // nil when refinement was skipped
	Params     calib.Params
	Table      characterize.Table
	Warnings   []error
}

// NewSession creates a session. A nil logger discards all messages.
func NewSession(ctx massdict.Context, opts Options, log *zap.Logger) *Session {
	return &Session{ctx: ctx, opts: opts, log: logging.OrNop(log), params: opts.Prior}
}

// Params returns the calibration that Analyze falls back to
func (s *Session) Params() calib.Params {
	return s.params
}

// Analyze removes the baseline of w, detects and identifies its peaks and
// calibrates its time axis. It only fails for an unusable waveform or when
// no peak is found; numerical problems are reported in Result.Warnings and
// the best calibration available is used instead.
func (s *Session) Analyze(w *waveform.Waveform) (Result, error) {
	res := Result{
		Waveform: w,
		Anchors:  calib.Anchors{Atom: calib.NoAnchor, Dimer: calib.NoAnchor},
		Seed:     s.params,
		Params:   s.params,
	}
	if w == nil || w.Len() == 0 {
		return res, waveform.ErrEmpty
	}
	if s.opts.Baseline != nil {
		if err := w.SubtractBaseline(s.opts.Baseline); err != nil {
			return res, err
		}
	} else {
		res.Baseline = w.SubtractTrailingMean()
	}

	var err error
	res.Peaks, err = peaks.Detect(w.Voltage, s.opts.Prominence)
	if err != nil {
		return res, fmt.Errorf("prominence %g: %w", s.opts.Prominence, err)
	}
	s.log.Info("peaks detected", zap.Int("count", res.Peaks.Len()))

	seeded := false
	res.Anchors, err = calib.FindAnchors(w.Time, res.Peaks, s.opts.Prior, s.ctx.ElementMass, s.opts.AnchorWindow)
	if err != nil {
		s.warn(&res, err)
	} else {
		seed, err := calib.Seed(w.Time, res.Anchors, s.ctx.ElementMass, s.opts.Prior)
		if err != nil {
			s.warn(&res, fmt.Errorf("seed: %w", err))
		} else {
			res.Seed = seed
			seeded = true
			s.log.Info("seed calibration",
				zap.Float64("g", seed.G), zap.Float64("t_off", seed.TOff),
				zap.Int("atom", res.Anchors.Atom), zap.Int("dimer", res.Anchors.Dimer))
		}
	}
	res.Params = res.Seed

	seedTable := characterize.Characterize(w, res.Peaks, res.Seed, s.ctx, s.opts.Precision)
	res.Calibrants = calib.Calibrants(w.Time, seedTable.Peaks(), seedTable.BestNames(), s.ctx)
	c := calib.Calibrator{Threshold: s.opts.Threshold, Logger: s.log}
	ref, err := c.Refine(res.Calibrants, res.Seed, res.Anchors)
	if err != nil {
		s.warn(&res, fmt.Errorf("refinement: %w", err))
	} else {
		res.Refinement = &ref
		res.Params = ref.Params
		s.log.Info("refined calibration",
			zap.Float64("g", ref.Params.G), zap.Float64("t_off", ref.Params.TOff),
			zap.Float64("chi2", ref.TOff.Benchmark), zap.Int("calibrants", len(res.Calibrants)))
	}

	res.Table = characterize.Characterize(w, res.Peaks, res.Params, s.ctx, s.opts.Precision)
	s.log.Info("peaks characterized",
		zap.Int("matched", res.Table.Matched()), zap.Int("peaks", len(res.Table.Rows)))
	if seeded || res.Refinement != nil {
		s.params = res.Params
	}
	return res, nil
}

func (s *Session) warn(res *Result, err error) {
	res.Warnings = append(res.Warnings, err)
	s.log.Warn("analysis degraded", zap.Error(err))
}

// HasWarning reports whether any warning matches target
func (r Result) HasWarning(target error) bool {
	for _, w := range r.Warnings {
		if errors.Is(w, target) {
			return true
		}
	}
	return false
}
