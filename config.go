// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/524D/tofcal/internal/calib"
	"github.com/524D/tofcal/internal/characterize"
	"github.com/524D/tofcal/internal/massdict"
	"github.com/524D/tofcal/internal/waveform"
)

const (
	defaultProminence = 0.2
	defaultElement    = "Co"
	defaultLambda     = 1e6
	defaultMultiplier = 1.0
)

// ErrConfig is returned for settings outside their valid range
var ErrConfig = errors.New("invalid setting")

// fileConfig is the TOML configuration file. Pointers distinguish unset
// keys from zero values.
type fileConfig struct {
	Detect       detectConfig       `toml:"detect"`
	Calibrate    calibrateConfig    `toml:"calibrate"`
	Characterize characterizeConfig `toml:"characterize"`
	Baseline     baselineConfig     `toml:"baseline"`
}

type detectConfig struct {
	Prominence *float64 `toml:"prominence"`
}

type calibrateConfig struct {
	Element      *string  `toml:"element"`
	G            *float64 `toml:"g"`
	TOff         *float64 `toml:"t_off"`
	Threshold    *float64 `toml:"threshold"`
	AnchorWindow *float64 `toml:"anchor_window"`
}

type characterizeConfig struct {
	Precision  *float64 `toml:"precision"`
	Dictionary *string  `toml:"dictionary"`
}

type baselineConfig struct {
	Lambda     *float64 `toml:"lambda"`
	Multiplier *float64 `toml:"multiplier"`
	Reference  *string  `toml:"reference"`
}

// settings holds the effective analysis parameters
type settings struct {
	prominence   float64
	element      string
	g            float64
	tOff         float64
	threshold    float64
	anchorWindow float64
	precision    float64
	dictionary   string
	lambda       float64
	multiplier   float64
	reference    string
}

func defaultSettings() settings {
	return settings{
		prominence:   defaultProminence,
		element:      defaultElement,
		g:            calib.DefaultG,
		tOff:         calib.DefaultTOff,
		threshold:    calib.DefaultThreshold,
		anchorWindow: calib.DefaultAnchorWindow,
		precision:    characterize.DefaultPrecision,
		lambda:       defaultLambda,
		multiplier:   defaultMultiplier,
	}
}

func (s settings) prior() calib.Params {
	return calib.Params{G: s.g, TOff: s.tOff}
}

func (s settings) validate() error {
	switch {
	case !(s.prominence > 0):
		return fmt.Errorf("%w: --prominence must be > 0", ErrConfig)
	case !(s.precision > 0 && s.precision < 1):
		return fmt.Errorf("%w: --precision must be between 0 and 1", ErrConfig)
	case !(s.threshold >= 0):
		return fmt.Errorf("%w: --threshold must be >= 0", ErrConfig)
	case !(s.anchorWindow > 0 && s.anchorWindow < 0.5):
		// Half a unit or more lets one peak be both atom and dimer
		return fmt.Errorf("%w: --anchor-window must be between 0 and 0.5", ErrConfig)
	case !(s.g >= 0):
		return fmt.Errorf("%w: --g must be >= 0", ErrConfig)
	case s.element == "":
		return fmt.Errorf("%w: --element must not be empty", ErrConfig)
	case s.dictionary == "" && !knownElement(s.element):
		return fmt.Errorf("%w: --element %q has no atomic mass, use --dict", ErrConfig, s.element)
	case s.reference != "" && (s.lambda < waveform.MinLambda || s.lambda > waveform.MaxLambda):
		return fmt.Errorf("%w: --lambda must be between %g and %g", ErrConfig, waveform.MinLambda, waveform.MaxLambda)
	}
	return nil
}

func knownElement(symbol string) bool {
	_, ok := massdict.AtomicMass(symbol)
	return ok
}

// loadConfig reads a TOML config from path. A missing file is not an error.
func loadConfig(path string) (fileConfig, error) {
	if path == "" {
		return fileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fileConfig{}, nil
		}
		return fileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg fileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// apply copies file values into s for every flag the user did not set
func (cfg fileConfig) apply(cmd *cobra.Command, s *settings) {
	applyFloatConfig(cmd, "prominence", &s.prominence, cfg.Detect.Prominence)
	applyStringConfig(cmd, "element", &s.element, cfg.Calibrate.Element)
	applyFloatConfig(cmd, "g", &s.g, cfg.Calibrate.G)
	applyFloatConfig(cmd, "t-off", &s.tOff, cfg.Calibrate.TOff)
	applyFloatConfig(cmd, "threshold", &s.threshold, cfg.Calibrate.Threshold)
	applyFloatConfig(cmd, "anchor-window", &s.anchorWindow, cfg.Calibrate.AnchorWindow)
	applyFloatConfig(cmd, "precision", &s.precision, cfg.Characterize.Precision)
	applyStringConfig(cmd, "dict", &s.dictionary, cfg.Characterize.Dictionary)
	applyFloatConfig(cmd, "lambda", &s.lambda, cfg.Baseline.Lambda)
	applyFloatConfig(cmd, "multiplier", &s.multiplier, cfg.Baseline.Multiplier)
	applyStringConfig(cmd, "reference", &s.reference, cfg.Baseline.Reference)
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

// xdgConfigHome returns the XDG config home or a default fallback
func xdgConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

func defaultConfigPath() string {
	return filepath.Join(xdgConfigHome(), "tofcal", "config.toml")
}

func defaultConfigTemplate() string {
	d := defaultSettings()
	return fmt.Sprintf(`# tofcal configuration
# Uncomment a value to enable it. Command line flags override config values.

[detect]
# prominence = %g        # Minimum peak prominence (V)

[calibrate]
# element = %q          # Reference element, "<element>1-" must be in the dictionary
# g = %.8f         # Prior gain (u/us^2)
# t_off = %.8f     # Prior time offset (us)
# threshold = %g       # Chi-square change that drops a calibration peak
# anchor_window = %g     # Atom/dimer search window (element masses)

[characterize]
# precision = %g        # Maximum relative mass mismatch of a match
# dictionary = "masses.json"

[baseline]
# reference = "background.csv"  # Reference trace for a smoothed baseline
# lambda = %g           # Smoothing strength
# multiplier = %g          # Scale of the reference baseline
`,
		d.prominence, d.element, d.g, d.tOff, d.threshold, d.anchorWindow,
		d.precision, d.lambda, d.multiplier)
}
