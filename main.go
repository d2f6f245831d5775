// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

// Command tofcal calibrates time-of-flight traces and identifies their
// peaks against a dictionary of cluster masses.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/524D/tofcal/internal/calib"
	"github.com/524D/tofcal/internal/logging"
	"github.com/524D/tofcal/internal/massdict"
	"github.com/524D/tofcal/internal/peaks"
	"github.com/524D/tofcal/internal/report"
	"github.com/524D/tofcal/internal/waveform"
)

// Program name and version, appended to software list in mzML output
const progName = "tofcal"

var progVersion = `Unknown`

// Largest cluster of the built-in dictionary used without --dict
const defaultMaxCluster = 20

var (
	configPath  string
	verbose     bool
	quiet       bool
	jsonLog     bool
	showVersion bool

	analysis     = defaultSettings()
	timeColumn   int
	voltColumn   int
	spectrum     string
	tableOut     string
	calOut       string
	calIn        string
	parquetOut   string
	compression  string
	mzMLOut      string
	resolveAt    float64
	maxCandShown int

	dictElements string
	dictOut      string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tofcal [flags] <waveform>",
		Short: "Calibrate a time-of-flight trace and identify its peaks",
		Long: `tofcal reads a trace (CSV, .npy or mzML), detects its peaks, calibrates the
time axis with mass = G*(t-t_off)^2 and matches the peaks against a mass
dictionary.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runAnalyzeCmd,
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "TOML config `file` (default $XDG_CONFIG_HOME/tofcal/config.toml)")
	pf.BoolVar(&verbose, "verbose", false, "print more verbose progress information")
	pf.BoolVar(&quiet, "quiet", false, "don't print any output except for errors")
	pf.BoolVar(&jsonLog, "json-log", false, "write log entries as JSON lines")
	pf.Float64Var(&analysis.g, "g", analysis.g, "prior gain G (u/us^2)")
	pf.Float64Var(&analysis.tOff, "t-off", analysis.tOff, "prior time offset (us)")
	pf.StringVar(&calIn, "prior-cal", "", "calibration record `file` whose parameters replace --g and --t-off")

	f := rootCmd.Flags()
	f.BoolVar(&showVersion, "version", false, "show software version")
	f.Float64Var(&analysis.prominence, "prominence", analysis.prominence, "minimum peak prominence")
	f.StringVar(&analysis.element, "element", analysis.element, "reference element symbol")
	f.Float64Var(&analysis.threshold, "threshold", analysis.threshold, "chi-square change that drops a calibration peak")
	f.Float64Var(&analysis.anchorWindow, "anchor-window", analysis.anchorWindow, "atom/dimer search window in element masses")
	f.Float64Var(&analysis.precision, "precision", analysis.precision, "maximum relative mass mismatch of a match (0-1)")
	f.StringVar(&analysis.dictionary, "dict", "", "mass dictionary JSON `file` (default: pure clusters of --element)")
	f.StringVar(&analysis.reference, "reference", "", "reference trace `file` for a smoothed baseline")
	f.Float64Var(&analysis.lambda, "lambda", analysis.lambda, "smoothing strength of the reference baseline")
	f.Float64Var(&analysis.multiplier, "multiplier", analysis.multiplier, "scale of the reference baseline")
	f.IntVar(&timeColumn, "time-col", waveform.DefaultColumns.Time, "CSV column of the time values")
	f.IntVar(&voltColumn, "volt-col", waveform.DefaultColumns.Voltage, "CSV column of the voltages")
	f.StringVar(&spectrum, "spectrum", "", "spectrum index or scan id for mzML input (default first spectrum)")
	f.StringVarP(&tableOut, "output", "o", "", "`filename` of the CSV result table")
	f.StringVar(&calOut, "cal", "", "`filename` for output of the calibration record (JSON)")
	f.StringVar(&parquetOut, "parquet", "", "`filename` of the Parquet candidate table")
	f.StringVar(&compression, "compression", "snappy", "Parquet compression (snappy, zstd, gzip, none)")
	f.StringVar(&mzMLOut, "mzml-out", "", "`filename` of the calibrated mzML (mzML input only)")
	f.Float64Var(&resolveAt, "resolve", 0, "report the resolving power of the peak nearest this time (us)")
	f.IntVar(&maxCandShown, "show-candidates", 3, "candidates per peak in the printed table, <0 for all")

	rootCmd.AddCommand(newSolveCmd())
	rootCmd.AddCommand(newDictionaryCmd())
	rootCmd.AddCommand(newConfigCmd())
	return rootCmd
}

func newLogger() *zap.Logger {
	verbosity := logging.InfoDefault
	// TOFCAL_DEBUG=1 has the same effect as --verbose
	if verbose || os.Getenv("TOFCAL_DEBUG") == `1` {
		verbosity = logging.InfoVerbose
	}
	if quiet {
		verbosity = logging.InfoSilent
	}
	return logging.NewWriter(os.Stderr, verbosity, jsonLog)
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return defaultConfigPath()
}

// effectiveSettings merges the flag values with the config file, flags
// taking precedence, and applies --prior-cal
func effectiveSettings(cmd *cobra.Command) (settings, error) {
	fileCfg, err := loadConfig(resolvedConfigPath())
	if err != nil {
		return settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	s := analysis
	fileCfg.apply(cmd, &s)
	if calIn != "" {
		rec, err := readCalibration(calIn)
		if err != nil {
			return settings{}, err
		}
		s.g, s.tOff = rec.Params.G, rec.Params.TOff
	}
	if err := s.validate(); err != nil {
		return settings{}, err
	}
	return s, nil
}

func runAnalyzeCmd(cmd *cobra.Command, args []string) error {
	if showVersion {
		fmt.Fprintf(os.Stderr, "%s version %s\n", progName, progVersion)
		return nil
	}
	if len(args) != 1 {
		return fmt.Errorf("expected one waveform file")
	}
	log := newLogger()
	defer log.Sync()

	s, err := effectiveSettings(cmd)
	if err != nil {
		return err
	}

	ctx, err := loadContext(s, log)
	if err != nil {
		return err
	}

	cols := waveform.Columns{Time: timeColumn, Voltage: voltColumn}
	w, src, err := waveform.LoadFile(args[0], cols, spectrum)
	if err != nil {
		return err
	}
	log.Info("waveform loaded", zap.String("file", args[0]), zap.String("format", src.Format), zap.Int("samples", w.Len()))
	if src.MzML != nil {
		log.Debug("mzML spectrum", zap.Int("index", src.Spectrum), zap.String("scan_id", src.ScanID))
		if !src.Profile {
			log.Warn("spectrum is not flagged as profile data, centroided peaks are not a trace",
				zap.String("scan_id", src.ScanID))
		}
	}

	opts := Options{
		Prominence:   s.prominence,
		Precision:    s.precision,
		Threshold:    s.threshold,
		AnchorWindow: s.anchorWindow,
		Prior:        s.prior(),
	}
	if s.reference != "" {
		opts.Baseline, err = referenceBaseline(s, cols, w.Len())
		if err != nil {
			return err
		}
	}

	session := NewSession(ctx, opts, log)
	res, err := session.Analyze(w)
	if err != nil {
		return err
	}

	rec := newCalibrationRecord(res, args[0], ctx.Element, ctx.ElementMass, opts.Prior)
	if resolveAt > 0 {
		r, err := peaks.Resolution(w.Time, w.Voltage, res.Peaks, resolveAt)
		if err != nil {
			return err
		}
		rec.Resolution = &r
		log.Info("resolving power", zap.Float64("time", r.Time), zap.Float64("fwhm", r.Width), zap.Float64("r", r.Power))
	}
	return writeResults(res, rec, src)
}

func writeResults(res Result, rec calibrationRecord, src waveform.Source) error {
	if calOut != "" {
		if err := writeCalibration(calOut, rec); err != nil {
			return err
		}
	}
	if parquetOut != "" {
		if err := writeTableParquet(parquetOut, res.Table, compression); err != nil {
			return err
		}
	}
	if mzMLOut != "" {
		if err := writeCalibratedMzML(mzMLOut, src, res); err != nil {
			return err
		}
	}
	if tableOut != "" {
		return writeTableCSV(tableOut, res.Table)
	}
	if quiet {
		return nil
	}
	fmt.Printf("G = %.8g u/us^2  t_off = %.8g us\n", res.Params.G, res.Params.TOff)
	if term.IsTerminal(int(os.Stdout.Fd())) {
		printTable(os.Stdout, res.Table, maxCandShown)
		return nil
	}
	return report.WriteCSV(os.Stdout, res.Table)
}

// loadContext reads the dictionary, or builds one with the pure clusters of
// the reference element when none is configured
func loadContext(s settings, log *zap.Logger) (massdict.Context, error) {
	var d *massdict.Dictionary
	var err error
	if s.dictionary != "" {
		d, err = massdict.Load(s.dictionary)
	} else {
		var masses map[string]float64
		masses, err = massdict.Generate([]massdict.Composition{{Element: s.element, MaxCount: defaultMaxCluster}})
		if err == nil {
			d, err = massdict.New(masses)
		}
		log.Info("using built-in dictionary", zap.String("element", s.element), zap.Int("max_count", defaultMaxCluster))
	}
	if err != nil {
		return massdict.Context{}, err
	}
	return massdict.NewContext(d, s.element)
}

func referenceBaseline(s settings, cols waveform.Columns, n int) ([]float64, error) {
	ref, _, err := waveform.LoadFile(s.reference, cols, spectrum)
	if err != nil {
		return nil, err
	}
	if ref.Len() != n {
		return nil, fmt.Errorf("%s: %w: %d samples, waveform has %d", s.reference, waveform.ErrLength, ref.Len(), n)
	}
	sm := waveform.Smoother{Lambda: s.lambda, Multiplier: s.multiplier}
	return sm.Baseline(ref)
}

func newSolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "solve <t1> <m1> <t2> <m2>",
		Short: "Solve the calibration through two known (time, mass) points",
		Args:  cobra.ExactArgs(4),
		RunE:  runSolveCmd,
	}
}

func runSolveCmd(cmd *cobra.Command, args []string) error {
	v := make([]float64, len(args))
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return fmt.Errorf("argument %d: %w", i+1, err)
		}
		v[i] = f
	}
	log := newLogger()
	defer log.Sync()
	s, err := effectiveSettings(cmd)
	if err != nil {
		return err
	}

	p, err := calib.SolveTwoPoint(calib.Point{Time: v[0], Mass: v[1]}, calib.Point{Time: v[2], Mass: v[3]}, s.prior())
	if err != nil {
		log.Warn("two point solve", zap.Error(err), zap.Float64("g", p.G), zap.Float64("t_off", p.TOff))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "G = %.10g u/us^2  t_off = %.10g us\n", p.G, p.TOff)
	return nil
}

func newDictionaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dictionary",
		Short: "Generate a cluster mass dictionary",
		Args:  cobra.NoArgs,
		RunE:  runDictionaryCmd,
	}
	cmd.Flags().StringVar(&dictElements, "elements", defaultElement+":"+strconv.Itoa(defaultMaxCluster), "elements with maximum count, e.g. Co:20,Ar:2")
	cmd.Flags().StringVarP(&dictOut, "output", "o", "", "`filename` of the dictionary (default stdout)")
	return cmd
}

func runDictionaryCmd(_ *cobra.Command, _ []string) error {
	comps, err := massdict.ParseComposition(dictElements)
	if err != nil {
		return err
	}
	masses, err := massdict.Generate(comps)
	if err != nil {
		return err
	}
	if dictOut == "" {
		return massdict.WriteGenerated(os.Stdout, comps, masses)
	}
	f, err := os.Create(dictOut)
	if err != nil {
		return err
	}
	if err := massdict.WriteGenerated(f, comps, masses); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create the config file if it does not exist and print its path",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := resolvedConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}
	fmt.Println(path)
	return nil
}
