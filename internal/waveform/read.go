package waveform

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/524D/tofcal/internal/mzml"
)

var (
	// ErrFormat means the file content does not contain a two column trace
	ErrFormat = errors.New("waveform: unsupported format")
	// ErrCalibrated means an mzML spectrum has an m/z axis instead of a
	// time axis, e.g. a file written with --mzml-out
	ErrCalibrated = errors.New("waveform: spectrum is already calibrated")
)

// Columns selects the time and voltage columns of a CSV file
type Columns struct {
	Time    int
	Voltage int
}

// DefaultColumns reads column 0 as time and column 1 as voltage
var DefaultColumns = Columns{Time: 0, Voltage: 1}

// ReadCSV reads raw (seconds, voltage) samples from comma separated text.
// Lines starting with '#' are skipped, as are leading rows that do not
// parse as numbers (column headers).
func ReadCSV(r io.Reader, cols Columns) ([]float64, []float64, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	need := cols.Time
	if cols.Voltage > need {
		need = cols.Voltage
	}
	var time, raw []float64
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if len(rec) <= need {
			if len(time) == 0 {
				continue // header
			}
			return nil, nil, fmt.Errorf("%w: line %d has %d columns", ErrFormat, line, len(rec))
		}
		t, errT := strconv.ParseFloat(strings.TrimSpace(rec[cols.Time]), 64)
		v, errV := strconv.ParseFloat(strings.TrimSpace(rec[cols.Voltage]), 64)
		if errT != nil || errV != nil {
			if len(time) == 0 {
				continue
			}
			return nil, nil, fmt.Errorf("%w: line %d is not numeric", ErrFormat, line)
		}
		time = append(time, t)
		raw = append(raw, v)
	}
	if len(time) == 0 {
		return nil, nil, fmt.Errorf("%w: no numeric rows", ErrFormat)
	}
	return time, raw, nil
}

// ReadNPY reads an N x 2 float array stored with numpy.save
func ReadNPY(r io.Reader) ([]float64, []float64, error) {
	var m mat.Dense
	if err := npyio.Read(r, &m); err != nil {
		return nil, nil, fmt.Errorf("waveform: npy: %w", err)
	}
	_, cols := m.Dims()
	if cols < 2 {
		return nil, nil, fmt.Errorf("%w: npy array has %d columns", ErrFormat, cols)
	}
	return mat.Col(nil, 0, &m), mat.Col(nil, 1, &m), nil
}

// ReadMzML reads the time and intensity arrays of the spectrum chosen by
// selector (see mzml.MzML.SpectrumIndex). mzML intensities are positive,
// so they are returned negated to match the instrument polarity that Load
// expects. The returned Source has no Filename or Format.
func ReadMzML(r io.Reader, selector string) ([]float64, []float64, Source, error) {
	var src Source
	f, err := mzml.Read(r)
	if err != nil {
		return nil, nil, src, err
	}
	if src.Spectrum, err = f.SpectrumIndex(selector); err != nil {
		return nil, nil, src, fmt.Errorf("spectrum %q: %w", selector, err)
	}
	src.ScanID, _ = f.ScanID(src.Spectrum)
	if src.Profile, err = f.Profile(src.Spectrum); err != nil {
		return nil, nil, src, err
	}
	tr, err := f.ReadTrace(src.Spectrum)
	if errors.Is(err, mzml.ErrNoTimeArray) {
		if mz, mzErr := f.ReadMzArray(src.Spectrum); mzErr == nil && mz != nil {
			return nil, nil, src, fmt.Errorf("%w: %s", ErrCalibrated, src.ScanID)
		}
	}
	if err != nil {
		return nil, nil, src, err
	}
	raw := make([]float64, len(tr.Intens))
	floats.ScaleTo(raw, -1, tr.Intens)
	src.MzML = &f
	return tr.Time, raw, src, nil
}

// Source describes where a waveform was read from
type Source struct {
	Filename string
	Format   string     // csv, npy or mzml
	MzML     *mzml.MzML // Parsed document, only for mzML input
	Spectrum int        // index of the analyzed mzML spectrum
	ScanID   string
	Profile  bool // mzML spectrum is flagged as profile data
}

// LoadFile reads a waveform file, selecting the reader on the extension.
// spectrum selects the spectrum of mzML input and is ignored otherwise.
func LoadFile(filename string, cols Columns, spectrum string) (*Waveform, Source, error) {
	src := Source{Filename: filename}
	f, err := os.Open(filename)
	if err != nil {
		return nil, src, err
	}
	defer f.Close()

	var time, raw []float64
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".npy":
		src.Format = "npy"
		time, raw, err = ReadNPY(f)
	case ".mzml":
		var ms Source
		time, raw, ms, err = ReadMzML(f, spectrum)
		ms.Filename = filename
		src = ms
		src.Format = "mzml"
	default:
		src.Format = "csv"
		time, raw, err = ReadCSV(f, cols)
	}
	if err != nil {
		return nil, src, fmt.Errorf("%s: %w", filename, err)
	}
	w, err := Load(time, raw)
	if err != nil {
		return nil, src, fmt.Errorf("%s: %w", filename, err)
	}
	return w, src, nil
}
