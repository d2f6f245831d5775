package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"io"
	"math"
	"strconv"

	"golang.org/x/net/html/charset"
)

// CV terms for binary data arrays
const (
	cvZlib          = `MS:1000574`
	cv64Bit         = `MS:1000523`
	cvMzArray       = `MS:1000514`
	cvIntensArray   = `MS:1000515`
	cvTimeArray     = `MS:1000595`
	cvUnitSecond    = `UO:0000010`
	cvUnitMinute    = `UO:0000031`
	cvUnitMilliSec  = `UO:0000028`
	cvUnitMicroSec  = `UO:0000029`
	cvUnitMzValue   = `MS:1000040`
	cvProfileSpec   = `MS:1000128`
	cvNumpressFirst = `MS:1002312`
)

// Read reads mzML file from an io.Reader
func Read(reader io.Reader) (MzML, error) {
	var mzML MzML

	d := xml.NewDecoder(reader)
	d.CharsetReader = charset.NewReaderLabel

	// We are only interested in mzML content, so skip over indexedmzML
	// and everything else
	for {
		t, tokenErr := d.Token()
		if tokenErr != nil {
			if tokenErr == io.EOF {
				break
			}
			return mzML, tokenErr
		}
		switch t := t.(type) {
		case xml.StartElement:
			if t.Name.Local == "mzML" {
				if err := d.DecodeElement(&mzML.content, &t); err != nil {
					return mzML, err
				}
			}
		}
	}

	err := mzML.traverseScan()
	return mzML, err
}

type arrayKind int

const (
	arrayOther arrayKind = iota
	arrayMz
	arrayIntens
	arrayTime
)

// binaryDataPars decodes the CV terms in a mzML binarydata section
//
// MS:1000574 zlib compression, MS:1000576 no compression,
// MS:1002312..MS:1002314, MS:1002746..MS:1002748 MS-Numpress (not supported)
// MS:1000514 m/z array, MS:1000515 intensity array, MS:1000595 time array
// MS:1000521 32-bit float, MS:1000523 64-bit float
//
// The returned scale converts time arrays to seconds.
func binaryDataPars(b *binaryDataArray) (zlibCompression bool, bits64 bool,
	kind arrayKind, scale float64, err error) {
	scale = 1.0
	for _, cvParam := range b.CvPar {
		switch cvParam.Accession {
		case cvZlib:
			zlibCompression = true
		case cvMzArray:
			kind = arrayMz
		case cvIntensArray:
			kind = arrayIntens
		case cvTimeArray:
			kind = arrayTime
			switch cvParam.UnitAccession {
			case ``, cvUnitSecond:
			case cvUnitMinute:
				scale = 60
			case cvUnitMilliSec:
				scale = 1e-3
			case cvUnitMicroSec:
				scale = 1e-6
			default:
				err = ErrUnknownUnit
			}
		case cv64Bit:
			bits64 = true
		case cvNumpressFirst, `MS:1002313`, `MS:1002314`,
			`MS:1002746`, `MS:1002747`, `MS:1002748`:
			err = ErrCompression
		}
	}
	return zlibCompression, bits64, kind, scale, err
}

func decodeBinary(b *binaryDataArray) ([]float64, arrayKind, error) {
	zlibCompression, bits64, kind, scale, err := binaryDataPars(b)
	if err != nil || kind == arrayOther {
		return nil, kind, err
	}
	data, err := base64.StdEncoding.DecodeString(b.Binary)
	if err != nil {
		return nil, kind, err
	}
	if zlibCompression {
		z, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, kind, err
		}
		defer z.Close()
		d, err := io.ReadAll(z)
		if err != nil {
			return nil, kind, err
		}
		data = d
	}
	var v []float64
	if bits64 {
		cnt := len(data) / 8
		v = make([]float64, cnt)
		for i := 0; i < cnt; i++ {
			v[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
	} else {
		cnt := len(data) / 4
		v = make([]float64, cnt)
		for i := 0; i < cnt; i++ {
			v[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
		}
	}
	if scale != 1.0 {
		for i := range v {
			v[i] *= scale
		}
	}
	return v, kind, nil
}

// NumSpecs returns the number of spectra
func (f *MzML) NumSpecs() int {
	return len(f.content.Run.SpectrumList.Spectrum)
}

// ReadTrace reads the time and intensity arrays of a spectrum.
// scanIndex is the sequence number of the spectrum in the file.
func (f *MzML) ReadTrace(scanIndex int) (Trace, error) {
	var tr Trace
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return tr, ErrInvalidScanIndex
	}
	spec := &f.content.Run.SpectrumList.Spectrum[scanIndex]
	for i := range spec.BinaryDataArrayList.BinaryDataArray {
		v, kind, err := decodeBinary(&spec.BinaryDataArrayList.BinaryDataArray[i])
		if err != nil {
			return tr, err
		}
		switch kind {
		case arrayTime:
			tr.Time = v
		case arrayIntens:
			tr.Intens = v
		}
	}
	if tr.Time == nil || tr.Intens == nil || len(tr.Time) != len(tr.Intens) {
		return tr, ErrNoTimeArray
	}
	return tr, nil
}

// Profile returns true if the spectrum is flagged as profile data
func (f *MzML) Profile(scanIndex int) (bool, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return false, ErrInvalidScanIndex
	}
	for _, cvParam := range f.content.Run.SpectrumList.Spectrum[scanIndex].CvPar {
		if cvParam.Accession == cvProfileSpec {
			return true, nil
		}
	}
	return false, nil
}

// traverseScan fills the arrays f.index2id and f.id2Index to make
// scans accessible
func (f *MzML) traverseScan() error {
	f.index2id = make([]string, f.NumSpecs())
	f.id2Index = make(map[string]int, f.NumSpecs())

	for i, spec := range f.content.Run.SpectrumList.Spectrum {
		if i != spec.Index {
			return ErrInvalidScanIndex
		}
		f.index2id[i] = spec.ID
		f.id2Index[spec.ID] = i
	}
	return nil
}

// ScanIndex converts a scan identifier (the string used in the mzML file)
// into an index that is used to access the scans
func (f *MzML) ScanIndex(scanID string) (int, error) {
	if index, ok := f.id2Index[scanID]; ok {
		return index, nil
	}
	return 0, ErrInvalidScanID
}

// ScanID converts a scan index into the scan id used in the mzML file
func (f *MzML) ScanID(scanIndex int) (string, error) {
	if scanIndex >= 0 && scanIndex < f.NumSpecs() {
		return f.index2id[scanIndex], nil
	}
	return "", ErrInvalidScanIndex
}

// SpectrumIndex resolves a spectrum selector: empty selects the first
// spectrum, a number is a scan index and anything else a scan id
func (f *MzML) SpectrumIndex(selector string) (int, error) {
	if selector == "" {
		selector = "0"
	}
	if i, err := strconv.Atoi(selector); err == nil {
		if i < 0 || i >= f.NumSpecs() {
			return 0, ErrInvalidScanIndex
		}
		return i, nil
	}
	return f.ScanIndex(selector)
}

// ReadMzArray returns the m/z array of a spectrum, nil if it has none
func (f *MzML) ReadMzArray(scanIndex int) ([]float64, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return nil, ErrInvalidScanIndex
	}
	spec := &f.content.Run.SpectrumList.Spectrum[scanIndex]
	for i := range spec.BinaryDataArrayList.BinaryDataArray {
		v, kind, err := decodeBinary(&spec.BinaryDataArrayList.BinaryDataArray[i])
		if err != nil {
			return nil, err
		}
		if kind == arrayMz {
			return v, nil
		}
	}
	return nil, nil
}
