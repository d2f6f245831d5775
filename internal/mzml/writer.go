package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
	"math"
)

func (f *MzML) Write(writer io.Writer) error {
	if _, err := io.WriteString(writer, `<?xml version="1.0" encoding="utf-8"?>
`); err != nil {
		return err
	}
	enc := xml.NewEncoder(writer)
	enc.Indent(` `, `  `)
	var content mzMLContentWrite

	content.XMLName = f.content.XMLName
	content.Sl1 = "http://psi.hupo.org/ms/mzml http://psidev.info/files/ms/mzML/xsd/mzML1.1.0.xsd"
	content.Version = "1.1.0"
	content.Sl2 = "http://www.w3.org/2001/XMLSchema-instance"
	content.CvList = f.content.CvList
	content.FileDescription = f.content.FileDescription
	content.ReferenceableParamGroupList = f.content.ReferenceableParamGroupList
	content.SoftwareList = f.content.SoftwareList
	content.InstrumentConfigurationList = f.content.InstrumentConfigurationList
	content.DataProcessingList = f.content.DataProcessingList
	content.Run = f.content.Run

	return enc.Encode(&content)
}

// AppendSoftwareInfo adds info to the SoftwareList tag of the mzML file
func (f *MzML) AppendSoftwareInfo(id string, version string) {
	if f.content.SoftwareList == nil {
		f.content.SoftwareList = &softwareList{}
	}
	f.content.SoftwareList.Count++
	f.content.SoftwareList.Software = append(f.content.SoftwareList.Software,
		software{ID: id, Version: version})
}

// AppendDataProcessing adds info to the DataProcessing tag of the mzML file
func (f *MzML) AppendDataProcessing(proc DataProcessing) {
	if f.content.DataProcessingList == nil {
		f.content.DataProcessingList = &dataProcessingList{}
	}
	f.content.DataProcessingList.Count++
	f.content.DataProcessingList.DataProcessing = append(f.content.DataProcessingList.DataProcessing, proc)
}

// UpdateCalibrated replaces the time array of a spectrum by calibrated m/z
// values and the intensity array by intens. The encoding (compression and
// precision) of the original arrays is retained.
func (f *MzML) UpdateCalibrated(scanIndex int, mz []float64, intens []float64) error {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return ErrInvalidScanIndex
	}
	if len(mz) != len(intens) {
		return fmt.Errorf("MzML: %d m/z values for %d intensities", len(mz), len(intens))
	}
	spec := &f.content.Run.SpectrumList.Spectrum[scanIndex]
	found := 0
	for i := range spec.BinaryDataArrayList.BinaryDataArray {
		b := &spec.BinaryDataArrayList.BinaryDataArray[i]
		zlibCompression, bits64, kind, _, err := binaryDataPars(b)
		if err != nil {
			return err
		}
		var v []float64
		switch kind {
		case arrayTime:
			v = mz
			for k, cvParam := range b.CvPar {
				if cvParam.Accession == cvTimeArray {
					b.CvPar[k] = CVParam{
						Accession:     cvMzArray,
						Name:          `m/z array`,
						UnitCvRef:     `MS`,
						UnitAccession: cvUnitMzValue,
						UnitName:      `m/z`,
					}
				}
			}
		case arrayIntens:
			v = intens
		default:
			continue
		}
		b64, err := encodeBinary(v, zlibCompression, bits64)
		if err != nil {
			return err
		}
		b.Binary = b64
		b.ArrayLength = len(v)
		b.EncodedLength = len(b64)
		found++
	}
	if found < 2 {
		return ErrNoTimeArray
	}
	spec.DefaultArrayLength = int64(len(mz))
	return nil
}

func encodeBinary(v []float64, zlibCompression bool, bits64 bool) (string, error) {
	var raw []byte
	if bits64 {
		raw = make([]byte, len(v)*8)
		for i, x := range v {
			binary.LittleEndian.PutUint64(raw[8*i:], math.Float64bits(x))
		}
	} else {
		raw = make([]byte, len(v)*4)
		for i, x := range v {
			binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(float32(x)))
		}
	}
	if zlibCompression {
		var b bytes.Buffer
		z := zlib.NewWriter(&b)
		if _, err := z.Write(raw); err != nil {
			return "", err
		}
		// zlib writer must explicitly be closed here, otherwise the result is invalid
		if err := z.Close(); err != nil {
			return "", err
		}
		raw = b.Bytes()
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
