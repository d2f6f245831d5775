package waveform

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

func TestReadCSV(t *testing.T) {
	in := "# scope export\nTime,Ch1\n0,-0.5\n1e-6, -1.5\n2e-6,0.25\n"
	time, raw, err := ReadCSV(strings.NewReader(in), DefaultColumns)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if diff := cmp.Diff([]float64{0, 1e-6, 2e-6}, time); diff != "" {
		t.Errorf("time mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{-0.5, -1.5, 0.25}, raw); diff != "" {
		t.Errorf("voltage mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSVColumns(t *testing.T) {
	in := "idx,v,t\n0,1,0\n1,2,1e-6\n"
	time, raw, err := ReadCSV(strings.NewReader(in), Columns{Time: 2, Voltage: 1})
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if diff := cmp.Diff([]float64{0, 1e-6}, time); diff != "" {
		t.Errorf("time mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{1, 2}, raw); diff != "" {
		t.Errorf("voltage mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSVNarrowHeader(t *testing.T) {
	in := "time\n0,-1\n1e-6,-2\n"
	time, raw, err := ReadCSV(strings.NewReader(in), DefaultColumns)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if diff := cmp.Diff([]float64{0, 1e-6}, time); diff != "" {
		t.Errorf("time mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{-1, -2}, raw); diff != "" {
		t.Errorf("voltage mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSVErrors(t *testing.T) {
	for _, in := range []string{"0\n1\n", "0,1\nx,y\n", "0,1\n2\n", ""} {
		if _, _, err := ReadCSV(strings.NewReader(in), DefaultColumns); !errors.Is(err, ErrFormat) {
			t.Errorf("ReadCSV(%q): error %v, should be ErrFormat", in, err)
		}
	}
}

func TestReadNPY(t *testing.T) {
	m := mat.NewDense(3, 2, []float64{0, -1, 1e-6, -2, 2e-6, -3})
	var buf bytes.Buffer
	if err := npyio.Write(&buf, m); err != nil {
		t.Fatalf("npyio.Write: %v", err)
	}
	time, raw, err := ReadNPY(&buf)
	if err != nil {
		t.Fatalf("ReadNPY: %v", err)
	}
	if diff := cmp.Diff([]float64{0, 1e-6, 2e-6}, time); diff != "" {
		t.Errorf("time mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{-1, -2, -3}, raw); diff != "" {
		t.Errorf("voltage mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "trace.csv")
	if err := os.WriteFile(fn, []byte("t,v\n-1e-6,3\n0,-1\n1e-6,-3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	w, src, err := LoadFile(fn, DefaultColumns, "")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if src.Format != "csv" || src.MzML != nil {
		t.Errorf("source %+v, should be csv", src)
	}
	if diff := cmp.Diff([]float64{1, 3}, w.Voltage); diff != "" {
		t.Errorf("voltage mismatch (-want +got):\n%s", diff)
	}

	if _, _, err := LoadFile(filepath.Join(dir, "missing.csv"), DefaultColumns, ""); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadFile(missing): error %v, should be ErrNotExist", err)
	}
}

func encode64(v []float64) string {
	b := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(x))
	}
	return base64.StdEncoding.EncodeToString(b)
}

// mzMLDoc returns a single spectrum document. axis is the accession of the
// first array, MS:1000595 for a time array or MS:1000514 for m/z.
func mzMLDoc(axis string, profile bool, x, intens []float64) string {
	mode := `<cvParam cvRef="MS" accession="MS:1000127" name="centroid spectrum"/>`
	if profile {
		mode = `<cvParam cvRef="MS" accession="MS:1000128" name="profile spectrum"/>`
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<mzML xmlns="http://psi.hupo.org/ms/mzml" version="1.1.0">
 <run id="r1">
  <spectrumList count="1">
   <spectrum index="0" id="scan=7" defaultArrayLength="%d">
    %s
    <binaryDataArrayList count="2">
     <binaryDataArray>
      <cvParam cvRef="MS" accession="MS:1000523" name="64-bit float"/>
      <cvParam cvRef="MS" accession="%s" name="axis"/>
      <binary>%s</binary>
     </binaryDataArray>
     <binaryDataArray>
      <cvParam cvRef="MS" accession="MS:1000523" name="64-bit float"/>
      <cvParam cvRef="MS" accession="MS:1000515" name="intensity array"/>
      <binary>%s</binary>
     </binaryDataArray>
    </binaryDataArrayList>
   </spectrum>
  </spectrumList>
 </run>
</mzML>
`, len(x), mode, axis, encode64(x), encode64(intens))
}

func TestReadMzML(t *testing.T) {
	doc := mzMLDoc("MS:1000595", true, []float64{0, 1e-6, 2e-6}, []float64{0.5, 2, 0.25})
	time, raw, src, err := ReadMzML(strings.NewReader(doc), "scan=7")
	if err != nil {
		t.Fatalf("ReadMzML: %v", err)
	}
	if diff := cmp.Diff([]float64{0, 1e-6, 2e-6}, time); diff != "" {
		t.Errorf("time mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{-0.5, -2, -0.25}, raw); diff != "" {
		t.Errorf("voltage mismatch (-want +got):\n%s", diff)
	}
	if src.Spectrum != 0 || src.ScanID != "scan=7" || !src.Profile || src.MzML == nil {
		t.Errorf("source %+v, should be profile spectrum 0 scan=7", src)
	}

	_, _, src, err = ReadMzML(strings.NewReader(mzMLDoc("MS:1000595", false, []float64{0}, []float64{1})), "")
	if err != nil || src.Profile {
		t.Errorf("ReadMzML(centroid): profile %v, error %v", src.Profile, err)
	}
	if _, _, _, err = ReadMzML(strings.NewReader(doc), "scan=8"); err == nil {
		t.Errorf("ReadMzML: unknown scan id accepted")
	}
}

func TestReadMzMLCalibrated(t *testing.T) {
	doc := mzMLDoc("MS:1000514", true, []float64{10, 20}, []float64{1, 2})
	if _, _, _, err := ReadMzML(strings.NewReader(doc), ""); !errors.Is(err, ErrCalibrated) {
		t.Errorf("ReadMzML: error %v, should be ErrCalibrated", err)
	}
}
