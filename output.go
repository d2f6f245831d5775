// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/524D/tofcal/internal/calib"
	"github.com/524D/tofcal/internal/characterize"
	"github.com/524D/tofcal/internal/mzml"
	"github.com/524D/tofcal/internal/peaks"
	"github.com/524D/tofcal/internal/report"
	"github.com/524D/tofcal/internal/waveform"
)

// Format of output, if it ever changes we should still be able to parse
// output from old versions
const outputFormatVersion = "1.0"

// calibrationRecord is the JSON calibration file
type calibrationRecord struct {
	// Version of the record layout, used when loading records written by
	// other versions of the software
	TofcalVersion string
	ProgVersion   string
	Source        string `json:",omitempty"`
	Element       string
	ElementMass   float64
	Prior         calib.Params
	Seed          calib.Params
	Params        calib.Params
	Anchors       calib.Anchors
	Calibrants    []calib.Calibrant
	Refinement    *calib.Refinement `json:",omitempty"`
	Resolution    *peaks.Resolving  `json:",omitempty"`
	Warnings      []string          `json:",omitempty"`
}

var tofcalProcessing = mzml.DataProcessing{
	ID: progName,
	ProcessingMeth: []mzml.ProcessingMethod{
		{
			Count:       0,
			SoftwareRef: progName,
			CvPar: []mzml.CVParam{
				{
					Accession: `MS:1001485`,
					Name:      `m/z calibration`,
				},
			},
		},
	},
}

func newCalibrationRecord(res Result, source, element string, elementMass float64, prior calib.Params) calibrationRecord {
	rec := calibrationRecord{
		TofcalVersion: outputFormatVersion,
		ProgVersion:   progVersion,
		Source:        source,
		Element:       element,
		ElementMass:   elementMass,
		Prior:         prior,
		Seed:          res.Seed,
		Params:        res.Params,
		Anchors:       res.Anchors,
		Calibrants:    res.Calibrants,
		Refinement:    res.Refinement,
	}
	for _, w := range res.Warnings {
		rec.Warnings = append(rec.Warnings, w.Error())
	}
	return rec
}

func writeCalibration(filename string, rec calibrationRecord) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	e := json.NewEncoder(f)
	e.SetIndent(``, `  `) // Make output easier to read for humans
	return e.Encode(rec)
}

func readCalibration(filename string) (calibrationRecord, error) {
	var rec calibrationRecord
	f, err := os.Open(filename)
	if err != nil {
		return rec, err
	}
	defer f.Close()

	d := json.NewDecoder(f)
	if err = d.Decode(&rec); err != nil {
		return rec, fmt.Errorf("%s: %w", filename, err)
	}
	if rec.TofcalVersion != outputFormatVersion {
		return rec, fmt.Errorf("%s: unsupported calibration format %q", filename, rec.TofcalVersion)
	}
	return rec, nil
}

func writeTableCSV(filename string, t characterize.Table) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := report.WriteCSV(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeTableParquet(filename string, t characterize.Table, compression string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := report.WriteParquet(f, t, compression); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeCalibratedMzML replaces the time axis of the analyzed spectrum by
// the calibrated mass axis and writes the document
func writeCalibratedMzML(filename string, src waveform.Source, res Result) error {
	if src.MzML == nil {
		return fmt.Errorf("%s: calibrated mzML output needs mzML input", src.Filename)
	}
	w := res.Waveform
	if err := src.MzML.UpdateCalibrated(src.Spectrum, res.Params.Masses(w.Time), w.Voltage); err != nil {
		return err
	}
	src.MzML.AppendSoftwareInfo(progName, progVersion)
	src.MzML.AppendDataProcessing(tofcalProcessing)

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	return src.MzML.Write(f)
}

func printTable(w io.Writer, t characterize.Table, maxCandidates int) {
	for _, line := range report.FormatTable(t, maxCandidates) {
		fmt.Fprintln(w, line)
	}
}
