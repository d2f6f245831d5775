// Package report writes characterization tables as CSV, Parquet or
// aligned text.
package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/524D/tofcal/internal/characterize"
)

// Header returns the wide table header. Candidate columns come in
// (Element j, Similarity j) pairs, n pairs in total.
func Header(element string, n int) []string {
	h := []string{"Mass (amu)", "Mass (" + element + ")", "Time (us)"}
	for j := 0; j < n; j++ {
		idx := strconv.Itoa(j)
		h = append(h, "Element "+idx, "Similarity "+idx)
	}
	return h
}

// Records converts the table to string rows in wide layout. Rows with
// fewer candidates than the widest row end early.
func Records(t characterize.Table) [][]string {
	rows := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		rec := []string{formatFloat(r.Mass), formatFloat(r.MassUnits), formatFloat(r.Time)}
		for _, c := range r.Candidates {
			rec = append(rec, c.Name, formatFloat(c.Similarity))
		}
		rows = append(rows, rec)
	}
	return rows
}

// WriteCSV writes the wide table. Missing candidate cells are empty.
func WriteCSV(w io.Writer, t characterize.Table) error {
	n := t.MaxCandidates()
	header := Header(t.Element, n)
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, rec := range Records(t) {
		for len(rec) < len(header) {
			rec = append(rec, "")
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
