package report

import (
	"io"
	"strings"

	parquet "github.com/parquet-go/parquet-go"

	"github.com/524D/tofcal/internal/characterize"
)

// Candidate is one (peak, candidate species) pair of the long layout.
// Peaks without candidates are kept with Rank -1 and an empty Name.
type Candidate struct {
	Peak       int64   `parquet:"peak"`
	Time       float64 `parquet:"time_us"`
	Mass       float64 `parquet:"mass_amu"`
	MassUnits  float64 `parquet:"mass_units"`
	Best       string  `parquet:"best"`
	Rank       int32   `parquet:"rank"`
	Name       string  `parquet:"name"`
	Similarity float64 `parquet:"similarity"`
}

// Long flattens the table, one record per candidate
func Long(t characterize.Table) []Candidate {
	var out []Candidate
	for _, r := range t.Rows {
		base := Candidate{
			Peak:      int64(r.Peak),
			Time:      r.Time,
			Mass:      r.Mass,
			MassUnits: r.MassUnits,
			Best:      r.Best.Name,
			Rank:      -1,
		}
		if len(r.Candidates) == 0 {
			out = append(out, base)
			continue
		}
		for j, c := range r.Candidates {
			rec := base
			rec.Rank = int32(j)
			rec.Name = c.Name
			rec.Similarity = c.Similarity
			out = append(out, rec)
		}
	}
	return out
}

// Compression maps a codec name to a writer option; unknown names give Snappy
func Compression(name string) parquet.WriterOption {
	switch strings.ToLower(name) {
	case "zstd":
		return parquet.Compression(&parquet.Zstd)
	case "gzip", "gz":
		return parquet.Compression(&parquet.Gzip)
	case "none", "uncompressed":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Snappy)
	}
}

// WriteParquet writes the long layout
func WriteParquet(w io.Writer, t characterize.Table, compression string) error {
	pw := parquet.NewGenericWriter[Candidate](w, Compression(compression))
	if recs := Long(t); len(recs) > 0 {
		if _, err := pw.Write(recs); err != nil {
			return err
		}
	}
	return pw.Close()
}
