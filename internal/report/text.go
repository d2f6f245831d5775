package report

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/524D/tofcal/internal/characterize"
)

// FormatTable renders the table as aligned text lines, with at most
// maxCandidates candidate pairs per row (all when maxCandidates < 0).
// Numeric columns are right aligned.
func FormatTable(t characterize.Table, maxCandidates int) []string {
	n := t.MaxCandidates()
	if maxCandidates >= 0 && maxCandidates < n {
		n = maxCandidates
	}
	headers := append([]string{"Peak"}, Header(t.Element, n)...)
	right := map[int]bool{0: true, 1: true, 2: true, 3: true}
	for j := 0; j < n; j++ {
		right[5+2*j] = true
	}
	rows := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		row := []string{
			strconv.Itoa(r.Peak),
			strconv.FormatFloat(r.Mass, 'f', 3, 64),
			strconv.FormatFloat(r.MassUnits, 'f', 3, 64),
			strconv.FormatFloat(r.Time, 'f', 4, 64),
		}
		for j, c := range r.Candidates {
			if j >= n {
				break
			}
			row = append(row, c.Name, strconv.FormatFloat(c.Similarity, 'f', 5, 64))
		}
		rows = append(rows, row)
	}
	return formatTable(headers, rows, right)
}

func formatTable(headers []string, rows [][]string, rightAlignCols map[int]bool) []string {
	colCount := len(headers)
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}
	if colCount == 0 {
		return nil
	}

	widths := make([]int, colCount)
	for i, header := range headers {
		widths[i] = runewidth.StringWidth(header)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, formatRow(headers, widths, rightAlignCols))
	for _, row := range rows {
		lines = append(lines, formatRow(row, widths, rightAlignCols))
	}
	return lines
}

func formatRow(row []string, widths []int, rightAlignCols map[int]bool) string {
	var b strings.Builder
	for i := range widths {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(padCell(cell, widths[i], rightAlignCols[i]))
	}
	return strings.TrimRight(b.String(), " ")
}

func padCell(value string, width int, rightAlign bool) string {
	pad := width - runewidth.StringWidth(value)
	if pad <= 0 {
		return value
	}
	if rightAlign {
		return strings.Repeat(" ", pad) + value
	}
	return value + strings.Repeat(" ", pad)
}
