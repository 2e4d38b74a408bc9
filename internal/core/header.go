package core

import "strings"

// headerMultiCellBonus is added to rows with at least two non-empty cells.
const headerMultiCellBonus = 5

// Detection is the result of header detection.
type Detection struct {
	HeaderIndex int       // 0-based index of the header row in the RawTable
	Headers     []string  // Cleaned, non-empty header cells in order; duplicates allowed
	Columns     []int     // Source column of each header
	Scores      []int     // Score of every scanned row
	Rows        []DataRow // Non-blank rows after the header, capped at RowCap
	BlankRows   int       // Blank rows dropped within the cap
	Truncated   bool      // Rows beyond the cap were ignored
}

// ScoreRow scores a candidate header row:
//
//	2 * non-numeric cells + distinct cells + 5 if at least two cells
//
// counting only cells that are non-empty after cleanup. A row with no such
// cell scores 0.
func ScoreRow(row []string) int {
	nonNumeric := 0
	distinct := make(map[string]struct{}, len(row))
	cells := 0

	for _, raw := range row {
		c := CleanCell(raw)
		if c == "" {
			continue
		}
		cells++
		distinct[c] = struct{}{}
		if !IsNumericCell(c) {
			nonNumeric++
		}
	}

	if cells == 0 {
		return 0
	}
	score := 2*nonNumeric + len(distinct)
	if cells >= 2 {
		score += headerMultiCellBonus
	}
	return score
}

// DetectHeader picks the highest-scoring row among the first
// opts.HeaderScanRows rows. Ties go to the earliest row. It fails with
// HeaderNotFoundError when every scanned row scores 0.
func DetectHeader(t *RawTable, opts Options) (*Detection, error) {
	opts = opts.withDefaults()

	scan := min(opts.HeaderScanRows, len(t.Rows))
	d := &Detection{HeaderIndex: -1, Scores: make([]int, scan)}

	best := 0
	for i := 0; i < scan; i++ {
		score := ScoreRow(t.Rows[i])
		d.Scores[i] = score
		if score > best {
			best = score
			d.HeaderIndex = i
		}
	}
	if d.HeaderIndex < 0 {
		return nil, &HeaderNotFoundError{Scanned: scan}
	}

	for col, raw := range t.Rows[d.HeaderIndex] {
		if h := CleanCell(raw); h != "" {
			d.Headers = append(d.Headers, h)
			d.Columns = append(d.Columns, col)
		}
	}

	after := t.Rows[d.HeaderIndex+1:]
	if len(after) > opts.RowCap {
		after = after[:opts.RowCap]
		d.Truncated = true
	}
	d.Truncated = d.Truncated || t.Truncated

	for i, raw := range after {
		row, ok := d.buildRow(d.HeaderIndex+1+i, raw)
		if !ok {
			d.BlankRows++
			continue
		}
		d.Rows = append(d.Rows, row)
	}

	return d, nil
}

// buildRow keys a raw row by header position. ok is false for blank rows.
func (d *Detection) buildRow(index int, raw []string) (DataRow, bool) {
	row := DataRow{
		Index:  index,
		Values: make(map[string]string, len(d.Headers)),
		Cells:  make([]string, len(d.Headers)),
	}

	blank := true
	for i, h := range d.Headers {
		var v string
		if col := d.Columns[i]; col < len(raw) {
			v = raw[col]
		}
		if strings.TrimSpace(v) != "" {
			blank = false
		}
		row.Cells[i] = v
		row.Values[h] = v
	}
	return row, !blank
}
