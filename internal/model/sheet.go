package model

// Row is one data row of a table snapshot.
type Row struct {
	Cells []string
	Index int // 1-based sheet row number
}

// Cell returns the cell at the 0-based column index, or "" when the row is short.
func (r Row) Cell(col int) string {
	if col < 0 || col >= len(r.Cells) {
		return ""
	}
	return r.Cells[col]
}

// TableSnapshot is the full read of one named table at the start of a run.
type TableSnapshot struct {
	Name   string
	Header []string
	Rows   []Row
}

// HeaderIndex returns the 0-based index of the named header, or -1.
func (t TableSnapshot) HeaderIndex(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// CellWrite is one addressed cell mutation, e.g. {"D7", "24/08/25"}.
type CellWrite struct {
	Value any
	Range string
}

// TableWrites is the batch of writes computed for one table.
type TableWrites struct {
	Table  string
	Writes []CellWrite
}
