package reconcile

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnLetters converts a 0-based column index to A1 letters:
// 0 -> "A", 25 -> "Z", 26 -> "AA", 701 -> "ZZ", 702 -> "AAA".
func ColumnLetters(index int) string {
	if index < 0 {
		return ""
	}

	var buf [8]byte
	i := len(buf)
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		i--
		buf[i] = byte('A' + (n-1)%26)
	}
	return string(buf[i:])
}

// ColumnIndex converts A1 letters back to a 0-based column index.
func ColumnIndex(letters string) (int, error) {
	letters = strings.ToUpper(strings.TrimSpace(letters))
	if letters == "" {
		return 0, fmt.Errorf("empty column letters")
	}

	n := 0
	for _, r := range letters {
		if r < 'A' || r > 'Z' {
			return 0, fmt.Errorf("invalid column letters %q", letters)
		}
		n = n*26 + int(r-'A'+1)
	}
	return n - 1, nil
}

// CellRange returns the A1 address of a 0-based column and 1-based row.
func CellRange(col, row int) string {
	return ColumnLetters(col) + strconv.Itoa(row)
}
