package sheets

import (
	"fmt"
	"strconv"
	"strings"
)

// a1Range is a parsed A1 range on the first sheet. Indexes are 0-based and
// inclusive; endRow is -1 for an open-ended range such as "A2:E".
type a1Range struct {
	startCol, endCol int
	startRow, endRow int
}

func parseA1(s string) (a1Range, error) {
	if i := strings.LastIndex(s, "!"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return a1Range{}, fmt.Errorf("empty range")
	}
	from, to, found := strings.Cut(s, ":")
	if !found {
		to = from
	}
	sc, sr, err := parseCell(from)
	if err != nil {
		return a1Range{}, err
	}
	ec, er, err := parseCell(to)
	if err != nil {
		return a1Range{}, err
	}
	if sr < 0 {
		sr = 0
	}
	if ec < sc || (er >= 0 && er < sr) {
		return a1Range{}, fmt.Errorf("range %q is inverted", s)
	}
	return a1Range{startCol: sc, endCol: ec, startRow: sr, endRow: er}, nil
}

// parseCell returns the 0-based column and row of a reference like "E12".
// row is -1 when the reference has no row part.
func parseCell(ref string) (col, row int, err error) {
	i := 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		col = col*26 + int(ref[i]-'A'+1)
		i++
	}
	if i == 0 {
		return 0, 0, fmt.Errorf("bad cell reference %q", ref)
	}
	col--
	if i == len(ref) {
		return col, -1, nil
	}
	n, err := strconv.Atoi(ref[i:])
	if err != nil || n < 1 {
		return 0, 0, fmt.Errorf("bad cell reference %q", ref)
	}
	return col, n - 1, nil
}
