package importer

import (
	"fmt"
	"strings"
)

// HeaderError is the structural failure: no cell of the header row matched
// any recognized column. Nothing is parsed when it occurs.
type HeaderError struct {
	Seen []string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("no recognized columns among [%s]; supported columns: %s",
		strings.Join(e.Seen, ", "), strings.Join(SupportedHeaders(), ", "))
}

// Draft is an unvalidated row: the raw cell per recognized column, keyed by
// field. Cells are trimmed but otherwise untouched.
type Draft struct {
	Num    int // 1-based data row number
	Fields map[Field]string
}

// Table is the parse result: which fields the header carried and one draft
// per data line.
type Table struct {
	Columns map[Field]int
	Drafts  []Draft
}

// Has reports whether the header carried a column for f.
func (t *Table) Has(f Field) bool {
	_, ok := t.Columns[f]
	return ok
}

// ParseTable splits raw tab-separated text into drafts.
//
// The first line is the header; each cell is matched case-insensitively
// against the synonym table, first match per field wins, unrecognized cells
// are ignored. One recognized column is enough to proceed; zero is a
// HeaderError. Data rows shorter than the header are padded with empty
// fields, blank lines are skipped.
func ParseTable(raw string) (*Table, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, &HeaderError{}
	}

	header := strings.Split(lines[0], "\t")
	columns := make(map[Field]int)
	seen := make([]string, 0, len(header))
	for i, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		name = strings.TrimPrefix(name, "\uFEFF")
		seen = append(seen, name)
		field, ok := headerSynonyms[name]
		if !ok {
			continue
		}
		if _, dup := columns[field]; !dup {
			columns[field] = i
		}
	}
	if len(columns) == 0 {
		return nil, &HeaderError{Seen: seen}
	}

	t := &Table{Columns: columns}
	num := 0
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		num++
		cells := strings.Split(line, "\t")
		fields := make(map[Field]string, len(columns))
		for field, col := range columns {
			if col < len(cells) {
				fields[field] = strings.TrimSpace(cells[col])
			} else {
				fields[field] = "" // ragged row, padded
			}
		}
		t.Drafts = append(t.Drafts, Draft{Num: num, Fields: fields})
	}
	return t, nil
}
