// Package sde loads the item reference table (type id to display name).
package sde

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrMissingColumn is returned when a tabular source lacks TYPEID or TYPENAME.
var ErrMissingColumn = errors.New("sde: required column missing")

// Table maps type ids to display names. It is read-only after loading.
type Table struct {
	names map[int32]string
}

// NewTable builds a table from an existing map (copied).
func NewTable(names map[int32]string) *Table {
	t := &Table{names: make(map[int32]string, len(names))}
	for id, n := range names {
		t.names[id] = n
	}
	return t
}

// Lookup returns the display name of a type.
func (t *Table) Lookup(typeID int32) (string, bool) {
	if t == nil {
		return "", false
	}
	n, ok := t.names[typeID]
	return n, ok
}

// Len is the number of named types.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}

// LoadFile reads a .xlsx (first sheet) or .csv reference table. Header names are
// trimmed and upper-cased before the TYPEID and TYPENAME columns are located.
func LoadFile(path string) (*Table, error) {
	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSX(path)
	case ".csv":
		rows, err = readCSV(path)
	default:
		return nil, fmt.Errorf("sde: unsupported item table format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("sde: read %s: %w", path, err)
	}
	return fromRows(rows)
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

func readCSV(path string) ([][]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return parseCSV(fh)
}

func parseCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr.ReadAll()
}

// fromRows validates the header once and then converts every data row.
// Rows with an unparsable id or an empty name are skipped.
func fromRows(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty table", ErrMissingColumn)
	}
	idCol, nameCol := -1, -1
	for i, h := range rows[0] {
		switch strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))) {
		case "TYPEID":
			idCol = i
		case "TYPENAME":
			nameCol = i
		}
	}
	if idCol < 0 {
		return nil, fmt.Errorf("%w: TYPEID", ErrMissingColumn)
	}
	if nameCol < 0 {
		return nil, fmt.Errorf("%w: TYPENAME", ErrMissingColumn)
	}

	t := &Table{names: make(map[int32]string, len(rows)-1)}
	for _, row := range rows[1:] {
		if idCol >= len(row) || nameCol >= len(row) {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(row[idCol]), 10, 32)
		if err != nil || id <= 0 {
			continue
		}
		name := strings.TrimSpace(row[nameCol])
		if name == "" {
			continue
		}
		t.names[int32(id)] = name
	}
	return t, nil
}
