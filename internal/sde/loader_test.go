package sde

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestFromRows_NormalizesHeader(t *testing.T) {
	rows, err := parseCSV(strings.NewReader(" typeid ,groupID, TypeName \n34,18,Tritanium\n35,18,Pyerite\nbad,1,Broken\n36,18,\n"))
	require.NoError(t, err)

	tbl, err := fromRows(rows)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())

	name, ok := tbl.Lookup(34)
	assert.True(t, ok)
	assert.Equal(t, "Tritanium", name)

	_, ok = tbl.Lookup(36)
	assert.False(t, ok, "empty names are not stored")
}

func TestFromRows_MissingColumns(t *testing.T) {
	for _, header := range []string{"TYPEID,NAME", "ID,TYPENAME"} {
		rows, err := parseCSV(strings.NewReader(header + "\n1,x\n"))
		require.NoError(t, err)
		_, err = fromRows(rows)
		assert.True(t, errors.Is(err, ErrMissingColumn), "header %q: %v", header, err)
	}
	_, err := fromRows(nil)
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestLoadFile_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invTypes.csv")
	require.NoError(t, os.WriteFile(path, []byte("\uFEFFTYPEID,TYPENAME\n587,Rifter\n"), 0o644))

	tbl, err := LoadFile(path)
	require.NoError(t, err)
	name, ok := tbl.Lookup(587)
	assert.True(t, ok)
	assert.Equal(t, "Rifter", name)
}

func TestLoadFile_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invTypes.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "A1", "typeID"))
	require.NoError(t, f.SetCellValue(sheet, "B1", "typeName"))
	require.NoError(t, f.SetCellValue(sheet, "A2", 44992))
	require.NoError(t, f.SetCellValue(sheet, "B2", "PLEX"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	tbl, err := LoadFile(path)
	require.NoError(t, err)
	name, ok := tbl.Lookup(44992)
	assert.True(t, ok)
	assert.Equal(t, "PLEX", name)
}

func TestLoadFile_UnsupportedExtension(t *testing.T) {
	_, err := LoadFile("types.parquet")
	assert.Error(t, err)
}

func TestLoadSDE_FromExtractedTypes(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sde", "fsd")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	lines := `{"_key":34,"name":{"en":"Tritanium","de":"Tritanium"}}
not json
{"_key":35,"name":{"de":"Pyerit"}}
{"_key":587,"name":{"en":"Rifter"}}
`
	require.NoError(t, os.WriteFile(filepath.Join(sub, "types.jsonl"), []byte(lines), 0o644))

	tbl, err := LoadSDE(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
	_, ok := tbl.Lookup(35)
	assert.False(t, ok)
}

func TestLoadSDE_MissingTypesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sde"), 0o755))
	_, err := LoadSDE(context.Background(), dir)
	assert.Error(t, err)
}

func TestExtractZip_RejectsSlip(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "evil.zip")
	fh, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(fh)
	w, err := zw.Create("../escape.txt")
	require.NoError(t, err)
	w.Write([]byte("x"))
	require.NoError(t, zw.Close())
	require.NoError(t, fh.Close())

	assert.Error(t, extractZip(zipPath, filepath.Join(dir, "out")))
}

func TestNilTable(t *testing.T) {
	var tbl *Table
	_, ok := tbl.Lookup(1)
	assert.False(t, ok)
	assert.Equal(t, 0, tbl.Len())
}
