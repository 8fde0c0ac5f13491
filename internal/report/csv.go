// Package report renders the region price-delta report.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"eve-warehouse/internal/engine"
)

// Header is the column order of the delta report.
var Header = []string{
	"typeid", "typename", "max_price", "min_price", "delta", "delta_percentage",
	"max_tradehub", "min_tradehub", "max_vol_yesterday", "min_vol_yesterday",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteDeltas writes one header row and one row per delta.
func WriteDeltas(w io.Writer, deltas []engine.PriceDelta) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, d := range deltas {
		row := []string{
			strconv.Itoa(int(d.TypeID)),
			d.TypeName,
			formatFloat(d.MaxPrice),
			formatFloat(d.MinPrice),
			formatFloat(d.Delta),
			formatFloat(d.DeltaPercentage),
			d.MaxTradeHub,
			d.MinTradeHub,
			strconv.FormatInt(d.MaxVolYesterday, 10),
			strconv.FormatInt(d.MinVolYesterday, 10),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the report to path through a temp file in the same directory,
// so a reader never sees a half-written report.
func WriteFile(path string, deltas []engine.PriceDelta) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".report-*.csv")
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteDeltas(tmp, deltas); err != nil {
		tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
