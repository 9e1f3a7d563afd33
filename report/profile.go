// Package report produces the profiling and lab-range reports of the
// pipeline: per-column profiles of the master table and low/normal/high
// classification of laboratory values against geriatric reference
// intervals.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/bioERGOtech/VERO-Code-Salerno/dframe"
)

// ColumnProfile summarizes one column of the master table.
type ColumnProfile struct {
	Name       string
	Type       dframe.ColType
	N          int
	Missing    int
	MissingPct float64

	// Numeric and date columns only
	Stats dframe.Summary

	// Categorical and text columns only: "level:count" pairs in
	// decreasing frequency order.
	Levels []string
}

// Profile computes a profile for every column of the frame, in column
// order.
func Profile(f *dframe.Frame) []ColumnProfile {

	var profs []ColumnProfile

	for _, name := range f.Names() {

		c, err := f.Col(name)
		if err != nil {
			panic(err)
		}

		p := ColumnProfile{
			Name:    name,
			Type:    c.Type,
			N:       c.Len() - c.NumMissing(),
			Missing: c.NumMissing(),
		}
		if c.Len() > 0 {
			p.MissingPct = 100 * float64(c.NumMissing()) / float64(c.Len())
		}

		switch c.Type {
		case dframe.Numeric, dframe.Date:
			p.Stats = c.Describe()
		default:
			cnt := c.LevelCounts()
			for _, lv := range c.Levels() {
				p.Levels = append(p.Levels, fmt.Sprintf("%s:%d", lv, cnt[lv]))
			}
		}

		profs = append(profs, p)
	}

	return profs
}

var profileHeader = []string{
	"column", "type", "n", "missing", "missing_pct",
	"mean", "sd", "min", "median", "max", "levels",
}

func (p *ColumnProfile) record() []string {

	rec := []string{
		p.Name,
		p.Type.String(),
		strconv.Itoa(p.N),
		strconv.Itoa(p.Missing),
		strconv.FormatFloat(p.MissingPct, 'f', 1, 64),
	}

	if p.Type == dframe.Numeric || p.Type == dframe.Date {
		for _, v := range []float64{p.Stats.Mean, p.Stats.SD, p.Stats.Min, p.Stats.Median, p.Stats.Max} {
			rec = append(rec, strconv.FormatFloat(v, 'g', 6, 64))
		}
		rec = append(rec, "")
	} else {
		rec = append(rec, "", "", "", "", "", strings.Join(p.Levels, "; "))
	}

	return rec
}

// WriteProfileCSV writes the profiles as CSV with a header row.
func WriteProfileCSV(w io.Writer, profs []ColumnProfile) error {

	cw := csv.NewWriter(w)
	if err := cw.Write(profileHeader); err != nil {
		return err
	}
	for i := range profs {
		if err := cw.Write(profs[i].record()); err != nil {
			return err
		}
	}
	cw.Flush()

	return cw.Error()
}

// WriteProfileCSVFile writes the profiles as a CSV file.
func WriteProfileCSVFile(path string, profs []ColumnProfile) error {

	fid, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fid.Close()

	return WriteProfileCSV(fid, profs)
}

// WriteProfileXLSX writes the profiles as a single-sheet XLSX
// workbook.
func WriteProfileXLSX(path string, profs []ColumnProfile) error {

	wb := excelize.NewFile()
	defer wb.Close()

	const sheet = "Sheet1"

	set := func(row int, rec []string) error {
		for j, s := range rec {
			cell, err := excelize.CoordinatesToCellName(j+1, row)
			if err != nil {
				return err
			}
			if err := wb.SetCellValue(sheet, cell, s); err != nil {
				return err
			}
		}
		return nil
	}

	if err := set(1, profileHeader); err != nil {
		return err
	}
	for i := range profs {
		if err := set(i+2, profs[i].record()); err != nil {
			return err
		}
	}

	return wb.SaveAs(path)
}

// HighMissing returns the names of columns whose missing fraction
// exceeds the threshold, sorted.
func HighMissing(profs []ColumnProfile, threshold float64) []string {

	var cols []string
	for i := range profs {
		if profs[i].MissingPct > 100*threshold {
			cols = append(cols, profs[i].Name)
		}
	}
	sort.Strings(cols)

	return cols
}
