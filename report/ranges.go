package report

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/bioERGOtech/VERO-Code-Salerno/dframe"
)

// RefInterval is a laboratory reference interval.  Values below Low
// classify as "low", above High as "high", otherwise "normal".
type RefInterval struct {
	Low  float64
	High float64
	Unit string
}

// GeriatricRefIntervals maps the lab columns of the master table to
// reference intervals appropriate for an elderly cohort.
var GeriatricRefIntervals = map[string]RefInterval{
	"white_blood_cells":   {4.0, 11.0, "10^9/L"},
	"hemoglobin":          {11.5, 16.5, "g/dL"},
	"neutrophils_percent": {40, 75, "%"},
	"lymphocytes_percent": {20, 45, "%"},
	"platelet_count":      {150, 450, "10^9/L"},
	"creatinine":          {0.6, 1.3, "mg/dL"},
	"ast_got":             {10, 40, "U/L"},
	"alt_gpt":             {7, 55, "U/L"},
	"total_bilirubin":     {0.1, 1.2, "mg/dL"},
}

// Classify places a single value in the interval.
func (r RefInterval) Classify(v float64) string {
	switch {
	case v < r.Low:
		return "low"
	case v > r.High:
		return "high"
	}
	return "normal"
}

// RangeSummary counts the classifications of one lab column.
type RangeSummary struct {
	Column  string
	Low     int
	Normal  int
	High    int
	Missing int
}

// AddRangeColumns adds a categorical "<lab>_range" column for every
// lab column of the frame present in the interval map, and returns a
// per-lab count summary sorted by column name.  Missing lab values
// stay missing in the range column.
func AddRangeColumns(f *dframe.Frame, ref map[string]RefInterval) ([]RangeSummary, error) {

	var labs []string
	for name := range ref {
		if f.HasCol(name) {
			labs = append(labs, name)
		}
	}
	sort.Strings(labs)

	var summ []RangeSummary

	for _, name := range labs {

		c, err := f.Col(name)
		if err != nil {
			return nil, err
		}
		if c.Type != dframe.Numeric {
			continue
		}

		n := c.Len()
		str := make([]string, n)
		miss := make([]bool, n)
		rs := RangeSummary{Column: name}

		for i := 0; i < n; i++ {
			if c.Miss[i] {
				miss[i] = true
				rs.Missing++
				continue
			}
			str[i] = ref[name].Classify(c.Num[i])
			switch str[i] {
			case "low":
				rs.Low++
			case "high":
				rs.High++
			default:
				rs.Normal++
			}
		}

		err = f.AddColumn(&dframe.Column{
			Name: name + "_range",
			Type: dframe.Categorical,
			Str:  str,
			Miss: miss,
		})
		if err != nil {
			return nil, err
		}

		summ = append(summ, rs)
	}

	return summ, nil
}

// WriteRangeSummaryCSV writes the out-of-range summary as CSV.
func WriteRangeSummaryCSV(w io.Writer, summ []RangeSummary) error {

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"column", "low", "normal", "high", "missing"}); err != nil {
		return err
	}
	for _, rs := range summ {
		rec := []string{
			rs.Column,
			strconv.Itoa(rs.Low),
			strconv.Itoa(rs.Normal),
			strconv.Itoa(rs.High),
			strconv.Itoa(rs.Missing),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()

	return cw.Error()
}

// WriteRangeSummaryCSVFile writes the out-of-range summary to a file.
func WriteRangeSummaryCSVFile(path string, summ []RangeSummary) error {

	fid, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fid.Close()

	return WriteRangeSummaryCSV(fid, summ)
}
