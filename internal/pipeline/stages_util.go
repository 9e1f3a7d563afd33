package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/bioERGOtech/VERO-Code-Salerno/dframe"
	"github.com/bioERGOtech/VERO-Code-Salerno/statmodel"
)

// binaryOutcomes are the binary endpoints modeled by the classify
// stage, when present in the analysis table.
var binaryOutcomes = []string{"death_event", "adr_severe", "readmission"}

// outcomeColumns are excluded from the candidate predictor set.
var outcomeColumns = map[string]bool{
	"survival_days":    true,
	"death_event":      true,
	"adr_severe":       true,
	"readmission":      true,
	"adr_n_tot":        true,
	"adr_max_severity": true,
}

// candidatePredictors returns the numeric, non-constant columns of
// the analysis table that can enter the models.
func candidatePredictors(f *dframe.Frame) ([]string, error) {

	var cands []string
	for _, name := range f.Names() {

		if outcomeColumns[name] || strings.HasSuffix(name, "_imputed") {
			continue
		}

		c, err := f.Col(name)
		if err != nil {
			return nil, err
		}
		if c.Type != dframe.Numeric || c.NumMissing() > 0 {
			continue
		}

		con := true
		for i := 1; i < len(c.Num); i++ {
			if c.Num[i] != c.Num[0] {
				con = false
				break
			}
		}
		if !con {
			cands = append(cands, name)
		}
	}

	return cands, nil
}

// completeRows returns the rows where every named column is observed.
func completeRows(f *dframe.Frame, cols []string) ([]int, error) {

	n := f.NumRow()
	ok := make([]bool, n)
	for i := range ok {
		ok[i] = true
	}

	for _, name := range cols {
		c, err := f.Col(name)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			if c.Miss[i] {
				ok[i] = false
			}
		}
	}

	var rows []int
	for i := 0; i < n; i++ {
		if ok[i] {
			rows = append(rows, i)
		}
	}

	return rows, nil
}

// toDataset builds a column-major dataset over the given rows from
// numeric columns, optionally prepending an intercept column.
func toDataset(f *dframe.Frame, rows []int, cols []string, icept bool) (statmodel.Dataset, error) {

	var names []string
	var data [][]float64

	if icept {
		one := make([]float64, len(rows))
		for i := range one {
			one[i] = 1
		}
		names = append(names, "icept")
		data = append(data, one)
	}

	for _, name := range cols {
		c, err := f.Col(name)
		if err != nil {
			return statmodel.Dataset{}, err
		}
		if c.Type != dframe.Numeric {
			return statmodel.Dataset{}, fmt.Errorf("column %s is not numeric", name)
		}
		x := make([]float64, len(rows))
		for i, j := range rows {
			if c.Miss[j] {
				return statmodel.Dataset{}, fmt.Errorf("column %s has missing values", name)
			}
			x[i] = c.Num[j]
		}
		names = append(names, name)
		data = append(data, x)
	}

	return statmodel.NewDataset(data, names), nil
}

// survivalRows returns the rows usable for survival modeling: the
// time and status columns are observed and the time is positive.
func survivalRows(f *dframe.Frame, extra []string) ([]int, error) {

	cols := append([]string{"survival_days", "death_event"}, extra...)
	rows, err := completeRows(f, cols)
	if err != nil {
		return nil, err
	}

	tm, err := f.Col("survival_days")
	if err != nil {
		return nil, err
	}

	var keep []int
	for _, i := range rows {
		if tm.Num[i] > 0 {
			keep = append(keep, i)
		}
	}

	return keep, nil
}

// writeRecords writes a header and records as a CSV file.
func writeRecords(path string, header []string, recs [][]string) error {

	fid, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fid.Close()

	cw := csv.NewWriter(fid)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, rec := range recs {
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()

	return cw.Error()
}

// readRecords reads a CSV file with a header, returning the records.
func readRecords(path string) ([][]string, error) {

	fid, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fid.Close()

	cr := csv.NewReader(fid)
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	return recs[1:], nil
}

// readSelected returns the predictors selected by the screening stage
// for one outcome.
func (p *Pipeline) readSelected(outcome string) ([]string, error) {

	recs, err := readRecords(p.layout.Output("models", "selected.csv"))
	if err != nil {
		return nil, err
	}

	var preds []string
	for _, rec := range recs {
		if len(rec) == 2 && rec[0] == outcome {
			preds = append(preds, rec[1])
		}
	}

	return preds, nil
}
