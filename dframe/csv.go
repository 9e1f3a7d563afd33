package dframe

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// missingTokens are cell values treated as missing, after trimming
// and case folding.
var missingTokens = map[string]bool{
	"":                    true,
	"na":                  true,
	"n/a":                 true,
	"nan":                 true,
	"null":                true,
	"not known / missing": true,
	"missing / not noted": true,
}

// dateLayouts are the date formats recognized during type inference.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2006-01-02 15:04:05",
}

// IsMissingToken reports whether a raw cell value denotes a missing
// value.
func IsMissingToken(s string) bool {
	return missingTokens[strings.ToLower(strings.TrimSpace(s))]
}

func parseDate(s string) (time.Time, bool) {
	for _, la := range dateLayouts {
		if t, err := time.Parse(la, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// epochDays converts a time to days since the Unix epoch.
func epochDays(t time.Time) float64 {
	return float64(t.Unix()) / 86400
}

// maxLevels is the greatest number of distinct values for a string
// column to be treated as categorical rather than free text.
const maxLevels = 30

// inferColumn builds a typed column from raw string cells.  A column
// is numeric if every non-missing cell parses as a number, a date if
// every non-missing cell parses as a date, categorical if it has few
// distinct levels, and free text otherwise.
func inferColumn(name string, raw []string) *Column {

	n := len(raw)
	miss := make([]bool, n)
	numeric := true
	date := true
	var nobs int

	for i, s := range raw {
		s = strings.TrimSpace(s)
		raw[i] = s
		if IsMissingToken(s) {
			miss[i] = true
			continue
		}
		nobs++
		if _, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64); err != nil {
			numeric = false
		}
		if _, ok := parseDate(s); !ok {
			date = false
		}
	}

	if nobs == 0 {
		numeric = false
		date = false
	}

	switch {
	case numeric:
		num := make([]float64, n)
		for i, s := range raw {
			if miss[i] {
				continue
			}
			num[i], _ = strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
		}
		return &Column{Name: name, Type: Numeric, Num: num, Miss: miss}
	case date:
		num := make([]float64, n)
		for i, s := range raw {
			if miss[i] {
				continue
			}
			t, _ := parseDate(s)
			num[i] = epochDays(t)
		}
		return &Column{Name: name, Type: Date, Num: num, Miss: miss}
	}

	lv := make(map[string]bool)
	for i, s := range raw {
		if !miss[i] {
			lv[s] = true
		}
	}

	str := make([]string, n)
	for i, s := range raw {
		if !miss[i] {
			str[i] = s
		}
	}

	if len(lv) <= maxLevels {
		return &Column{Name: name, Type: Categorical, Str: str, Miss: miss}
	}
	return &Column{Name: name, Type: Text, Str: str, Miss: miss}
}

// ReadCSV reads a CSV table with a header row, trims whitespace,
// canonicalizes missing tokens, and infers a type for every column.
func ReadCSV(r io.Reader) (*Frame, error) {

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	recs, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("csv has no header row")
	}

	head := recs[0]
	nrow := len(recs) - 1

	f := New()
	for j, name := range head {
		name = strings.TrimSpace(name)
		raw := make([]string, nrow)
		for i := 0; i < nrow; i++ {
			if j < len(recs[i+1]) {
				raw[i] = recs[i+1][j]
			}
		}
		if err := f.AddColumn(inferColumn(name, raw)); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// ReadCSVFile reads a CSV file from the given path.
func ReadCSVFile(path string) (*Frame, error) {

	fid, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer fid.Close()

	return ReadCSV(fid)
}

// CellString formats the value in row i of a column for writing,
// using an empty string for missing values.
func (c *Column) CellString(i int) string {

	if c.Miss[i] {
		return ""
	}

	switch c.Type {
	case Numeric:
		return strconv.FormatFloat(c.Num[i], 'g', -1, 64)
	case Date:
		t := time.Unix(int64(c.Num[i]*86400), 0).UTC()
		return t.Format("2006-01-02")
	}
	return c.Str[i]
}

// WriteCSV writes the frame as a CSV table with a header row.
// Missing values are written as empty cells.
func (f *Frame) WriteCSV(w io.Writer) error {

	cw := csv.NewWriter(w)

	if err := cw.Write(f.Names()); err != nil {
		return err
	}

	rec := make([]string, f.NumCol())
	for i := 0; i < f.NumRow(); i++ {
		for j, c := range f.cols {
			rec[j] = c.CellString(i)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the frame to a CSV file at the given path.
func (f *Frame) WriteCSVFile(path string) error {

	fid, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer fid.Close()

	return f.WriteCSV(fid)
}
