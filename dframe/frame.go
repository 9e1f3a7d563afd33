// Package dframe provides a column-oriented data frame for clinical
// tables, with typed columns, missingness masks, CSV and XLSX I/O,
// and conversion to the dataset format used by the model-fitting
// packages.
package dframe

import (
	"fmt"
	"math"
	"sort"

	"github.com/bioERGOtech/VERO-Code-Salerno/statmodel"
)

// ColType identifies the type of a column.
type ColType int

const (
	// Numeric columns hold float64 values.
	Numeric ColType = iota

	// Categorical columns hold a small number of string levels.
	Categorical

	// Date columns hold calendar dates, stored as days since the
	// Unix epoch.
	Date

	// Text columns hold free text.
	Text
)

// String returns the name of the column type.
func (t ColType) String() string {
	switch t {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	case Date:
		return "date"
	case Text:
		return "text"
	}
	panic("unknown column type")
}

// Column is a single typed column with a missingness mask.  Numeric
// and Date columns use Num, Categorical and Text columns use Str.
// Miss[i] is true when the value in row i is missing.
type Column struct {
	Name string
	Type ColType
	Num  []float64
	Str  []string
	Miss []bool
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	if c.Type == Numeric || c.Type == Date {
		return len(c.Num)
	}
	return len(c.Str)
}

// NumMissing returns the number of missing values in the column.
func (c *Column) NumMissing() int {
	var m int
	for _, b := range c.Miss {
		if b {
			m++
		}
	}
	return m
}

// Frame is an ordered collection of equal-length columns.
type Frame struct {
	cols  []*Column
	index map[string]int
}

// New returns an empty frame.
func New() *Frame {
	return &Frame{
		index: make(map[string]int),
	}
}

// NumRow returns the number of rows in the frame.
func (f *Frame) NumRow() int {
	if len(f.cols) == 0 {
		return 0
	}
	return f.cols[0].Len()
}

// NumCol returns the number of columns in the frame.
func (f *Frame) NumCol() int {
	return len(f.cols)
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	na := make([]string, len(f.cols))
	for i, c := range f.cols {
		na[i] = c.Name
	}
	return na
}

// HasCol returns true if the frame contains a column with the given name.
func (f *Frame) HasCol(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Col returns the column with the given name, or an error if it is
// not present.
func (f *Frame) Col(name string) (*Column, error) {
	j, ok := f.index[name]
	if !ok {
		return nil, fmt.Errorf("column '%s' not found", name)
	}
	return f.cols[j], nil
}

// Columns returns the columns in order.
func (f *Frame) Columns() []*Column {
	return f.cols
}

// AddColumn appends a column to the frame.  The column must have the
// same number of rows as the frame and a name not already in use.
func (f *Frame) AddColumn(c *Column) error {

	if _, ok := f.index[c.Name]; ok {
		return fmt.Errorf("column '%s' already present", c.Name)
	}
	if len(f.cols) > 0 && c.Len() != f.NumRow() {
		return fmt.Errorf("column '%s' has %d rows, frame has %d", c.Name, c.Len(), f.NumRow())
	}
	if c.Miss == nil {
		c.Miss = make([]bool, c.Len())
	}

	f.index[c.Name] = len(f.cols)
	f.cols = append(f.cols, c)

	return nil
}

// AddNumeric appends a numeric column with no missing values.
func (f *Frame) AddNumeric(name string, x []float64) error {
	return f.AddColumn(&Column{Name: name, Type: Numeric, Num: x})
}

// AddCategorical appends a categorical column with no missing values.
func (f *Frame) AddCategorical(name string, x []string) error {
	return f.AddColumn(&Column{Name: name, Type: Categorical, Str: x})
}

// DropColumn removes the column with the given name.
func (f *Frame) DropColumn(name string) error {

	j, ok := f.index[name]
	if !ok {
		return fmt.Errorf("column '%s' not found", name)
	}

	f.cols = append(f.cols[0:j], f.cols[j+1:]...)
	f.index = make(map[string]int)
	for i, c := range f.cols {
		f.index[c.Name] = i
	}

	return nil
}

// Copy returns a deep copy of the frame.
func (f *Frame) Copy() *Frame {

	g := New()
	for _, c := range f.cols {
		d := &Column{
			Name: c.Name,
			Type: c.Type,
			Miss: append([]bool(nil), c.Miss...),
		}
		if c.Num != nil {
			d.Num = append([]float64(nil), c.Num...)
		}
		if c.Str != nil {
			d.Str = append([]string(nil), c.Str...)
		}
		// Ignore the error, the source frame is valid.
		_ = g.AddColumn(d)
	}

	return g
}

// SelectRows returns a new frame containing only the rows with the
// given indices, in the given order.
func (f *Frame) SelectRows(ix []int) *Frame {

	g := New()
	for _, c := range f.cols {
		d := &Column{
			Name: c.Name,
			Type: c.Type,
			Miss: make([]bool, len(ix)),
		}
		if c.Num != nil {
			d.Num = make([]float64, len(ix))
			for i, j := range ix {
				d.Num[i] = c.Num[j]
			}
		}
		if c.Str != nil {
			d.Str = make([]string, len(ix))
			for i, j := range ix {
				d.Str[i] = c.Str[j]
			}
		}
		for i, j := range ix {
			d.Miss[i] = c.Miss[j]
		}
		_ = g.AddColumn(d)
	}

	return g
}

// Levels returns the distinct non-missing levels of a categorical or
// text column, sorted by decreasing frequency with ties broken
// alphabetically.
func (c *Column) Levels() []string {

	cnt := make(map[string]int)
	for i, s := range c.Str {
		if !c.Miss[i] {
			cnt[s]++
		}
	}

	lv := make([]string, 0, len(cnt))
	for s := range cnt {
		lv = append(lv, s)
	}
	sort.Slice(lv, func(i, j int) bool {
		if cnt[lv[i]] != cnt[lv[j]] {
			return cnt[lv[i]] > cnt[lv[j]]
		}
		return lv[i] < lv[j]
	})

	return lv
}

// ToDataset converts the named columns to the dataset format used by
// the model-fitting packages.  Numeric and date columns map to one
// variable each, categorical columns are dummy coded with the most
// frequent level as the reference.  All requested columns must be
// complete; impute before modeling.
func (f *Frame) ToDataset(names []string) (statmodel.Dataset, error) {

	var data [][]statmodel.Dtype
	var varnames []string

	for _, name := range names {

		c, err := f.Col(name)
		if err != nil {
			return statmodel.Dataset{}, err
		}
		if c.NumMissing() > 0 {
			return statmodel.Dataset{}, fmt.Errorf("column '%s' has missing values", name)
		}

		switch c.Type {
		case Numeric, Date:
			x := make([]statmodel.Dtype, len(c.Num))
			copy(x, c.Num)
			data = append(data, x)
			varnames = append(varnames, name)
		case Categorical:
			lv := c.Levels()
			if len(lv) < 2 {
				return statmodel.Dataset{}, fmt.Errorf("column '%s' has fewer than two levels", name)
			}
			// Skip the reference level
			for _, s := range lv[1:] {
				x := make([]statmodel.Dtype, len(c.Str))
				for i, v := range c.Str {
					if v == s {
						x[i] = 1
					}
				}
				data = append(data, x)
				varnames = append(varnames, name+"="+s)
			}
		default:
			return statmodel.Dataset{}, fmt.Errorf("column '%s' is free text, cannot model", name)
		}
	}

	return statmodel.NewDataset(data, varnames), nil
}

// NumericValues returns the values of a numeric or date column with
// missing values replaced by NaN.
func (f *Frame) NumericValues(name string) ([]float64, error) {

	c, err := f.Col(name)
	if err != nil {
		return nil, err
	}
	if c.Type != Numeric && c.Type != Date {
		return nil, fmt.Errorf("column '%s' is not numeric", name)
	}

	x := make([]float64, len(c.Num))
	for i, v := range c.Num {
		if c.Miss[i] {
			x[i] = math.NaN()
		} else {
			x[i] = v
		}
	}

	return x, nil
}
