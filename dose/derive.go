package dose

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/bioERGOtech/VERO-Code-Salerno/dframe"
)

// NonConvertible records a dose column whose unit cannot be converted
// to milligrams, with the number of affected rows.
type NonConvertible struct {
	Column string
	Unit   string
	Count  int
}

// doseSuffix and unitSuffix identify the paired dose value and dose
// unit columns in the raw table.
const (
	doseSuffix = "_dose"
	unitSuffix = "_dose_unit"
)

// DoseColumns returns the names of the dose value columns in the
// frame that have a matching unit column, sorted.
func DoseColumns(f *dframe.Frame) []string {

	var cols []string
	for _, name := range f.Names() {
		if !strings.HasSuffix(name, doseSuffix) {
			continue
		}
		if f.HasCol(name + "_unit") {
			cols = append(cols, name)
		}
	}
	sort.Strings(cols)

	return cols
}

// StandardizeDoses converts every dose column with a matching unit
// column to milligrams, adding a "<drug>_dose_mg" column per drug.
// Weight-based units use the weight_kg column and surface-based units
// the Mosteller BSA from height_cm and weight_kg; rows where the
// required covariate is missing stay missing in the mg column.  Rows
// whose unit is not mass-convertible also stay missing and are
// tallied in the returned list.
func StandardizeDoses(f *dframe.Frame) ([]NonConvertible, error) {

	wt, err := f.Col("weight_kg")
	if err != nil {
		return nil, err
	}
	ht, err := f.Col("height_cm")
	if err != nil {
		return nil, err
	}

	n := f.NumRow()
	tally := make(map[[2]string]int)

	for _, name := range DoseColumns(f) {

		dc, err := f.Col(name)
		if err != nil {
			return nil, err
		}
		if dc.Type != dframe.Numeric {
			return nil, fmt.Errorf("dose column %s is not numeric", name)
		}
		uc, err := f.Col(name + "_unit")
		if err != nil {
			return nil, err
		}

		mg := make([]float64, n)
		miss := make([]bool, n)

		for i := 0; i < n; i++ {

			if dc.Miss[i] || uc.Miss[i] {
				miss[i] = true
				continue
			}

			unit := ParseUnit(uc.Str[i])
			if !unit.Convertible() {
				miss[i] = true
				tally[[2]string{name, uc.Str[i]}]++
				continue
			}

			var bw, bs float64
			if !wt.Miss[i] {
				bw = wt.Num[i]
			}
			if !wt.Miss[i] && !ht.Miss[i] {
				bs = BSA(ht.Num[i], wt.Num[i])
			}

			v, err := ToMG(dc.Num[i], unit, bw, bs)
			if err != nil {
				miss[i] = true
				continue
			}
			mg[i] = v
		}

		err = f.AddColumn(&dframe.Column{
			Name: name + "_mg",
			Type: dframe.Numeric,
			Num:  mg,
			Miss: miss,
		})
		if err != nil {
			return nil, err
		}
	}

	var nc []NonConvertible
	for k, v := range tally {
		nc = append(nc, NonConvertible{Column: k[0], Unit: k[1], Count: v})
	}
	sort.Slice(nc, func(i, j int) bool {
		if nc[i].Column != nc[j].Column {
			return nc[i].Column < nc[j].Column
		}
		return nc[i].Unit < nc[j].Unit
	})

	return nc, nil
}

// femaleLevel reports whether a raw gender code denotes a female
// patient.
func femaleLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f", "female", "donna":
		return true
	}
	return false
}

// DeriveClinical adds the derived clinical columns bmi, bsa, nlr, and
// egfr to the frame.  A derived value is missing wherever any of its
// inputs is missing.
func DeriveClinical(f *dframe.Frame) error {

	n := f.NumRow()

	ht, err := f.Col("height_cm")
	if err != nil {
		return err
	}
	wt, err := f.Col("weight_kg")
	if err != nil {
		return err
	}
	age, err := f.Col("age")
	if err != nil {
		return err
	}
	sex, err := f.Col("gender")
	if err != nil {
		return err
	}
	neu, err := f.Col("neutrophils_percent")
	if err != nil {
		return err
	}
	lym, err := f.Col("lymphocytes_percent")
	if err != nil {
		return err
	}
	cr, err := f.Col("creatinine")
	if err != nil {
		return err
	}

	bmi := make([]float64, n)
	bmiMiss := make([]bool, n)
	bsa := make([]float64, n)
	bsaMiss := make([]bool, n)
	nlr := make([]float64, n)
	nlrMiss := make([]bool, n)
	egfr := make([]float64, n)
	egfrMiss := make([]bool, n)

	for i := 0; i < n; i++ {

		if ht.Miss[i] || wt.Miss[i] {
			bmiMiss[i] = true
			bsaMiss[i] = true
		} else {
			bmi[i] = BMI(ht.Num[i], wt.Num[i])
			bsa[i] = BSA(ht.Num[i], wt.Num[i])
			if math.IsNaN(bmi[i]) {
				bmiMiss[i] = true
				bmi[i] = 0
			}
			if math.IsNaN(bsa[i]) {
				bsaMiss[i] = true
				bsa[i] = 0
			}
		}

		if neu.Miss[i] || lym.Miss[i] {
			nlrMiss[i] = true
		} else {
			nlr[i] = NLR(neu.Num[i], lym.Num[i])
			if math.IsNaN(nlr[i]) {
				nlrMiss[i] = true
				nlr[i] = 0
			}
		}

		if age.Miss[i] || wt.Miss[i] || cr.Miss[i] || sex.Miss[i] {
			egfrMiss[i] = true
		} else {
			egfr[i] = EGFR(age.Num[i], wt.Num[i], cr.Num[i], femaleLevel(sex.Str[i]))
			if math.IsNaN(egfr[i]) {
				egfrMiss[i] = true
				egfr[i] = 0
			}
		}
	}

	for _, c := range []*dframe.Column{
		{Name: "bmi", Type: dframe.Numeric, Num: bmi, Miss: bmiMiss},
		{Name: "bsa", Type: dframe.Numeric, Num: bsa, Miss: bsaMiss},
		{Name: "nlr", Type: dframe.Numeric, Num: nlr, Miss: nlrMiss},
		{Name: "egfr", Type: dframe.Numeric, Num: egfr, Miss: egfrMiss},
	} {
		if err := f.AddColumn(c); err != nil {
			return err
		}
	}

	return nil
}
