package dose

import (
	"math"
	"testing"

	"github.com/bioERGOtech/VERO-Code-Salerno/dframe"
)

func TestParseUnit(t *testing.T) {

	for _, pr := range []struct {
		raw  string
		unit Unit
	}{
		{"mg", UnitMG},
		{" MG ", UnitMG},
		{"g", UnitG},
		{"mcg", UnitMCG},
		{"µg", UnitMCG},
		{"ug", UnitMCG},
		{"mg/kg", UnitMGPerKG},
		{"mg/m2", UnitMGPerM2},
		{"MG/MQ", UnitMGPerM2},
		{"UI", UnitUI},
		{"iu/ml", UnitUIPerML},
		{"tablets", UnitUnknown},
	} {
		if u := ParseUnit(pr.raw); u != pr.unit {
			t.Errorf("%q parsed as %v, want %v", pr.raw, u, pr.unit)
		}
	}
}

func TestToMG(t *testing.T) {

	for _, pr := range []struct {
		dose   float64
		unit   Unit
		weight float64
		bsa    float64
		mg     float64
	}{
		{250, UnitMG, 0, 0, 250},
		{1.5, UnitG, 0, 0, 1500},
		{500, UnitMCG, 0, 0, 0.5},
		{2, UnitMGPerKG, 70, 0, 140},
		{75, UnitMGPerM2, 70, 1.8, 135},
	} {
		v, err := ToMG(pr.dose, pr.unit, pr.weight, pr.bsa)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(v-pr.mg) > 1e-10 {
			t.Errorf("%v %v -> %v, want %v", pr.dose, pr.unit, v, pr.mg)
		}
	}

	if _, err := ToMG(100, UnitUI, 70, 1.8); err == nil {
		t.Error("expected an error for UI")
	}
	if _, err := ToMG(2, UnitMGPerKG, 0, 0); err == nil {
		t.Error("expected an error for mg/kg without weight")
	}
}

func TestClinicalFormulas(t *testing.T) {

	// 170 cm, 72 kg
	bsa := BSA(170, 72)
	if math.Abs(bsa-math.Sqrt(170*72/3600.0)) > 1e-12 {
		t.Fail()
	}

	bmi := BMI(170, 72)
	if math.Abs(bmi-72/(1.7*1.7)) > 1e-12 {
		t.Fail()
	}

	if math.Abs(NLR(65, 20)-3.25) > 1e-12 {
		t.Fail()
	}

	// 80y male, 70 kg, creatinine 1.2 mg/dL
	m := EGFR(80, 70, 1.2, false)
	if math.Abs(m-(140-80)*70/(72*1.2)) > 1e-10 {
		t.Fail()
	}
	fm := EGFR(80, 70, 1.2, true)
	if math.Abs(fm-0.85*m) > 1e-10 {
		t.Fail()
	}

	if !math.IsNaN(EGFR(80, 70, 0, false)) {
		t.Fail()
	}
}

func doseFrame(t *testing.T) *dframe.Frame {

	f := dframe.New()

	add := func(err error) {
		if err != nil {
			t.Fatal(err)
		}
	}

	add(f.AddNumeric("weight_kg", []float64{70, 80, 60, 75}))
	add(f.AddNumeric("height_cm", []float64{170, 180, 160, 175}))
	add(f.AddNumeric("oxaliplatin_dose", []float64{85, 100, 90, 85}))
	add(f.AddCategorical("oxaliplatin_dose_unit", []string{"mg/m2", "mg", "mg/m2", "mg/m2"}))
	add(f.AddNumeric("enoxaparin_dose", []float64{4000, 4000, 6000, 4000}))
	add(f.AddCategorical("enoxaparin_dose_unit", []string{"UI", "UI", "UI", "UI"}))

	return f
}

func TestStandardizeDoses(t *testing.T) {

	f := doseFrame(t)

	nc, err := StandardizeDoses(f)
	if err != nil {
		t.Fatal(err)
	}

	mg, err := f.Col("oxaliplatin_dose_mg")
	if err != nil {
		t.Fatal(err)
	}

	bsa0 := BSA(170, 70)
	if math.Abs(mg.Num[0]-85*bsa0) > 1e-10 {
		t.Errorf("mg/m2 conversion wrong: %v", mg.Num[0])
	}
	if mg.Num[1] != 100 {
		t.Errorf("mg passthrough wrong: %v", mg.Num[1])
	}
	if mg.NumMissing() != 0 {
		t.Fail()
	}

	emg, err := f.Col("enoxaparin_dose_mg")
	if err != nil {
		t.Fatal(err)
	}
	if emg.NumMissing() != 4 {
		t.Errorf("UI doses should stay missing, got %d missing", emg.NumMissing())
	}

	if len(nc) != 1 || nc[0].Column != "enoxaparin_dose" || nc[0].Unit != "UI" || nc[0].Count != 4 {
		t.Errorf("non-convertible tally: %+v", nc)
	}
}

func TestDeriveClinical(t *testing.T) {

	f := dframe.New()

	add := func(err error) {
		if err != nil {
			t.Fatal(err)
		}
	}

	add(f.AddNumeric("height_cm", []float64{170, 160}))
	add(f.AddNumeric("weight_kg", []float64{72, 55}))
	add(f.AddNumeric("age", []float64{78, 83}))
	add(f.AddCategorical("gender", []string{"M", "F"}))
	add(f.AddNumeric("neutrophils_percent", []float64{65, 70}))
	add(f.AddColumn(&dframe.Column{
		Name: "lymphocytes_percent",
		Type: dframe.Numeric,
		Num:  []float64{20, 0},
		Miss: []bool{false, true},
	}))
	add(f.AddNumeric("creatinine", []float64{1.1, 0.9}))

	if err := DeriveClinical(f); err != nil {
		t.Fatal(err)
	}

	bmi, _ := f.Col("bmi")
	if math.Abs(bmi.Num[0]-72/(1.7*1.7)) > 1e-10 {
		t.Fail()
	}

	nlr, _ := f.Col("nlr")
	if math.Abs(nlr.Num[0]-3.25) > 1e-10 || !nlr.Miss[1] {
		t.Fail()
	}

	egfr, _ := f.Col("egfr")
	want := 0.85 * (140 - 83) * 55 / (72 * 0.9)
	if math.Abs(egfr.Num[1]-want) > 1e-10 {
		t.Errorf("egfr: %v want %v", egfr.Num[1], want)
	}
}
