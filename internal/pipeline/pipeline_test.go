package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/bioERGOtech/VERO-Code-Salerno/internal/config"
)

func testConfig(t *testing.T) *config.Config {

	dir := t.TempDir()

	return &config.Config{
		RawData:          filepath.Join(dir, "master.csv"),
		WorkDir:          dir,
		Seed:             20240101,
		MissingThreshold: 0.60,
		MICEDatasets:     2,
		MICECycles:       2,
		MICEDonors:       3,
		ScreenPValue:     0.157,
		CVFolds:          3,
		Bootstrap:        8,
		L1Weight:         0.1,
		L2Weight:         0.1,
	}
}

func testPipeline(t *testing.T) *Pipeline {
	p, err := New(testConfig(t), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLayout(t *testing.T) {

	l := NewLayout(t.TempDir())
	if err := l.Ensure(); err != nil {
		t.Fatal(err)
	}

	for _, d := range []string{
		l.Interim(""), l.Processed(""),
		l.Output("models", ""), l.Output("visuals", ""),
		filepath.Dir(l.Manifest()),
	} {
		if fi, err := os.Stat(d); err != nil || !fi.IsDir() {
			t.Errorf("missing layout directory %s", d)
		}
	}
}

func TestManifest(t *testing.T) {

	path := filepath.Join(t.TempDir(), "manifest.json")

	for i := 0; i < 3; i++ {
		e := ManifestEntry{
			RunID:    "r1",
			Stage:    fmt.Sprintf("stage%d", i),
			Started:  time.Now(),
			Finished: time.Now(),
		}
		if err := appendManifest(path, e); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := ReadManifest(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 || entries[2].Stage != "stage2" {
		t.Errorf("manifest entries: %+v", entries)
	}
}

func TestStageRegistry(t *testing.T) {

	p := testPipeline(t)

	stages := p.Stages()
	if len(stages) != len(StageOrder) {
		t.Fatalf("got %d stages", len(stages))
	}
	for i, s := range stages {
		if s.Name != StageOrder[i].Name || s.Run == nil {
			t.Errorf("stage %d: %+v", i, s)
		}
	}

	if _, err := p.Stage("screen"); err != nil {
		t.Error(err)
	}
	if _, err := p.Stage("bogus"); err == nil {
		t.Error("expected an error for an unknown stage")
	}
}

func TestCleanNumericIDs(t *testing.T) {

	p := testPipeline(t)

	rows := []string{
		"patient_id,age",
		"1001,70",
		"1002,80",
		"1001,75",
	}
	err := os.WriteFile(p.cfg.RawData, []byte(strings.Join(rows, "\n")), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	if err := p.Clean(); err != nil {
		t.Fatal(err)
	}

	f, err := readTable(p.Layout().Interim("clean.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if f.NumRow() != 2 {
		t.Fatalf("duplicate numeric id not dropped: %d rows", f.NumRow())
	}

	// The first row of a duplicated patient is the one kept
	age, err := f.Col("age")
	if err != nil {
		t.Fatal(err)
	}
	if age.Num[0] != 70 || age.Num[1] != 80 {
		t.Errorf("age after dedup: %v", age.Num)
	}
}

func TestScreenDegeneratePredictor(t *testing.T) {

	p := testPipeline(t)

	// marker varies only on the row whose survival time is missing,
	// so it is constant on the rows the Cox screen can use.
	rows := []string{
		"patient_id,age,marker,survival_days,death_event",
		"P001,70,1,120,1",
		"P002,66,1,200,1",
		"P003,81,1,90,1",
		"P004,62,1,330,0",
		"P005,75,1,150,1",
		"P006,68,1,280,0",
		"P007,79,1,110,1",
		"P008,64,1,300,0",
		"P009,72,1,180,1",
		"P010,60,2,,0",
	}
	err := os.WriteFile(p.Layout().Processed("analysis.csv"),
		[]byte(strings.Join(rows, "\n")), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	if err := p.Screen(); err != nil {
		t.Fatal(err)
	}

	recs, err := readRecords(p.Layout().Output("models", "screening.csv"))
	if err != nil {
		t.Fatal(err)
	}
	var sawAge bool
	for _, rec := range recs {
		if rec[0] == "survival" && rec[1] == "marker" {
			t.Error("degenerate predictor entered the survival screen")
		}
		if rec[0] == "survival" && rec[1] == "age" {
			sawAge = true
		}
	}
	if !sawAge {
		t.Error("age missing from the survival screen")
	}
}

func TestDerive(t *testing.T) {

	p := testPipeline(t)

	rows := []string{
		"patient_id,age,cci_score,adr_max_severity,observation_start_date,observation_end_date,death_date",
		"P001,80,5,4,2019-01-01,2019-12-31,2019-03-02",
		"P002,62,1,2,2019-01-01,2019-12-31,",
		"P003,71,3,3,2019-02-01,2019-11-30,",
	}
	err := os.WriteFile(p.Layout().Processed("ranged.csv"),
		[]byte(strings.Join(rows, "\n")), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	if err := p.Derive(); err != nil {
		t.Fatal(err)
	}

	f, err := readTable(p.Layout().Processed("analysis.csv"))
	if err != nil {
		t.Fatal(err)
	}

	surv, err := f.Col("survival_days")
	if err != nil {
		t.Fatal(err)
	}
	// P001 dies 60 days after start; P002 censored at year end
	if surv.Num[0] != 60 {
		t.Errorf("survival_days[0] = %v", surv.Num[0])
	}
	if surv.Num[1] != 364 {
		t.Errorf("survival_days[1] = %v", surv.Num[1])
	}

	ev, _ := f.Col("death_event")
	if ev.Num[0] != 1 || ev.Num[1] != 0 {
		t.Errorf("death_event: %v", ev.Num)
	}

	adr, _ := f.Col("adr_severe")
	if adr.Num[0] != 1 || adr.Num[1] != 0 || adr.Num[2] != 1 {
		t.Errorf("adr_severe: %v", adr.Num)
	}

	fr, _ := f.Col("frailty_category")
	if fr.Str[0] != "frail" || fr.Str[1] != "fit" || fr.Str[2] != "vulnerable" {
		t.Errorf("frailty_category: %v", fr.Str)
	}

	ag, _ := f.Col("age_group")
	if ag.Str[0] != ">65" || ag.Str[1] != "<=65" {
		t.Errorf("age_group: %v", ag.Str)
	}
}

// writeMaster writes a synthetic raw cohort: survival driven by age,
// two labs with scattered missing values, one unusable column, one
// duplicated patient, and a dose column with a non-convertible unit.
func writeMaster(t *testing.T, path string) {

	base := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	day := func(d int) string {
		return base.AddDate(0, 0, d).Format("2006-01-02")
	}

	head := []string{
		"patient_id", "age", "gender", "height_cm", "weight_kg",
		"white_blood_cells", "hemoglobin", "neutrophils_percent",
		"lymphocytes_percent", "platelet_count", "creatinine",
		"cci_score", "total_unique_active_drugs",
		"oxaliplatin_dose", "oxaliplatin_dose_unit",
		"observation_start_date", "observation_end_date", "death_date",
		"adr_n_tot", "adr_max_severity", "readmission", "junk",
	}

	lines := []string{strings.Join(head, ",")}

	row := func(i int) string {

		age := 55 + i%35
		dead := age > 65 && i%4 != 0
		survDays := 420 - 5*(age-55) + i%30

		wbc := fmt.Sprintf("%.1f", 4+float64(i%70)/10)
		if i%17 == 0 {
			wbc = "NA"
		}
		hb := fmt.Sprintf("%.1f", 10+float64(i%60)/10)
		if i%19 == 0 {
			hb = ""
		}

		unit := "mg/m2"
		if i%11 == 0 {
			unit = "UI"
		}

		death := ""
		if dead {
			death = day(survDays)
		}

		gender := "M"
		if i%2 == 0 {
			gender = "F"
		}

		junk := "NA"
		if i%5 == 0 {
			junk = "1"
		}

		readm := 0
		if i%4 == 0 {
			readm = 1
		}

		return strings.Join([]string{
			fmt.Sprintf("P%03d", i+1),
			fmt.Sprintf("%d", age),
			gender,
			fmt.Sprintf("%d", 150+(i*3)%30),
			fmt.Sprintf("%d", 50+(i*5)%40),
			wbc,
			hb,
			fmt.Sprintf("%d", 45+i%30),
			fmt.Sprintf("%d", 18+i%20),
			fmt.Sprintf("%d", 150+(i*7)%250),
			fmt.Sprintf("%.1f", 0.6+float64(i%10)/10),
			fmt.Sprintf("%d", i%6),
			fmt.Sprintf("%d", 2+i%8),
			"85",
			unit,
			day(0),
			day(400),
			death,
			fmt.Sprintf("%d", i%5),
			fmt.Sprintf("%d", i%5),
			fmt.Sprintf("%d", readm),
			junk,
		}, ",")
	}

	for i := 0; i < 90; i++ {
		lines = append(lines, row(i))
	}
	// Duplicate patient, dropped during cleaning
	lines = append(lines, row(0))

	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestPipelineEndToEnd(t *testing.T) {

	if testing.Short() {
		t.Skip("full pipeline run")
	}

	p := testPipeline(t)
	writeMaster(t, p.cfg.RawData)

	if err := p.RunAll(); err != nil {
		t.Fatal(err)
	}
	l := p.Layout()

	// Cleaning drops the unusable column and the duplicate patient
	clean, err := readTable(l.Interim("clean.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if clean.HasCol("junk") {
		t.Error("high-missingness column survived cleaning")
	}
	if clean.NumRow() != 90 {
		t.Errorf("duplicate patient not dropped: %d rows", clean.NumRow())
	}

	// The pooled imputed table is complete in its numeric columns
	imp, err := readTable(l.Processed("imputed.csv"))
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"white_blood_cells", "hemoglobin"} {
		c, err := imp.Col(name)
		if err != nil {
			t.Fatal(err)
		}
		if c.NumMissing() != 0 {
			t.Errorf("%s still missing after imputation", name)
		}
	}
	if !imp.HasCol("white_blood_cells_imputed") {
		t.Error("imputation flags missing")
	}

	// Outcomes and derived columns
	f, err := readTable(l.Processed("analysis.csv"))
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{
		"survival_days", "death_event", "adr_severe", "frailty_category",
		"age_group", "bmi", "bsa", "nlr", "egfr", "oxaliplatin_dose_mg",
		"creatinine_range",
	} {
		if !f.HasCol(name) {
			t.Errorf("analysis table lacks %s", name)
		}
	}

	// Model outputs
	for _, path := range []string{
		l.Output("profiling", "profile.csv"),
		l.Output("profiling", "out_of_range.csv"),
		l.Output("standardization", "non_convertible.csv"),
		l.Output("models", "screening.csv"),
		l.Output("models", "cox_model.csv"),
		l.Output("models", "aft_model.csv"),
		l.Output("models", "cindex.csv"),
		l.Output("validation", "validation.csv"),
		l.Report("relative_importance.csv"),
		l.Output("visuals", "missingness.png"),
		l.Output("visuals", "km_age_group.png"),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing output %s", path)
		}
	}

	// The dose column with UI units is reported as non-convertible
	nc, err := readRecords(l.Output("standardization", "non_convertible.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(nc) != 1 || nc[0][0] != "oxaliplatin_dose" || nc[0][1] != "UI" {
		t.Errorf("non-convertible records: %v", nc)
	}

	// Age dominates survival in this cohort
	ri, err := readRecords(l.Report("relative_importance.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(ri) == 0 {
		t.Fatal("empty importance ranking")
	}
	if ri[0][1] != "age" {
		t.Logf("top ranked predictor: %s", ri[0][1])
	}

	// One manifest entry per stage
	entries, err := ReadManifest(l.Manifest())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(StageOrder) {
		t.Errorf("manifest has %d entries", len(entries))
	}
}
