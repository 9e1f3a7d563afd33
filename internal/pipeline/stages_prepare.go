package pipeline

import (
	"fmt"
	"strconv"

	"github.com/bioERGOtech/VERO-Code-Salerno/dframe"
	"github.com/bioERGOtech/VERO-Code-Salerno/dose"
	"github.com/bioERGOtech/VERO-Code-Salerno/mice"
	"github.com/bioERGOtech/VERO-Code-Salerno/report"
)

// Profile writes the per-column profile of the raw table.
func (p *Pipeline) Profile() error {

	f, err := readTable(p.cfg.RawData)
	if err != nil {
		return err
	}

	profs := report.Profile(f)

	if err := report.WriteProfileCSVFile(p.layout.Output("profiling", "profile.csv"), profs); err != nil {
		return err
	}

	return report.WriteProfileXLSX(p.layout.Output("profiling", "profile.xlsx"), profs)
}

// Clean canonicalizes the raw table: missing tokens are already
// normalized on load, columns above the missingness threshold are
// dropped, and duplicate patients are removed keeping the first row.
func (p *Pipeline) Clean() error {

	f, err := readTable(p.cfg.RawData)
	if err != nil {
		return err
	}

	// The identifier and the date columns are never dropped: death
	// dates are legitimately missing for survivors.
	protected := map[string]bool{
		"patient_id":             true,
		"observation_start_date": true,
		"observation_end_date":   true,
		"death_date":             true,
	}

	profs := report.Profile(f)
	for _, name := range report.HighMissing(profs, p.cfg.MissingThreshold) {
		if protected[name] {
			continue
		}
		if err := f.DropColumn(name); err != nil {
			return err
		}
		p.log.Info().Str("column", name).
			Float64("threshold", p.cfg.MissingThreshold).
			Msg("dropping column above missingness threshold")
	}

	if f.HasCol("patient_id") {
		id, err := f.Col("patient_id")
		if err != nil {
			return err
		}
		// Identifiers may be numeric or string, so key the dedup on
		// the formatted cell value.
		seen := make(map[string]bool)
		var keep []int
		for i := 0; i < f.NumRow(); i++ {
			key := id.CellString(i)
			if id.Miss[i] || !seen[key] {
				keep = append(keep, i)
				seen[key] = true
			}
		}
		if len(keep) < f.NumRow() {
			p.log.Info().Int("dropped", f.NumRow()-len(keep)).
				Msg("dropping duplicate patient rows")
			f = f.SelectRows(keep)
		}
	}

	return f.WriteCSVFile(p.layout.Interim("clean.csv"))
}

// positiveColumns lists the columns that cannot be negative, used to
// repair imputation artifacts.
var positiveColumns = []string{
	"age", "weight_kg", "height_cm", "white_blood_cells", "hemoglobin",
	"neutrophils_percent", "lymphocytes_percent", "platelet_count",
	"creatinine", "ast_got", "alt_gpt", "total_bilirubin", "cci_score",
	"IPB", "total_unique_active_drugs", "n_treatment_lines",
	"total_chemo_cycles", "treatment_duration_days", "adr_n_tot",
	"adr_max_severity",
}

// Impute fills the missing values by chained equations, writing each
// completed dataset, the pooled dataset with imputation flags, and a
// per-column imputation summary.
func (p *Pipeline) Impute() error {

	f, err := readTable(p.layout.Interim("clean.csv"))
	if err != nil {
		return err
	}

	mc := &mice.Config{
		M:      p.cfg.MICEDatasets,
		Cycles: p.cfg.MICECycles,
		Donors: p.cfg.MICEDonors,
		Seed:   p.cfg.Seed,
	}
	imp, err := mice.New(f, mc)
	if err != nil {
		return err
	}

	frames, err := imp.Run()
	if err != nil {
		return err
	}

	for m, g := range frames {
		nrep, err := mice.RepairNegatives(g, positiveColumns)
		if err != nil {
			return err
		}
		if nrep > 0 {
			p.log.Info().Int("dataset", m+1).Int("cells", nrep).
				Msg("repaired negative imputed values")
		}
		name := fmt.Sprintf("imputed_m%d.csv", m+1)
		if err := g.WriteCSVFile(p.layout.Processed(name)); err != nil {
			return err
		}
	}

	pooled, err := mice.Pool(frames)
	if err != nil {
		return err
	}
	if err := imp.AddFlags(pooled); err != nil {
		return err
	}

	var recs [][]string
	for _, name := range f.Names() {
		c, err := f.Col(name)
		if err != nil {
			return err
		}
		if c.NumMissing() > 0 {
			recs = append(recs, []string{name, strconv.Itoa(c.NumMissing())})
		}
	}
	err = writeRecords(p.layout.Output("imputation", "imputation_summary.csv"),
		[]string{"column", "imputed_cells"}, recs)
	if err != nil {
		return err
	}

	return pooled.WriteCSVFile(p.layout.Processed("imputed.csv"))
}

// Standardize converts the dose columns to milligrams and derives the
// clinical index columns.
func (p *Pipeline) Standardize() error {

	f, err := readTable(p.layout.Processed("imputed.csv"))
	if err != nil {
		return err
	}

	nc, err := dose.StandardizeDoses(f)
	if err != nil {
		return err
	}

	var recs [][]string
	for _, r := range nc {
		recs = append(recs, []string{r.Column, r.Unit, strconv.Itoa(r.Count)})
	}
	err = writeRecords(p.layout.Output("standardization", "non_convertible.csv"),
		[]string{"column", "unit", "rows"}, recs)
	if err != nil {
		return err
	}

	if err := dose.DeriveClinical(f); err != nil {
		return err
	}

	return f.WriteCSVFile(p.layout.Processed("standardized.csv"))
}

// Ranges classifies the lab columns against the geriatric reference
// intervals.
func (p *Pipeline) Ranges() error {

	f, err := readTable(p.layout.Processed("standardized.csv"))
	if err != nil {
		return err
	}

	summ, err := report.AddRangeColumns(f, report.GeriatricRefIntervals)
	if err != nil {
		return err
	}

	err = report.WriteRangeSummaryCSVFile(p.layout.Output("profiling", "out_of_range.csv"), summ)
	if err != nil {
		return err
	}

	return f.WriteCSVFile(p.layout.Processed("ranged.csv"))
}

// Derive adds the outcome columns: survival time and event, severe
// adverse reaction, frailty category, and age group.
func (p *Pipeline) Derive() error {

	f, err := readTable(p.layout.Processed("ranged.csv"))
	if err != nil {
		return err
	}

	n := f.NumRow()

	start, err := f.Col("observation_start_date")
	if err != nil {
		return err
	}
	end, err := f.Col("observation_end_date")
	if err != nil {
		return err
	}

	// death_date may be absent when no deaths were recorded
	var death *dframe.Column
	if f.HasCol("death_date") {
		death, err = f.Col("death_date")
		if err != nil {
			return err
		}
	}

	surv := make([]float64, n)
	survMiss := make([]bool, n)
	event := make([]float64, n)

	for i := 0; i < n; i++ {

		dead := death != nil && !death.Miss[i]
		if dead {
			event[i] = 1
		}

		stop := 0.0
		switch {
		case dead:
			stop = death.Num[i]
		case !end.Miss[i]:
			stop = end.Num[i]
		default:
			survMiss[i] = true
			continue
		}

		if start.Miss[i] {
			survMiss[i] = true
			continue
		}
		surv[i] = stop - start.Num[i]
	}

	err = f.AddColumn(&dframe.Column{
		Name: "survival_days",
		Type: dframe.Numeric,
		Num:  surv,
		Miss: survMiss,
	})
	if err != nil {
		return err
	}
	if err := f.AddNumeric("death_event", event); err != nil {
		return err
	}

	if f.HasCol("adr_max_severity") {
		sev, err := f.Col("adr_max_severity")
		if err != nil {
			return err
		}
		adr := make([]float64, n)
		for i := 0; i < n; i++ {
			if !sev.Miss[i] && sev.Num[i] >= 3 {
				adr[i] = 1
			}
		}
		if err := f.AddNumeric("adr_severe", adr); err != nil {
			return err
		}
	}

	if f.HasCol("cci_score") {
		cci, err := f.Col("cci_score")
		if err != nil {
			return err
		}
		fr := make([]string, n)
		for i := 0; i < n; i++ {
			switch {
			case cci.Num[i] <= 1:
				fr[i] = "fit"
			case cci.Num[i] <= 3:
				fr[i] = "vulnerable"
			default:
				fr[i] = "frail"
			}
		}
		if err := f.AddCategorical("frailty_category", fr); err != nil {
			return err
		}
	}

	age, err := f.Col("age")
	if err != nil {
		return err
	}
	ag := make([]string, n)
	for i := 0; i < n; i++ {
		if age.Num[i] <= 65 {
			ag[i] = "<=65"
		} else {
			ag[i] = ">65"
		}
	}
	if err := f.AddCategorical("age_group", ag); err != nil {
		return err
	}

	return f.WriteCSVFile(p.layout.Processed("analysis.csv"))
}
