package pipeline

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/bioERGOtech/VERO-Code-Salerno/dframe"
	"github.com/bioERGOtech/VERO-Code-Salerno/duration"
	"github.com/bioERGOtech/VERO-Code-Salerno/report"
)

// histogramLabs are the labs drawn as histograms by the visualize
// stage, when present.
var histogramLabs = []string{
	"white_blood_cells", "hemoglobin", "platelet_count", "creatinine",
	"bmi", "egfr",
}

// Visualize draws the missingness chart from the raw table, the
// Kaplan-Meier curves by age group, the lab histograms, and, when the
// survival stage has run, the hazard-ratio forest plot.
func (p *Pipeline) Visualize() error {

	raw, err := readTable(p.cfg.RawData)
	if err != nil {
		return err
	}
	if err := p.missingnessPlot(raw); err != nil {
		return err
	}

	f, err := readTable(p.layout.Processed("analysis.csv"))
	if err != nil {
		return err
	}

	if err := p.kmPlot(f); err != nil {
		return err
	}
	if err := p.labHistograms(f); err != nil {
		return err
	}

	coxPath := p.layout.Output("models", "cox_model.csv")
	if _, err := os.Stat(coxPath); err != nil {
		p.log.Info().Msg("no fitted Cox model yet, skipping the forest plot")
		return nil
	}

	return p.forestPlot(coxPath)
}

// missingnessPlot draws the missing-value percentage of every column
// with missing data, highest first.
func (p *Pipeline) missingnessPlot(f *dframe.Frame) error {

	profs := report.Profile(f)
	sort.SliceStable(profs, func(i, j int) bool {
		return profs[i].MissingPct > profs[j].MissingPct
	})

	var names []string
	var vals plotter.Values
	for _, pr := range profs {
		if pr.Missing == 0 {
			continue
		}
		names = append(names, pr.Name)
		vals = append(vals, pr.MissingPct)
	}
	if len(vals) == 0 {
		p.log.Info().Msg("no missing values, skipping the missingness chart")
		return nil
	}

	plt := plot.New()
	plt.Title.Text = "Missing values by column"
	plt.Y.Label.Text = "Missing (%)"

	bars, err := plotter.NewBarChart(vals, vg.Points(12))
	if err != nil {
		return err
	}
	bars.Color = plotutil.Color(0)
	plt.Add(bars)
	plt.NominalX(names...)
	plt.X.Tick.Label.Rotation = 1.2
	plt.X.Tick.Label.XAlign = -0.9

	return plt.Save(9*vg.Inch, 5*vg.Inch, p.layout.Output("visuals", "missingness.png"))
}

// kmPlot draws one Kaplan-Meier curve per age group.
func (p *Pipeline) kmPlot(f *dframe.Frame) error {

	ag, err := f.Col("age_group")
	if err != nil {
		return err
	}

	rows, err := survivalRows(f, nil)
	if err != nil {
		return err
	}

	plt := plot.New()
	plt.Title.Text = "Survival by age group"
	plt.X.Label.Text = "Days"
	plt.Y.Label.Text = "Proportion surviving"
	plt.Y.Min, plt.Y.Max = 0, 1

	for gi, level := range ag.Levels() {

		var gr []int
		for _, i := range rows {
			if ag.Str[i] == level {
				gr = append(gr, i)
			}
		}
		if len(gr) == 0 {
			continue
		}

		ds, err := toDataset(f, gr, []string{"survival_days", "death_event"}, false)
		if err != nil {
			return err
		}
		sf, err := duration.NewSurvfuncRight(ds, "survival_days", "death_event", nil)
		if err != nil {
			return err
		}

		times := sf.Time()
		probs := sf.SurvProb()

		// Step function through the event times
		pts := make(plotter.XYs, 0, 2*len(times)+1)
		pts = append(pts, plotter.XY{X: 0, Y: 1})
		last := 1.0
		for i := range times {
			pts = append(pts, plotter.XY{X: times[i], Y: last})
			pts = append(pts, plotter.XY{X: times[i], Y: probs[i]})
			last = probs[i]
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(gi)
		plt.Add(line)
		plt.Legend.Add(fmt.Sprintf("%s (n=%d)", level, len(gr)), line)
	}

	plt.Legend.Top = true

	return plt.Save(6*vg.Inch, 4*vg.Inch, p.layout.Output("visuals", "km_age_group.png"))
}

// labHistograms draws a histogram for each key lab present.
func (p *Pipeline) labHistograms(f *dframe.Frame) error {

	for _, name := range histogramLabs {

		if !f.HasCol(name) {
			continue
		}
		c, err := f.Col(name)
		if err != nil {
			return err
		}
		if c.Type != dframe.Numeric {
			continue
		}

		var vals plotter.Values
		for i, v := range c.Num {
			if !c.Miss[i] {
				vals = append(vals, v)
			}
		}
		if len(vals) == 0 {
			continue
		}

		plt := plot.New()
		plt.Title.Text = name
		plt.X.Label.Text = name
		plt.Y.Label.Text = "Count"

		hist, err := plotter.NewHist(vals, 20)
		if err != nil {
			return err
		}
		hist.FillColor = plotutil.Color(2)
		plt.Add(hist)

		err = plt.Save(5*vg.Inch, 4*vg.Inch,
			p.layout.Output("visuals", "hist_"+name+".png"))
		if err != nil {
			return err
		}
	}

	return nil
}

// forestPlot draws the hazard ratios with their confidence intervals.
func (p *Pipeline) forestPlot(coxPath string) error {

	recs, err := readRecords(coxPath)
	if err != nil {
		return err
	}

	n := len(recs)
	pts := make(plotter.XYs, n)
	errs := make(plotter.XErrors, n)
	names := make([]string, n)

	for i, rec := range recs {
		// Rows are predictor, coef, se, hr, hr_lcb, hr_ucb, z, p
		hr, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return err
		}
		lcb, err := strconv.ParseFloat(rec[4], 64)
		if err != nil {
			return err
		}
		ucb, err := strconv.ParseFloat(rec[5], 64)
		if err != nil {
			return err
		}

		// Plot from the bottom up
		j := n - 1 - i
		names[j] = rec[0]
		pts[j] = plotter.XY{X: hr, Y: float64(j)}
		errs[j].Low = hr - lcb
		errs[j].High = ucb - hr
	}

	plt := plot.New()
	plt.Title.Text = "Hazard ratios"
	plt.X.Label.Text = "HR (95% CI)"

	bars, err := plotter.NewXErrorBars(struct {
		plotter.XYer
		plotter.XErrorer
	}{pts, errs})
	if err != nil {
		return err
	}
	plt.Add(bars)

	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	sc.Color = plotutil.Color(0)
	plt.Add(sc)

	ref := plotter.XYs{{X: 1, Y: -0.5}, {X: 1, Y: float64(n) - 0.5}}
	line, err := plotter.NewLine(ref)
	if err != nil {
		return err
	}
	line.Dashes = plotutil.Dashes(1)
	plt.Add(line)

	plt.NominalY(names...)

	return plt.Save(6*vg.Inch, vg.Length(1+float64(n)*0.4)*vg.Inch,
		p.layout.Output("visuals", "hr_forest.png"))
}
