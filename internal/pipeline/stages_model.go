package pipeline

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"

	"golang.org/x/exp/rand"

	"github.com/bioERGOtech/VERO-Code-Salerno/dframe"
	"github.com/bioERGOtech/VERO-Code-Salerno/duration"
	"github.com/bioERGOtech/VERO-Code-Salerno/glm"
	"github.com/bioERGOtech/VERO-Code-Salerno/relimp"
	"github.com/bioERGOtech/VERO-Code-Salerno/statmodel"
)

// fmtF formats a float for the model output tables.
func fmtF(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// varies reports whether a numeric column takes at least two values.
func varies(f *dframe.Frame, name string) bool {
	c, err := f.Col(name)
	if err != nil || c.Type != dframe.Numeric {
		return false
	}
	ref, hasRef := 0.0, false
	for i := range c.Num {
		if c.Miss[i] {
			continue
		}
		if !hasRef {
			ref, hasRef = c.Num[i], true
		} else if c.Num[i] != ref {
			return true
		}
	}
	return false
}

// Screen fits one model per candidate predictor for every outcome and
// keeps the predictors below the configured p-value threshold.
func (p *Pipeline) Screen() error {

	f, err := readTable(p.layout.Processed("analysis.csv"))
	if err != nil {
		return err
	}

	cands, err := candidatePredictors(f)
	if err != nil {
		return err
	}

	var screen, selected [][]string

	record := func(outcome, pred string, coef, pv float64) {
		sel := pv < p.cfg.ScreenPValue
		screen = append(screen, []string{
			outcome, pred, fmtF(coef), fmtF(pv), strconv.FormatBool(sel),
		})
		if sel {
			selected = append(selected, []string{outcome, pred})
		}
	}

	// Survival outcome, one Cox model per candidate
	for _, x := range cands {

		rows, err := survivalRows(f, []string{x})
		if err != nil {
			return err
		}
		ds, err := toDataset(f, rows, []string{"survival_days", "death_event", x}, false)
		if err != nil {
			return err
		}

		model, err := duration.NewPHReg(ds, "survival_days", "death_event", []string{x}, nil)
		if err != nil {
			return err
		}
		rslt, err := model.Fit()
		if err != nil {
			p.log.Warn().Str("predictor", x).Err(err).
				Msg("univariate Cox fit failed, predictor not selected")
			continue
		}
		// A predictor that is constant on the usable rows leaves the
		// fit without a covariance estimate.
		if rslt.PValues() == nil {
			p.log.Warn().Str("predictor", x).
				Msg("univariate Cox fit has no covariance, predictor not selected")
			continue
		}
		record("survival", x, rslt.Params()[0], rslt.PValues()[0])
	}

	// Binary outcomes, one logistic model per candidate
	for _, outcome := range binaryOutcomes {

		if !f.HasCol(outcome) || !varies(f, outcome) {
			continue
		}

		for _, x := range cands {

			rows, err := completeRows(f, []string{outcome, x})
			if err != nil {
				return err
			}
			ds, err := toDataset(f, rows, []string{outcome, x}, true)
			if err != nil {
				return err
			}

			cfg := glm.DefaultGLMConfig()
			cfg.Family = glm.NewFamily(glm.BinomialFamily)
			model, err := glm.NewGLM(ds, outcome, []string{"icept", x}, cfg)
			if err != nil {
				return err
			}
			rslt, err := model.Fit()
			if err != nil {
				p.log.Warn().Str("outcome", outcome).Str("predictor", x).
					Err(err).Msg("univariate logistic fit failed, predictor not selected")
				continue
			}
			if rslt.PValues() == nil {
				p.log.Warn().Str("outcome", outcome).Str("predictor", x).
					Msg("univariate logistic fit has no covariance, predictor not selected")
				continue
			}
			record(outcome, x, rslt.Params()[1], rslt.PValues()[1])
		}
	}

	err = writeRecords(p.layout.Output("models", "screening.csv"),
		[]string{"outcome", "predictor", "coef", "p", "selected"}, screen)
	if err != nil {
		return err
	}

	return writeRecords(p.layout.Output("models", "selected.csv"),
		[]string{"outcome", "predictor"}, selected)
}

// predictorsFor returns the screened predictors for an outcome,
// falling back to all candidates when nothing was selected.
func (p *Pipeline) predictorsFor(f *dframe.Frame, outcome string) ([]string, error) {

	preds, err := p.readSelected(outcome)
	if err != nil {
		return nil, err
	}
	if len(preds) > 0 {
		return preds, nil
	}

	p.log.Warn().Str("outcome", outcome).
		Msg("no predictors passed screening, using all candidates")

	return candidatePredictors(f)
}

// Survival fits the multivariable Cox and Weibull AFT models on the
// screened predictors.
func (p *Pipeline) Survival() error {

	f, err := readTable(p.layout.Processed("analysis.csv"))
	if err != nil {
		return err
	}
	preds, err := p.predictorsFor(f, "survival")
	if err != nil {
		return err
	}

	rows, err := survivalRows(f, preds)
	if err != nil {
		return err
	}
	cols := append([]string{"survival_days", "death_event"}, preds...)
	ds, err := toDataset(f, rows, cols, true)
	if err != nil {
		return err
	}

	// Cox proportional hazards
	ph, err := duration.NewPHReg(ds, "survival_days", "death_event", preds, nil)
	if err != nil {
		return err
	}
	cox, err := ph.Fit()
	if err != nil {
		return fmt.Errorf("Cox fit: %w", err)
	}

	err = os.WriteFile(p.layout.Output("models", "cox_summary.txt"),
		[]byte(cox.Summary().String()), 0o644)
	if err != nil {
		return err
	}

	var recs [][]string
	par, se := cox.Params(), cox.StdErr()
	z, pv := cox.ZScores(), cox.PValues()
	for j, name := range preds {
		hr := math.Exp(par[j])
		recs = append(recs, []string{
			name, fmtF(par[j]), fmtF(se[j]), fmtF(hr),
			fmtF(math.Exp(par[j] - 1.96*se[j])),
			fmtF(math.Exp(par[j] + 1.96*se[j])),
			fmtF(z[j]), fmtF(pv[j]),
		})
	}
	err = writeRecords(p.layout.Output("models", "cox_model.csv"),
		[]string{"predictor", "coef", "se", "hr", "hr_lcb", "hr_ucb", "z", "p"}, recs)
	if err != nil {
		return err
	}

	// Breslow baseline cumulative hazard
	times, cumhaz := ph.BaselineCumHaz(0, cox.Params())
	recs = recs[:0]
	for i := range times {
		recs = append(recs, []string{fmtF(times[i]), fmtF(cumhaz[i])})
	}
	err = writeRecords(p.layout.Output("models", "baseline_cumhaz.csv"),
		[]string{"time", "cumhaz"}, recs)
	if err != nil {
		return err
	}

	// Weibull accelerated failure time model, with an intercept
	aftPreds := append([]string{"icept"}, preds...)
	aft, err := duration.NewWeibullAFT(ds, "survival_days", "death_event", aftPreds, nil)
	if err != nil {
		return err
	}
	aftr, err := aft.Fit()
	if err != nil {
		return fmt.Errorf("AFT fit: %w", err)
	}

	err = os.WriteFile(p.layout.Output("models", "aft_summary.txt"),
		[]byte(aftr.Summary().String()), 0o644)
	if err != nil {
		return err
	}

	recs = recs[:0]
	apar, ase := aftr.Params(), aftr.StdErr()
	tr := aftr.TimeRatios()
	for j, name := range aftPreds {
		recs = append(recs, []string{
			name, fmtF(apar[j]), fmtF(ase[j]), fmtF(tr[j]),
		})
	}
	recs = append(recs, []string{"scale", fmtF(aftr.Scale()), "", ""})
	err = writeRecords(p.layout.Output("models", "aft_model.csv"),
		[]string{"predictor", "coef", "se", "time_ratio"}, recs)
	if err != nil {
		return err
	}

	// In-sample concordance of both models
	tm, st := ds.Col("survival_days"), ds.Col("death_event")
	coxC := relimp.CIndex(tm, st, relimp.Scores(ds, preds, cox.Params()), 0.99)

	aftLP := relimp.Scores(ds, aftPreds, aftr.Params()[:len(aftPreds)])
	for i := range aftLP {
		aftLP[i] = -aftLP[i]
	}
	aftC := relimp.CIndex(tm, st, aftLP, 0.99)

	return writeRecords(p.layout.Output("models", "cindex.csv"),
		[]string{"model", "cindex"},
		[][]string{{"cox", fmtF(coxC)}, {"weibull_aft", fmtF(aftC)}})
}

// elasticPenalty builds the penalty maps over the non-intercept
// predictors.
func (p *Pipeline) elasticPenalty(preds []string) (map[string]float64, map[string]float64) {

	l1 := make(map[string]float64, len(preds))
	l2 := make(map[string]float64, len(preds))
	for _, x := range preds {
		l1[x] = p.cfg.L1Weight
		l2[x] = p.cfg.L2Weight
	}

	return l1, l2
}

// Classify fits an elastic-net logistic model for every binary
// outcome and profiles the dispersion of the adverse-reaction counts.
func (p *Pipeline) Classify() error {

	f, err := readTable(p.layout.Processed("analysis.csv"))
	if err != nil {
		return err
	}

	summary := ""

	for _, outcome := range binaryOutcomes {

		if !f.HasCol(outcome) || !varies(f, outcome) {
			continue
		}

		preds, err := p.predictorsFor(f, outcome)
		if err != nil {
			return err
		}

		rows, err := completeRows(f, append([]string{outcome}, preds...))
		if err != nil {
			return err
		}
		ds, err := toDataset(f, rows, append([]string{outcome}, preds...), true)
		if err != nil {
			return err
		}

		xa := append([]string{"icept"}, preds...)

		cfg := glm.DefaultGLMConfig()
		cfg.Family = glm.NewFamily(glm.BinomialFamily)
		cfg.Scale = statmodel.Variance
		cfg.L1Penalty, cfg.L2Penalty = p.elasticPenalty(preds)

		model, err := glm.NewGLM(ds, outcome, xa, cfg)
		if err != nil {
			return err
		}
		rslt, err := model.Fit()
		if err != nil {
			return fmt.Errorf("elastic net for %s: %w", outcome, err)
		}

		par := rslt.Params()
		nonzero := 0
		var recs [][]string
		for j, name := range preds {
			b := par[j+1]
			if math.Abs(b) > 1e-8 {
				nonzero++
			}
			recs = append(recs, []string{name, fmtF(b), fmtF(math.Exp(b))})
		}
		err = writeRecords(p.layout.Output("models", "logit_"+outcome+".csv"),
			[]string{"predictor", "coef", "odds_ratio"}, recs)
		if err != nil {
			return err
		}

		auc := relimp.AUC(ds.Col(outcome), relimp.Scores(ds, xa, par))
		summary += fmt.Sprintf("%s: n=%d auc=%.4f nonzero=%d/%d\n",
			outcome, ds.NumObs(), auc, nonzero, len(preds))

		p.log.Info().Str("outcome", outcome).Float64("auc", auc).
			Int("nonzero", nonzero).Msg("elastic-net logistic fit")
	}

	if f.HasCol("adr_n_tot") && varies(f, "adr_n_tot") {
		if err := p.adrDispersion(f, &summary); err != nil {
			return err
		}
	}

	return os.WriteFile(p.layout.Output("models", "logistic_summary.txt"),
		[]byte(summary), 0o644)
}

// adrDispersion fits a quasi-Poisson model to the adverse-reaction
// counts and profiles the dispersion parameter.
func (p *Pipeline) adrDispersion(f *dframe.Frame, summary *string) error {

	preds, err := p.predictorsFor(f, "adr_severe")
	if err != nil {
		return err
	}

	rows, err := completeRows(f, append([]string{"adr_n_tot"}, preds...))
	if err != nil {
		return err
	}
	ds, err := toDataset(f, rows, append([]string{"adr_n_tot"}, preds...), true)
	if err != nil {
		return err
	}

	cfg := glm.DefaultGLMConfig()
	cfg.Family = glm.NewFamily(glm.QuasiPoissonFamily)
	model, err := glm.NewGLM(ds, "adr_n_tot", append([]string{"icept"}, preds...), cfg)
	if err != nil {
		return err
	}
	rslt, err := model.Fit()
	if err != nil {
		return fmt.Errorf("quasi-Poisson fit: %w", err)
	}

	prof := glm.NewScaleProfiler(rslt)
	lo, hi := prof.ConfInt(0.95)

	*summary += fmt.Sprintf("adr_n_tot dispersion: mle=%.4f ci=(%.4f, %.4f)\n",
		prof.ScaleMLE(), lo, hi)

	return writeRecords(p.layout.Output("models", "adr_dispersion.csv"),
		[]string{"scale_mle", "lcb", "ucb"},
		[][]string{{fmtF(prof.ScaleMLE()), fmtF(lo), fmtF(hi)}})
}

// Rank combines the relative importance of the predictors across the
// survival and mortality models.
func (p *Pipeline) Rank() error {

	f, err := readTable(p.layout.Processed("analysis.csv"))
	if err != nil {
		return err
	}
	preds, err := p.predictorsFor(f, "survival")
	if err != nil {
		return err
	}

	rc := &relimp.Config{
		Bootstrap:     p.cfg.Bootstrap,
		Seed:          p.cfg.Seed,
		L1Weight:      p.cfg.L1Weight,
		L2Weight:      p.cfg.L2Weight,
		TruncQuantile: 0.99,
	}

	rows, err := survivalRows(f, preds)
	if err != nil {
		return err
	}
	cols := append([]string{"survival_days", "death_event"}, preds...)
	ds, err := toDataset(f, rows, cols, true)
	if err != nil {
		return err
	}

	coxRI, err := relimp.RankCox(ds, "survival_days", "death_event", preds, rc)
	if err != nil {
		return fmt.Errorf("survival ranking: %w", err)
	}

	ri := make(map[string][2]float64)
	for _, r := range coxRI {
		ri[r.Name] = [2]float64{r.RI, math.NaN()}
	}

	if varies(f, "death_event") {
		lc := *rc
		lc.InterceptVar = "icept"
		logitRI, err := relimp.RankLogistic(ds, "death_event", preds, &lc)
		if err != nil {
			return fmt.Errorf("mortality ranking: %w", err)
		}
		for _, r := range logitRI {
			v := ri[r.Name]
			v[1] = r.RI
			ri[r.Name] = v
		}
	}

	type row struct {
		name string
		cox  float64
		lg   float64
		mean float64
	}
	var out []row
	for name, v := range ri {
		r := row{name: name, cox: v[0], lg: v[1]}
		if math.IsNaN(v[1]) {
			r.mean = v[0]
		} else {
			r.mean = (v[0] + v[1]) / 2
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].mean != out[j].mean {
			return out[i].mean > out[j].mean
		}
		return out[i].name < out[j].name
	})

	var recs [][]string
	for i, r := range out {
		lg := ""
		if !math.IsNaN(r.lg) {
			lg = fmtF(r.lg)
		}
		recs = append(recs, []string{
			strconv.Itoa(i + 1), r.name, fmtF(r.cox), lg, fmtF(r.mean),
		})
	}

	return writeRecords(p.layout.Report("relative_importance.csv"),
		[]string{"rank", "predictor", "ri_survival", "ri_mortality", "ri"}, recs)
}

// Validate cross-validates the fitted models and bootstraps the
// headline concordance.
func (p *Pipeline) Validate() error {

	f, err := readTable(p.layout.Processed("analysis.csv"))
	if err != nil {
		return err
	}
	preds, err := p.predictorsFor(f, "survival")
	if err != nil {
		return err
	}

	rows, err := survivalRows(f, preds)
	if err != nil {
		return err
	}
	cols := append([]string{"survival_days", "death_event"}, preds...)
	ds, err := toDataset(f, rows, cols, true)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(p.cfg.Seed))
	var recs [][]string

	coxCV, aftCV := p.crossValidateSurvival(ds, preds, rng)
	recs = append(recs,
		[]string{"cox", "cv_cindex", fmtF(coxCV), "", ""},
		[]string{"weibull_aft", "cv_cindex", fmtF(aftCV), "", ""})

	for _, outcome := range binaryOutcomes {
		if !f.HasCol(outcome) || !varies(f, outcome) || outcome == "death_event" {
			continue
		}
		brows, err := completeRows(f, append([]string{outcome}, preds...))
		if err != nil {
			return err
		}
		bds, err := toDataset(f, brows, append([]string{outcome}, preds...), true)
		if err != nil {
			return err
		}
		auc, brier := p.crossValidateLogistic(bds, outcome, preds, rng)
		recs = append(recs,
			[]string{"logit_" + outcome, "cv_auc", fmtF(auc), "", ""},
			[]string{"logit_" + outcome, "cv_brier", fmtF(brier), "", ""})
	}

	if varies(f, "death_event") {
		auc, brier := p.crossValidateLogistic(ds, "death_event", preds, rng)
		recs = append(recs,
			[]string{"logit_death_event", "cv_auc", fmtF(auc), "", ""},
			[]string{"logit_death_event", "cv_brier", fmtF(brier), "", ""})
	}

	c, lo, hi := p.bootstrapCIndex(ds, preds, rng)
	recs = append(recs, []string{"cox", "cindex", fmtF(c), fmtF(lo), fmtF(hi)})

	return writeRecords(p.layout.Output("validation", "validation.csv"),
		[]string{"model", "metric", "value", "lcb", "ucb"}, recs)
}

// subset builds a dataset over a subset of observation indices.
func subset(ds statmodel.Dataset, ix []int) statmodel.Dataset {

	src := ds.Data()
	cols := make([][]statmodel.Dtype, len(src))
	for j := range src {
		x := make([]statmodel.Dtype, len(ix))
		for i, k := range ix {
			x[i] = src[j][k]
		}
		cols[j] = x
	}

	return statmodel.NewDataset(cols, ds.Names())
}

// crossValidateSurvival returns the mean out-of-fold concordance of
// the Cox and AFT models.
func (p *Pipeline) crossValidateSurvival(ds statmodel.Dataset, preds []string, rng *rand.Rand) (float64, float64) {

	folds := dframe.KFold(ds.NumObs(), p.cfg.CVFolds, rng)

	var coxSum, aftSum float64
	var coxN, aftN int

	for _, fold := range folds {

		train, test := dframe.TrainTest(ds.NumObs(), fold)
		tr, te := subset(ds, train), subset(ds, test)

		tm, st := te.Col("survival_days"), te.Col("death_event")

		ph, err := duration.NewPHReg(tr, "survival_days", "death_event", preds, nil)
		if err == nil {
			if rslt, err := ph.Fit(); err == nil {
				c := relimp.CIndex(tm, st, relimp.Scores(te, preds, rslt.Params()), 0.99)
				if !math.IsNaN(c) {
					coxSum += c
					coxN++
				}
			}
		}

		aftPreds := append([]string{"icept"}, preds...)
		aft, err := duration.NewWeibullAFT(tr, "survival_days", "death_event", aftPreds, nil)
		if err == nil {
			if rslt, err := aft.Fit(); err == nil {
				lp := relimp.Scores(te, aftPreds, rslt.Params()[:len(aftPreds)])
				for i := range lp {
					lp[i] = -lp[i]
				}
				c := relimp.CIndex(tm, st, lp, 0.99)
				if !math.IsNaN(c) {
					aftSum += c
					aftN++
				}
			}
		}
	}

	cox, aftc := math.NaN(), math.NaN()
	if coxN > 0 {
		cox = coxSum / float64(coxN)
	}
	if aftN > 0 {
		aftc = aftSum / float64(aftN)
	}

	return cox, aftc
}

// crossValidateLogistic returns the mean out-of-fold AUC and Brier
// score of an unpenalized logistic model.
func (p *Pipeline) crossValidateLogistic(ds statmodel.Dataset, outcome string, preds []string, rng *rand.Rand) (float64, float64) {

	xa := append([]string{"icept"}, preds...)
	folds := dframe.KFold(ds.NumObs(), p.cfg.CVFolds, rng)

	var aucSum, brierSum float64
	var n int

	for _, fold := range folds {

		train, test := dframe.TrainTest(ds.NumObs(), fold)
		tr, te := subset(ds, train), subset(ds, test)

		cfg := glm.DefaultGLMConfig()
		cfg.Family = glm.NewFamily(glm.BinomialFamily)
		model, err := glm.NewGLM(tr, outcome, xa, cfg)
		if err != nil {
			continue
		}
		rslt, err := model.Fit()
		if err != nil {
			continue
		}

		y := te.Col(outcome)
		lp := relimp.Scores(te, xa, rslt.Params())
		auc := relimp.AUC(y, lp)
		if math.IsNaN(auc) {
			continue
		}
		aucSum += auc
		brierSum += relimp.BrierScore(y, relimp.LogisticProbs(lp))
		n++
	}

	if n == 0 {
		return math.NaN(), math.NaN()
	}
	return aucSum / float64(n), brierSum / float64(n)
}

// bootstrapCIndex returns the full-data Cox concordance with a
// percentile bootstrap interval.
func (p *Pipeline) bootstrapCIndex(ds statmodel.Dataset, preds []string, rng *rand.Rand) (float64, float64, float64) {

	fit := func(d statmodel.Dataset) (float64, error) {
		ph, err := duration.NewPHReg(d, "survival_days", "death_event", preds, nil)
		if err != nil {
			return 0, err
		}
		rslt, err := ph.Fit()
		if err != nil {
			return 0, err
		}
		tm, st := d.Col("survival_days"), d.Col("death_event")
		return relimp.CIndex(tm, st, relimp.Scores(d, preds, rslt.Params()), 0.99), nil
	}

	full, err := fit(ds)
	if err != nil {
		return math.NaN(), math.NaN(), math.NaN()
	}

	n := ds.NumObs()
	var cs []float64
	for b := 0; b < p.cfg.Bootstrap; b++ {
		ix := make([]int, n)
		for i := range ix {
			ix[i] = rng.Intn(n)
		}
		c, err := fit(subset(ds, ix))
		if err != nil || math.IsNaN(c) {
			continue
		}
		cs = append(cs, c)
	}

	if len(cs) == 0 {
		return full, math.NaN(), math.NaN()
	}
	sort.Float64s(cs)
	lo := cs[int(0.025*float64(len(cs)))]
	hi := cs[int(math.Min(0.975*float64(len(cs)), float64(len(cs)-1)))]

	return full, lo, hi
}
