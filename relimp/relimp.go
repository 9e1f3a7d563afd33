package relimp

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/stat"

	"github.com/bioERGOtech/VERO-Code-Salerno/duration"
	"github.com/bioERGOtech/VERO-Code-Salerno/glm"
	"github.com/bioERGOtech/VERO-Code-Salerno/statmodel"
)

// Config holds the settings of the relative-importance calculation.
type Config struct {

	// Bootstrap is the number of bootstrap replicates used for the
	// selection-frequency term.
	Bootstrap int

	// Seed drives the bootstrap resampling.
	Seed uint64

	// L1Weight and L2Weight are the elastic-net penalty weights
	// applied to every predictor in the bootstrap refits.
	L1Weight float64
	L2Weight float64

	// TruncQuantile is the quantile of observed times at which the
	// concordance calculation is truncated.
	TruncQuantile float64

	// InterceptVar names a constant column included in the logistic
	// models but excluded from the ranking and from the penalties.
	InterceptVar string
}

// DefaultConfig returns the default relative-importance settings.
func DefaultConfig() *Config {
	return &Config{
		Bootstrap:     200,
		Seed:          42,
		L1Weight:      0.1,
		L2Weight:      0.1,
		TruncQuantile: 0.99,
	}
}

// Row is the relative importance of one predictor.
type Row struct {

	// Name is the predictor name.
	Name string

	// StdCoef is |coef| times the standard deviation of the
	// predictor, from the unpenalized full model.
	StdCoef float64

	// SelFreq is the fraction of bootstrap elastic-net refits in
	// which the predictor has a nonzero coefficient.
	SelFreq float64

	// DeltaPred is the loss in predictive strength (AUC or C-index)
	// when the predictor is dropped from the full model.
	DeltaPred float64

	// RI is the combined score: the mean of the three components
	// after scaling each to a maximum of 1 across predictors.
	RI float64
}

// resample returns a bootstrap copy of the dataset.
func resample(data statmodel.Dataset, rng *rand.Rand) statmodel.Dataset {

	src := data.Data()
	n := data.NumObs()

	ix := make([]int, n)
	for i := range ix {
		ix[i] = rng.Intn(n)
	}

	cols := make([][]statmodel.Dtype, len(src))
	for j := range src {
		col := make([]statmodel.Dtype, n)
		for i, k := range ix {
			col[i] = src[j][k]
		}
		cols[j] = col
	}

	return statmodel.NewDataset(cols, data.Names())
}

// colSD returns the standard deviation of a named column.
func colSD(data statmodel.Dataset, name string) float64 {
	return math.Sqrt(stat.Variance(data.Col(name), nil))
}

// penalty builds a constant penalty map over the predictors.
func penalty(predictors []string, w float64) map[string]float64 {
	if w == 0 {
		return nil
	}
	m := make(map[string]float64, len(predictors))
	for _, p := range predictors {
		m[p] = w
	}
	return m
}

// drop returns the predictor list without the named element.
func drop(predictors []string, name string) []string {
	var out []string
	for _, p := range predictors {
		if p != name {
			out = append(out, p)
		}
	}
	return out
}

// withIntercept prepends the intercept variable, when configured, to
// a predictor list.
func (config *Config) withIntercept(predictors []string) []string {
	if config.InterceptVar == "" {
		return predictors
	}
	return append([]string{config.InterceptVar}, predictors...)
}

// combine fills the RI column: each component is scaled by its
// maximum over the rows, negative drop-one losses are clipped to
// zero, and the RI is the mean of the scaled components.  Rows are
// sorted by decreasing RI, ties broken by name.
func combine(rows []Row) {

	var mc, ms, md float64
	for i := range rows {
		if rows[i].DeltaPred < 0 {
			rows[i].DeltaPred = 0
		}
		mc = math.Max(mc, rows[i].StdCoef)
		ms = math.Max(ms, rows[i].SelFreq)
		md = math.Max(md, rows[i].DeltaPred)
	}

	sc := func(v, mx float64) float64 {
		if mx <= 0 {
			return 0
		}
		return v / mx
	}

	for i := range rows {
		rows[i].RI = (sc(rows[i].StdCoef, mc) + sc(rows[i].SelFreq, ms) +
			sc(rows[i].DeltaPred, md)) / 3
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].RI != rows[j].RI {
			return rows[i].RI > rows[j].RI
		}
		return rows[i].Name < rows[j].Name
	})
}

// Scores returns the linear predictors of a fitted linear-index
// model over the full dataset.
func Scores(data statmodel.Dataset, predictors []string, params []float64) []float64 {

	n := data.NumObs()
	lp := make([]float64, n)
	for j, name := range predictors {
		col := data.Col(name)
		for i := 0; i < n; i++ {
			lp[i] += params[j] * col[i]
		}
	}

	return lp
}

// fitLogistic fits an unpenalized logistic regression and returns the
// coefficients.
func fitLogistic(data statmodel.Dataset, outcome string, predictors []string) ([]float64, error) {

	config := glm.DefaultGLMConfig()
	config.Family = glm.NewFamily(glm.BinomialFamily)

	model, err := glm.NewGLM(data, outcome, predictors, config)
	if err != nil {
		return nil, err
	}
	rslt, err := model.Fit()
	if err != nil {
		return nil, err
	}

	return rslt.Params(), nil
}

// RankLogistic ranks the predictors of a binary outcome by relative
// importance under a logistic regression model.
func RankLogistic(data statmodel.Dataset, outcome string, predictors []string, config *Config) ([]Row, error) {

	if config == nil {
		config = DefaultConfig()
	}
	rng := rand.New(rand.NewSource(config.Seed))

	xa := config.withIntercept(predictors)
	off := len(xa) - len(predictors)

	par, err := fitLogistic(data, outcome, xa)
	if err != nil {
		return nil, fmt.Errorf("full model: %w", err)
	}

	y := data.Col(outcome)
	aucFull := AUC(y, Scores(data, xa, par))

	rows := make([]Row, len(predictors))
	for j, name := range predictors {
		rows[j] = Row{
			Name:    name,
			StdCoef: math.Abs(par[j+off]) * colSD(data, name),
		}
	}

	// Stability: elastic-net refits on bootstrap samples
	for b := 0; b < config.Bootstrap; b++ {

		bd := resample(data, rng)

		cfg := glm.DefaultGLMConfig()
		cfg.Family = glm.NewFamily(glm.BinomialFamily)
		cfg.Scale = statmodel.Variance
		cfg.L1Penalty = penalty(predictors, config.L1Weight)
		cfg.L2Penalty = penalty(predictors, config.L2Weight)

		model, err := glm.NewGLM(bd, outcome, xa, cfg)
		if err != nil {
			return nil, err
		}
		rslt, err := model.Fit()
		if err != nil {
			return nil, err
		}
		bp := rslt.Params()
		for j := range rows {
			if math.Abs(bp[j+off]) > 1e-8 {
				rows[j].SelFreq += 1 / float64(config.Bootstrap)
			}
		}
	}

	// Predictive strength: drop-one loss in AUC
	for j := range rows {
		red := config.withIntercept(drop(predictors, rows[j].Name))
		if len(red) == off {
			rows[j].DeltaPred = aucFull - 0.5
			continue
		}
		rp, err := fitLogistic(data, outcome, red)
		if err != nil {
			return nil, fmt.Errorf("dropping %s: %w", rows[j].Name, err)
		}
		rows[j].DeltaPred = aucFull - AUC(y, Scores(data, red, rp))
	}

	combine(rows)

	return rows, nil
}

// fitCox fits an unpenalized Cox model and returns the coefficients.
func fitCox(data statmodel.Dataset, time, status string, predictors []string) ([]float64, error) {

	model, err := duration.NewPHReg(data, time, status, predictors, nil)
	if err != nil {
		return nil, err
	}
	rslt, err := model.Fit()
	if err != nil {
		return nil, err
	}

	return rslt.Params(), nil
}

// RankCox ranks the predictors of a right-censored outcome by
// relative importance under a proportional hazards model.
func RankCox(data statmodel.Dataset, time, status string, predictors []string, config *Config) ([]Row, error) {

	if config == nil {
		config = DefaultConfig()
	}
	rng := rand.New(rand.NewSource(config.Seed))

	par, err := fitCox(data, time, status, predictors)
	if err != nil {
		return nil, fmt.Errorf("full model: %w", err)
	}

	tm := data.Col(time)
	st := data.Col(status)
	cFull := CIndex(tm, st, Scores(data, predictors, par), config.TruncQuantile)

	rows := make([]Row, len(predictors))
	for j, name := range predictors {
		rows[j] = Row{
			Name:    name,
			StdCoef: math.Abs(par[j]) * colSD(data, name),
		}
	}

	for b := 0; b < config.Bootstrap; b++ {

		bd := resample(data, rng)

		cfg := duration.DefaultPHRegConfig()
		cfg.L1Penalty = penalty(predictors, config.L1Weight)
		cfg.L2Penalty = penalty(predictors, config.L2Weight)

		model, err := duration.NewPHReg(bd, time, status, predictors, cfg)
		if err != nil {
			return nil, err
		}
		rslt, err := model.Fit()
		if err != nil {
			return nil, err
		}
		bp := rslt.Params()
		for j := range rows {
			if math.Abs(bp[j]) > 1e-8 {
				rows[j].SelFreq += 1 / float64(config.Bootstrap)
			}
		}
	}

	for j := range rows {
		red := drop(predictors, rows[j].Name)
		if len(red) == 0 {
			rows[j].DeltaPred = cFull - 0.5
			continue
		}
		rp, err := fitCox(data, time, status, red)
		if err != nil {
			return nil, fmt.Errorf("dropping %s: %w", rows[j].Name, err)
		}
		rows[j].DeltaPred = cFull - CIndex(tm, st, Scores(data, red, rp), config.TruncQuantile)
	}

	combine(rows)

	return rows, nil
}

// WriteCSV writes the ranking as CSV, in rank order.
func WriteCSV(w io.Writer, rows []Row) error {

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"rank", "predictor", "std_coef", "sel_freq", "delta_pred", "ri"}); err != nil {
		return err
	}
	for i, r := range rows {
		rec := []string{
			strconv.Itoa(i + 1),
			r.Name,
			strconv.FormatFloat(r.StdCoef, 'f', 6, 64),
			strconv.FormatFloat(r.SelFreq, 'f', 4, 64),
			strconv.FormatFloat(r.DeltaPred, 'f', 6, 64),
			strconv.FormatFloat(r.RI, 'f', 6, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()

	return cw.Error()
}

// WriteCSVFile writes the ranking to a CSV file.
func WriteCSVFile(path string, rows []Row) error {

	fid, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fid.Close()

	return WriteCSV(fid, rows)
}
