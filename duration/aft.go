package duration

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/bioERGOtech/VERO-Code-Salerno/statmodel"
)

// AFTParameter represents the parameters of a Weibull AFT model: the
// regression coefficients followed by the log of the scale parameter.
type AFTParameter struct {
	coeff []float64
}

// GetCoeff returns the array of model coefficients.
func (p *AFTParameter) GetCoeff() []float64 {
	return p.coeff
}

// SetCoeff sets the array of model coefficients.
func (p *AFTParameter) SetCoeff(coeff []float64) {
	p.coeff = coeff
}

// Clone returns a deep copy of the parameter value.
func (p *AFTParameter) Clone() statmodel.Parameter {
	q := make([]float64, len(p.coeff))
	copy(q, p.coeff)
	return &AFTParameter{q}
}

// WeibullAFTConfig defines configuration parameters for a Weibull
// accelerated failure time model.
type WeibullAFTConfig struct {

	// Start contains starting values for the regression
	// coefficients, followed by the log scale parameter.
	Start []float64

	// WeightVar is the name of the case weight variable.
	WeightVar string

	// OptMethod is the Gonum optimization used to fit the model.
	OptMethod optimize.Method

	// OptSettings configures the Gonum optimization routine.
	OptSettings *optimize.Settings
}

// DefaultWeibullAFTConfig returns a default configuration for a
// Weibull AFT model.
func DefaultWeibullAFTConfig() *WeibullAFTConfig {

	return &WeibullAFTConfig{
		OptMethod: &optimize.BFGS{},
		OptSettings: &optimize.Settings{
			GradientThreshold: 1e-6,
		},
	}
}

// WeibullAFT fits an accelerated failure time model with Weibull
// event times to right censored duration data.  The log event times
// follow a linear model with extreme value errors, so the
// coefficients are interpreted on the log time scale, with positive
// coefficients extending the time to the event.
type WeibullAFT struct {

	data     [][]statmodel.Dtype
	varnames []string

	timepos   int
	statuspos int
	weightpos int
	xpos      []int

	// The log of the event or censoring times
	logtime []float64

	start []float64

	optmethod   optimize.Method
	optsettings *optimize.Settings
}

// NewWeibullAFT returns a WeibullAFT value for the given data.  Config
// may be nil, in which case default settings are used.
func NewWeibullAFT(data statmodel.Dataset, time, status string, predictors []string, config *WeibullAFTConfig) (*WeibullAFT, error) {

	if config == nil {
		config = DefaultWeibullAFTConfig()
	}

	// Copy the outer slice so that the model does not alter the
	// caller's dataset.
	dcols := make([][]statmodel.Dtype, len(data.Data()))
	copy(dcols, data.Data())

	aft := &WeibullAFT{
		data:        dcols,
		varnames:    data.Names(),
		start:       config.Start,
		optmethod:   config.OptMethod,
		optsettings: config.OptSettings,
	}

	aft.timepos = data.Pos(time)
	if aft.timepos == -1 {
		return nil, fmt.Errorf("time variable '%s' not found", time)
	}
	aft.statuspos = data.Pos(status)
	if aft.statuspos == -1 {
		return nil, fmt.Errorf("status variable '%s' not found", status)
	}
	aft.weightpos = -1
	if config.WeightVar != "" {
		aft.weightpos = data.Pos(config.WeightVar)
		if aft.weightpos == -1 {
			return nil, fmt.Errorf("weight variable '%s' not found", config.WeightVar)
		}
	}

	for _, xna := range predictors {
		pos := data.Pos(xna)
		if pos == -1 {
			return nil, fmt.Errorf("variable '%s' not found", xna)
		}
		aft.xpos = append(aft.xpos, pos)
	}

	aft.logtime = make([]float64, len(dcols[aft.timepos]))
	for i, t := range dcols[aft.timepos] {
		if t <= 0 {
			return nil, fmt.Errorf("observation %d has a non-positive event time", i)
		}
		aft.logtime[i] = math.Log(float64(t))
	}

	return aft, nil
}

// NumParams returns the number of model parameters, the regression
// coefficients plus the log scale parameter.
func (aft *WeibullAFT) NumParams() int {
	return len(aft.xpos) + 1
}

// NumObs returns the number of observations used to fit the model.
func (aft *WeibullAFT) NumObs() int {
	return len(aft.logtime)
}

// Xpos returns the positions of the covariates in the model's dataset.
func (aft *WeibullAFT) Xpos() []int {
	return aft.xpos
}

// Dataset returns the columns of the dataset used to fit the model.
func (aft *WeibullAFT) Dataset() [][]statmodel.Dtype {
	return aft.data
}

// linpred writes the linear predictor evaluated at coeff into lp.
func (aft *WeibullAFT) linpred(coeff []float64, lp []float64) {

	zero(lp)
	for j, k := range aft.xpos {
		x := aft.data[k]
		for i := range lp {
			lp[i] += coeff[j] * float64(x[i])
		}
	}
}

// LogLike returns the log-likelihood at the given parameter value.
// The resulting value includes all normalizing constants.
func (aft *WeibullAFT) LogLike(param statmodel.Parameter, exact bool) float64 {

	coeff := param.GetCoeff()
	nvar := len(aft.xpos)
	lsigma := coeff[nvar]
	sigma := math.Exp(lsigma)

	status := aft.data[aft.statuspos]

	lp := make([]float64, aft.NumObs())
	aft.linpred(coeff, lp)

	var ll float64
	for i := range lp {

		w := float64(1)
		if aft.weightpos != -1 {
			w = float64(aft.data[aft.weightpos][i])
		}

		z := (aft.logtime[i] - lp[i]) / sigma
		if status[i] == 1 {
			ll += w * (z - lsigma)
		}
		ll -= w * math.Exp(z)
	}

	return ll
}

// Score computes the score vector at the given parameter value,
// which is written into the slice score.
func (aft *WeibullAFT) Score(param statmodel.Parameter, score []float64) {

	coeff := param.GetCoeff()
	nvar := len(aft.xpos)
	lsigma := coeff[nvar]
	sigma := math.Exp(lsigma)

	status := aft.data[aft.statuspos]

	lp := make([]float64, aft.NumObs())
	aft.linpred(coeff, lp)

	zero(score)
	for i := range lp {

		w := float64(1)
		if aft.weightpos != -1 {
			w = float64(aft.data[aft.weightpos][i])
		}

		z := (aft.logtime[i] - lp[i]) / sigma
		u := math.Exp(z)
		d := float64(status[i])

		for j, k := range aft.xpos {
			score[j] += w * (u - d) * float64(aft.data[k][i]) / sigma
		}
		score[nvar] += w * (z*(u-d) - d)
	}
}

// Hessian computes the Hessian matrix of the log-likelihood at the
// given parameter value, which is written into the slice hess.  The
// observed and expected Hessians coincide here.
func (aft *WeibullAFT) Hessian(param statmodel.Parameter, ht statmodel.HessType, hess []float64) {

	coeff := param.GetCoeff()
	nvar := len(aft.xpos)
	np := nvar + 1
	lsigma := coeff[nvar]
	sigma := math.Exp(lsigma)

	status := aft.data[aft.statuspos]

	lp := make([]float64, aft.NumObs())
	aft.linpred(coeff, lp)

	zero(hess)
	for i := range lp {

		w := float64(1)
		if aft.weightpos != -1 {
			w = float64(aft.data[aft.weightpos][i])
		}

		z := (aft.logtime[i] - lp[i]) / sigma
		u := math.Exp(z)
		d := float64(status[i])

		for j1, k1 := range aft.xpos {
			x1 := float64(aft.data[k1][i])
			for j2, k2 := range aft.xpos {
				x2 := float64(aft.data[k2][i])
				hess[j1*np+j2] -= w * u * x1 * x2 / (sigma * sigma)
			}

			// Cross term between the coefficients and the log scale
			v := -w * x1 * (z*u + u - d) / sigma
			hess[j1*np+nvar] += v
			hess[nvar*np+j1] += v
		}

		hess[nvar*np+nvar] -= w * (z*(u-d) + z*z*u)
	}
}

// WeibullAFTResults describes the results of a fitted Weibull AFT model.
type WeibullAFTResults struct {
	statmodel.BaseResults
}

// Scale returns the estimated scale parameter of the extreme value
// error distribution.  A scale below 1 corresponds to a hazard that
// increases with time.
func (rslt *WeibullAFTResults) Scale() float64 {
	p := rslt.Params()
	return math.Exp(p[len(p)-1])
}

// TimeRatios returns exp(coefficient) for each covariate, the
// multiplicative effect of a unit covariate change on the event time.
func (rslt *WeibullAFTResults) TimeRatios() []float64 {

	p := rslt.Params()
	tr := make([]float64, len(p)-1)
	for j := range tr {
		tr[j] = math.Exp(p[j])
	}
	return tr
}

// Fit fits the model to the data.
func (aft *WeibullAFT) Fit() (*WeibullAFTResults, error) {

	np := aft.NumParams()

	if aft.start == nil {
		aft.start = make([]float64, np)
	}
	if len(aft.start) != np {
		return nil, fmt.Errorf("start vector has length %d, expected %d", len(aft.start), np)
	}

	p := optimize.Problem{
		Func: func(x []float64) float64 {
			return -aft.LogLike(&AFTParameter{x}, false)
		},
		Grad: func(grad, x []float64) {
			if len(grad) != len(x) {
				grad = make([]float64, len(x))
			}
			aft.Score(&AFTParameter{x}, grad)
			negative(grad)
		},
	}

	var xna []string
	for _, k := range aft.xpos {
		xna = append(xna, aft.varnames[k])
	}
	xna = append(xna, "log(scale)")

	optrslt, err := optimize.Minimize(p, aft.start, aft.optsettings, aft.optmethod)
	if err != nil {
		if optrslt == nil {
			return nil, err
		}

		// Return partial results with an error
		results := &WeibullAFTResults{
			BaseResults: statmodel.NewBaseResults(aft, -optrslt.F, optrslt.X, xna, nil),
		}
		return results, err
	}
	if err = optrslt.Status.Err(); err != nil {
		return nil, err
	}

	param := make([]float64, len(optrslt.X))
	copy(param, optrslt.X)

	ll := -optrslt.F
	vcov, _ := statmodel.GetVcov(aft, &AFTParameter{param})

	results := &WeibullAFTResults{
		BaseResults: statmodel.NewBaseResults(aft, ll, param, xna, vcov),
	}

	return results, nil
}

// WeibullAFTSummary summarizes a fitted Weibull accelerated failure
// time model.
type WeibullAFTSummary struct {

	// The model
	aft *WeibullAFT

	// The results structure
	results *WeibullAFTResults

	// Messages that are appended to the table
	messages []string
}

// Summary displays a summary table of the model results.
func (rslt *WeibullAFTResults) Summary() *WeibullAFTSummary {

	aft := rslt.Model().(*WeibullAFT)

	return &WeibullAFTSummary{
		aft:     aft,
		results: rslt,
	}
}

// String returns a string representation of a summary table for the model.
func (s *WeibullAFTSummary) String() string {

	aft := s.aft
	sum := &statmodel.SummaryTable{
		Msg: s.messages,
	}

	sum.Title = "Weibull accelerated failure time regression analysis"

	var e int
	status := aft.data[aft.statuspos]
	for i := range status {
		if status[i] == 1 {
			e++
		}
	}

	sum.Top = append(sum.Top, fmt.Sprintf("  Sample size: %10d", aft.NumObs()))
	sum.Top = append(sum.Top, fmt.Sprintf("  Events:      %10d", e))
	sum.Top = append(sum.Top, fmt.Sprintf("  Scale:       %10.4f", s.results.Scale()))

	fs := func(x interface{}, h string) []string {
		y := x.([]string)
		m := len(h)
		for i := range y {
			if len(y[i]) > m {
				m = len(y[i])
			}
		}
		var z []string
		for i := range y {
			c := fmt.Sprintf("%%-%ds", m)
			z = append(z, fmt.Sprintf(c, y[i]))
		}
		return z
	}

	fn := func(x interface{}, h string) []string {
		y := x.([]float64)
		var s []string
		for i := range y {
			s = append(s, fmt.Sprintf("%10.4f", y[i]))
		}
		return s
	}

	var tr []float64
	for _, c := range s.results.Params() {
		tr = append(tr, math.Exp(c))
	}

	if s.results.StdErr() != nil {
		sum.ColNames = []string{"Variable   ", "Coefficient", "SE", "TR", "LCB", "UCB", "Z-score", "P-value"}
		sum.ColFmt = []statmodel.Fmter{fs, fn, fn, fn, fn, fn, fn, fn}

		// Create estimate and CI for the time ratio
		var lcb, ucb []float64
		for j := range s.results.Params() {
			lcb = append(lcb, math.Exp(s.results.Params()[j]-2*s.results.StdErr()[j]))
			ucb = append(ucb, math.Exp(s.results.Params()[j]+2*s.results.StdErr()[j]))
		}
		sum.Cols = []interface{}{s.results.Names(), s.results.Params(), s.results.StdErr(), tr, lcb, ucb,
			s.results.ZScores(), s.results.PValues()}
	} else {
		sum.ColNames = []string{"Variable   ", "Coefficient", "TR"}
		sum.ColFmt = []statmodel.Fmter{fs, fn, fn}
		sum.Cols = []interface{}{s.results.Names(), s.results.Params(), tr}
	}

	return sum.String()
}
