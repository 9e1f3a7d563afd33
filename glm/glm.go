package glm

import (
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/bioERGOtech/VERO-Code-Salerno/statmodel"
)

// DispersionForm defines how the GLM dispersion parameter is handled.
type DispersionForm int

// DispersionFree estimates the dispersion from the data,
// DispersionFixed holds it at a provided value.
const (
	DispersionFree DispersionForm = iota
	DispersionFixed
)

// GLM describes a generalized linear model.
type GLM struct {

	// The names of the variables.  The order agrees with the order of 'data'.
	varnames []string

	// The data to which the model is fit
	data [][]statmodel.Dtype

	// Positions of the covariates
	xpos []int

	// Position of the outcome variable
	ypos int

	// Position of the offset variable, -1 if not present.
	offsetpos int

	// Position of the weight variable, -1 if not present.
	weightpos int

	// The GLM family
	fam *Family

	// The GLM link function
	link *Link

	// The GLM variance function
	vari *Variance

	// Either IRLS (default if L1 weights are not present),
	// coordinate (if L1 weights are present), or gradient.
	fitMethod string

	// Starting values, optional
	start []float64

	// L1 (lasso) penalty weight for each covariate.  If present, the
	// model is fit with coordinate descent.
	l1wgtMap map[string]float64
	l1wgt    []float64

	// L2 (ridge) penalty weight for each covariate.
	l2wgtMap map[string]float64
	l2wgt    []float64

	// The internal scaling of the covariates.
	scaletype statmodel.ScaleType

	// Scale factors for the covariates, all 1 if scaletype is NoScale.
	xn []float64

	// The unscaled covariate columns, retained so that the data can
	// be restored after fitting on the scaled covariates.
	origdata [][]statmodel.Dtype

	// Optimization settings
	settings *optimize.Settings

	// Optimization method
	method optimize.Method

	// If not nil, write log messages here
	log *log.Logger

	// Use concurrent calculations in IRLS if the sample size is at
	// least as large as this value.
	concurrentIRLS int

	// How the dispersion parameter is handled after fitting.
	dispersionMethod DispersionForm
	dispersionValue  float64

	nslices [][]float64
}

// GLMParams represents the model parameters for a GLM.
type GLMParams struct {
	coeff []float64
	scale float64
}

// GetCoeff returns the coefficients (slopes for individual
// covariates) from the parameter.
func (p *GLMParams) GetCoeff() []float64 {
	return p.coeff
}

// SetCoeff sets the coefficients (slopes for individual covariates)
// for the parameter.
func (p *GLMParams) SetCoeff(coeff []float64) {
	p.coeff = coeff
}

// Clone produces a deep copy of the parameter value.
func (p *GLMParams) Clone() statmodel.Parameter {
	coeff := make([]float64, len(p.coeff))
	copy(coeff, p.coeff)
	return &GLMParams{
		coeff: coeff,
		scale: p.scale,
	}
}

// GLMConfig defines configuration parameters for a GLM.
type GLMConfig struct {

	// The GLM family.  Gaussian is used if not provided.
	Family *Family

	// The link function.  The canonical link for the family is used
	// if not provided.
	Link *Link

	// The variance function.  The standard variance function for the
	// family is used if not provided.
	VarFunc *Variance

	// WeightVar is the name of a case weight variable.  If an empty
	// string, all weights are equal to 1.
	WeightVar string

	// OffsetVar is the name of a variable that defines an offset.
	OffsetVar string

	// Start contains starting values for the fitting algorithm.
	Start []float64

	// FitMethod is IRLS, gradient, or coordinate.  Coordinate is
	// always used when an L1 penalty is present.
	FitMethod string

	// ConcurrentIRLS is the minimum sample size for which concurrent
	// calculations are used during IRLS.
	ConcurrentIRLS int

	// L1Penalty gives an L1 (lasso) penalty weight per variable.
	L1Penalty map[string]float64

	// L2Penalty gives an L2 (ridge) penalty weight per variable.
	L2Penalty map[string]float64

	// Scale defines the internal rescaling of the covariates.
	Scale statmodel.ScaleType

	// Dispersion defines how the dispersion parameter is handled.
	Dispersion DispersionForm

	// DispersionValue is the fixed dispersion value, used only when
	// Dispersion is DispersionFixed.
	DispersionValue float64

	// A logger to which logging information is written
	Log *log.Logger

	// OptMethod is the Gonum optimization used in gradient fitting.
	OptMethod optimize.Method

	// OptSettings configures the Gonum optimization routine.
	OptSettings *optimize.Settings
}

// DefaultGLMConfig returns a default configuration struct for a GLM.
func DefaultGLMConfig() *GLMConfig {
	return &GLMConfig{
		Family:         NewFamily(GaussianFamily),
		FitMethod:      "IRLS",
		ConcurrentIRLS: 1000,
		Scale:          statmodel.NoScale,
	}
}

// NewGLM returns a GLM value that can be fit to the given dataset,
// using the named outcome and predictor variables.
func NewGLM(data statmodel.Dataset, outcome string, predictors []string, config *GLMConfig) (*GLM, error) {

	if config == nil {
		config = DefaultGLMConfig()
	}

	fam := config.Family
	if fam == nil {
		fam = NewFamily(GaussianFamily)
	}

	fitMethod := config.FitMethod
	if fitMethod == "" {
		fitMethod = "IRLS"
	}
	lmethod := strings.ToLower(fitMethod)
	if lmethod != "irls" && lmethod != "gradient" && lmethod != "coordinate" {
		return nil, fmt.Errorf("GLM fitting method %s not allowed", fitMethod)
	}

	pos := make(map[string]int)
	for i, v := range data.Names() {
		pos[v] = i
	}

	ypos, ok := pos[outcome]
	if !ok {
		return nil, fmt.Errorf("Outcome variable '%s' not found in dataset", outcome)
	}

	var xpos []int
	for _, xna := range predictors {
		xp, ok := pos[xna]
		if !ok {
			return nil, fmt.Errorf("Predictor '%s' not found in dataset", xna)
		}
		xpos = append(xpos, xp)
	}

	getpos := func(vn string) int {
		if vn == "" {
			return -1
		}
		loc, ok := pos[vn]
		if !ok {
			msg := fmt.Sprintf("'%s' not found\n", vn)
			panic(msg)
		}
		return loc
	}

	weightpos := getpos(config.WeightVar)
	offsetpos := getpos(config.OffsetVar)

	varnames := data.Names()

	penToSlice := func(m map[string]float64) []float64 {
		if len(m) == 0 {
			return nil
		}
		v := make([]float64, len(xpos))
		for j, k := range xpos {
			v[j] = m[varnames[k]]
		}
		return v
	}

	// Copy the outer slice so that scaling does not modify the
	// caller's dataset.
	dcols := make([][]statmodel.Dtype, len(data.Data()))
	copy(dcols, data.Data())

	glm := &GLM{
		data:             dcols,
		varnames:         varnames,
		ypos:             ypos,
		xpos:             xpos,
		weightpos:        weightpos,
		offsetpos:        offsetpos,
		fam:              fam,
		link:             config.Link,
		vari:             config.VarFunc,
		fitMethod:        lmethod,
		start:            config.Start,
		l1wgt:            penToSlice(config.L1Penalty),
		l2wgt:            penToSlice(config.L2Penalty),
		l1wgtMap:         config.L1Penalty,
		l2wgtMap:         config.L2Penalty,
		scaletype:        config.Scale,
		dispersionMethod: config.Dispersion,
		dispersionValue:  config.DispersionValue,
		log:              config.Log,
		settings:         config.OptSettings,
		method:           config.OptMethod,
		concurrentIRLS:   config.ConcurrentIRLS,
	}

	if glm.concurrentIRLS <= 0 {
		glm.concurrentIRLS = 1000
	}

	if err := glm.setup(); err != nil {
		return nil, err
	}

	return glm, nil
}

func (glm *GLM) setup() error {

	if glm.link == nil {
		glm.link = NewLink(glm.fam.validLinks[0])
	} else {
		if !glm.fam.IsValidLink(glm.link) {
			return fmt.Errorf("GLM: link %s is not valid for family %s", glm.link.Name, glm.fam.Name)
		}
		if strings.ToLower(glm.fam.Name) == "negbinom" {
			// The family depends on the link
			glm.fam = NewNegBinomFamily(glm.fam.alpha, glm.link)
		}
	}

	if glm.vari == nil {
		switch glm.fam.TypeCode {
		case BinomialFamily:
			glm.vari = NewVariance(BinomialVar)
		case PoissonFamily:
			glm.vari = NewVariance(IdentityVar)
		case QuasiPoissonFamily:
			glm.vari = NewVariance(IdentityVar)
		case GaussianFamily:
			glm.vari = NewVariance(ConstantVar)
		case GammaFamily:
			glm.vari = NewVariance(SquaredVar)
		case InvGaussianFamily:
			glm.vari = NewVariance(CubedVar)
		case NegBinomFamily:
			glm.vari = NewNegBinomVariance(glm.fam.alpha)
		default:
			return fmt.Errorf("Unknown GLM family: %s", glm.fam.Name)
		}
	}

	glm.doScale()

	if len(glm.start) > 0 && len(glm.start) != len(glm.xpos) {
		return fmt.Errorf("GLM: the starting value vector has length %d, but the model has %d covariates",
			len(glm.start), len(glm.xpos))
	}

	return nil
}

// doScale calculates the covariate scale factors and replaces the
// covariate columns with scaled copies.  The original columns are
// restored by unScale after fitting.
func (glm *GLM) doScale() {

	glm.xn = make([]float64, len(glm.xpos))

	if glm.scaletype == statmodel.NoScale {
		one(glm.xn)
		return
	}

	n := float64(glm.NumObs())

	for j, k := range glm.xpos {
		x := glm.data[k]
		for i := range x {
			glm.xn[j] += float64(x[i] * x[i])
		}

		// A covariate with no variation cannot be scaled.
		if glm.xn[j] == 0 {
			msg := fmt.Sprintf("GLM: variable %s is identically zero.\n", glm.varnames[k])
			panic(msg)
		}

		switch glm.scaletype {
		case statmodel.L2Norm:
			glm.xn[j] = math.Sqrt(glm.xn[j])
		case statmodel.Variance:
			glm.xn[j] = math.Sqrt(glm.xn[j] / n)
		default:
			panic("unknown scale type")
		}
	}

	// An intercept (or any constant column) is not scaled.
	for j, k := range glm.xpos {
		x := glm.data[k]
		con := true
		for i := 1; i < len(x); i++ {
			if x[i] != x[0] {
				con = false
				break
			}
		}
		if con {
			glm.xn[j] = 1
		}
	}

	glm.origdata = make([][]statmodel.Dtype, len(glm.data))
	copy(glm.origdata, glm.data)

	for j, k := range glm.xpos {
		x := glm.data[k]
		z := make([]statmodel.Dtype, len(x))
		for i := range x {
			z[i] = x[i] / statmodel.Dtype(glm.xn[j])
		}
		glm.data[k] = z
	}
}

// NumParams returns the number of covariates in the model.
func (glm *GLM) NumParams() int {
	return len(glm.xpos)
}

// NumObs returns the number of observations in the data set.
func (glm *GLM) NumObs() int {
	return len(glm.data[0])
}

// Xpos returns the positions of the covariates in the model's data columns.
func (glm *GLM) Xpos() []int {
	return glm.xpos
}

// Dataset returns the data columns that are used to fit the model.
func (glm *GLM) Dataset() [][]statmodel.Dtype {
	return glm.data
}

func (glm *GLM) putNslice(x []float64) {
	glm.nslices = append(glm.nslices, x)
}

func (glm *GLM) getNslice() []float64 {

	if len(glm.nslices) == 0 {
		return make([]float64, glm.NumObs())
	}
	q := len(glm.nslices) - 1
	x := glm.nslices[q]
	zero(x)
	glm.nslices = glm.nslices[0:q]

	return x
}

// GLMResults describes the results of a fitted generalized linear model.
type GLMResults struct {
	statmodel.BaseResults

	scale float64
}

// Scale returns the estimated scale parameter.
func (rslt *GLMResults) Scale() float64 {
	return rslt.scale
}

// LogLike returns the log-likelihood value for the generalized linear
// model at the given parameter values.
func (glm *GLM) LogLike(params statmodel.Parameter, exact bool) float64 {

	gpar := params.(*GLMParams)
	coeff := gpar.coeff
	scale := gpar.scale

	var wgts, off []statmodel.Dtype
	yda := glm.data[glm.ypos]

	if glm.weightpos != -1 {
		wgts = glm.data[glm.weightpos]
	}
	if glm.offsetpos != -1 {
		off = glm.data[glm.offsetpos]
	}

	linpred := glm.getNslice()
	mn := glm.getNslice()

	for j, k := range glm.xpos {
		xda := glm.data[k]
		for i := range xda {
			linpred[i] += coeff[j] * float64(xda[i])
		}
	}
	if off != nil {
		for i := range off {
			linpred[i] += float64(off[i])
		}
	}

	glm.link.InvLink(linpred, mn)
	loglike := glm.fam.LogLike(yda, mn, wgts, scale, exact)

	// Account for the L2 penalty
	if glm.l2wgt != nil {
		nobs := float64(glm.NumObs())
		for j, v := range glm.l2wgt {
			loglike -= nobs * v * coeff[j] * coeff[j] / 2
		}
	}

	glm.putNslice(linpred)
	glm.putNslice(mn)

	return loglike
}

func scoreFactor(yda []statmodel.Dtype, mn, deriv, va, sfac []float64) {
	for i, y := range yda {
		sfac[i] = (float64(y) - mn[i]) / (deriv[i] * va[i])
	}
}

// Score returns the score vector for the generalized linear model at
// the given parameter values.
func (glm *GLM) Score(params statmodel.Parameter, score []float64) {

	gpar := params.(*GLMParams)
	coeff := gpar.coeff

	var wgts, off []statmodel.Dtype
	yda := glm.data[glm.ypos]

	if glm.weightpos != -1 {
		wgts = glm.data[glm.weightpos]
	}
	if glm.offsetpos != -1 {
		off = glm.data[glm.offsetpos]
	}

	linpred := glm.getNslice()
	mn := glm.getNslice()
	deriv := glm.getNslice()
	va := glm.getNslice()
	fac := glm.getNslice()

	zero(score)

	for j, k := range glm.xpos {
		xda := glm.data[k]
		for i := range xda {
			linpred[i] += coeff[j] * float64(xda[i])
		}
	}
	if off != nil {
		for i := range off {
			linpred[i] += float64(off[i])
		}
	}

	glm.link.InvLink(linpred, mn)
	glm.link.Deriv(mn, deriv)
	glm.vari.Var(mn, va)

	scoreFactor(yda, mn, deriv, va, fac)

	if wgts != nil {
		for i := range fac {
			fac[i] *= float64(wgts[i])
		}
	}

	for j, k := range glm.xpos {
		xda := glm.data[k]
		for i := range xda {
			score[j] += fac[i] * float64(xda[i])
		}
	}

	// Account for the L2 penalty
	if glm.l2wgt != nil {
		nobs := float64(glm.NumObs())
		for j, v := range glm.l2wgt {
			score[j] -= nobs * v * coeff[j]
		}
	}

	glm.putNslice(linpred)
	glm.putNslice(mn)
	glm.putNslice(deriv)
	glm.putNslice(va)
	glm.putNslice(fac)
}

// Hessian returns the Hessian matrix for the model, in vectorized
// form.  Either the observed or expected Hessian can be calculated.
func (glm *GLM) Hessian(param statmodel.Parameter, ht statmodel.HessType, hess []float64) {

	gpar := param.(*GLMParams)
	coeff := gpar.coeff

	nvar := glm.NumParams()
	xdat := make([][]statmodel.Dtype, nvar)
	for j, k := range glm.xpos {
		xdat[j] = glm.data[k]
	}

	var wgts, off []statmodel.Dtype
	yda := glm.data[glm.ypos]

	if glm.weightpos != -1 {
		wgts = glm.data[glm.weightpos]
	}
	if glm.offsetpos != -1 {
		off = glm.data[glm.offsetpos]
	}

	linpred := glm.getNslice()
	mn := glm.getNslice()
	lderiv := glm.getNslice()
	va := glm.getNslice()
	fac := glm.getNslice()
	sfac := glm.getNslice()

	zero(hess)

	for j := range glm.xpos {
		for i := range linpred {
			linpred[i] += coeff[j] * float64(xdat[j][i])
		}
	}
	if off != nil {
		for i := range off {
			linpred[i] += float64(off[i])
		}
	}

	// The mean response
	glm.link.InvLink(linpred, mn)

	glm.link.Deriv(mn, lderiv)
	glm.vari.Var(mn, va)

	// Factor for the expected Hessian
	for i := 0; i < len(lderiv); i++ {
		fac[i] = 1 / (lderiv[i] * lderiv[i] * va[i])
	}

	// Adjust the factor for the observed Hessian
	if ht == statmodel.ObsHess {
		lderiv2 := glm.getNslice()
		vad := glm.getNslice()
		glm.link.Deriv2(mn, lderiv2)
		glm.vari.Deriv(mn, vad)
		scoreFactor(yda, mn, lderiv, va, sfac)

		for i := range fac {
			h := va[i]*lderiv2[i] + lderiv[i]*vad[i]
			h *= sfac[i] * fac[i]
			if wgts != nil {
				h *= float64(wgts[i])
			}
			fac[i] *= 1 + h
		}

		glm.putNslice(lderiv2)
		glm.putNslice(vad)
	}

	// Update the Hessian matrix
	glm.hessXprod(xdat, fac, wgts, hess)

	// Fill in the upper triangle
	for j1 := range glm.xpos {
		for j2 := 0; j2 < j1; j2++ {
			hess[j2*nvar+j1] = hess[j1*nvar+j2]
		}
	}

	// Account for the L2 penalty
	if glm.l2wgt != nil {
		nobs := float64(glm.NumObs())
		for j, v := range glm.l2wgt {
			hess[j*nvar+j] -= nobs * v
		}
	}

	glm.putNslice(linpred)
	glm.putNslice(mn)
	glm.putNslice(lderiv)
	glm.putNslice(va)
	glm.putNslice(fac)
	glm.putNslice(sfac)
}

func (glm *GLM) hessXprod(xdat [][]statmodel.Dtype, fac []float64, wgts []statmodel.Dtype, hess []float64) {

	nvar := len(xdat)

	var wg sync.WaitGroup

	for j1 := range glm.xpos {
		for j2 := 0; j2 <= j1; j2++ {

			wg.Add(1)
			go func(j1, j2 int) {
				x1 := xdat[j1]
				x2 := xdat[j2]
				if wgts == nil {
					for i := range x1 {
						hess[j1*nvar+j2] -= fac[i] * float64(x1[i]*x2[i])
					}
				} else {
					for i := range x1 {
						hess[j1*nvar+j2] -= float64(wgts[i]) * fac[i] * float64(x1[i]*x2[i])
					}
				}
				wg.Done()
			}(j1, j2)
		}
	}

	wg.Wait()
}

// Focus returns a new GLM instance with a single variable, which is
// variable pos in the original model.  The effects of the remaining
// covariates are captured through the offset.
func (glm *GLM) Focus(pos int, coeff []float64, offset []float64) statmodel.RegFitter {

	fglm := *glm

	fglm.varnames = []string{
		glm.varnames[glm.ypos],
		glm.varnames[glm.xpos[pos]],
	}

	fglm.data = [][]statmodel.Dtype{
		glm.data[glm.ypos],
		glm.data[glm.xpos[pos]],
	}

	fglm.ypos = 0
	fglm.xpos = []int{1}
	fglm.start = []float64{coeff[pos]}
	fglm.nslices = nil
	fglm.xn = []float64{1}

	if glm.weightpos != -1 {
		fglm.varnames = append(fglm.varnames, glm.varnames[glm.weightpos])
		fglm.data = append(fglm.data, glm.data[glm.weightpos])
		fglm.weightpos = len(fglm.data) - 1
	}

	// Use the provided scratch space for the offset
	nobs := glm.NumObs()
	if cap(offset) < nobs {
		offset = make([]float64, nobs)
	} else {
		offset = offset[0:nobs]
		zero(offset)
	}
	fglm.varnames = append(fglm.varnames, "__offset")
	fglm.data = append(fglm.data, offset)
	fglm.offsetpos = len(fglm.data) - 1

	// Fill in the offset
	for j, k := range glm.xpos {
		if j != pos {
			x := glm.data[k]
			for i := range offset {
				offset[i] += coeff[j] * float64(x[i])
			}
		}
	}

	// Add the original offset if present
	if glm.offsetpos != -1 {
		offsetOrig := glm.data[glm.offsetpos]
		for i := range offsetOrig {
			offset[i] += float64(offsetOrig[i])
		}
	}

	if glm.l2wgt != nil {
		fglm.l2wgt = []float64{glm.l2wgt[pos]}
	} else {
		fglm.l2wgt = nil
	}

	fglm.l1wgtMap = nil
	fglm.l1wgt = nil

	return &fglm
}

// fitRegularized estimates the parameters of the GLM using L1
// regularization (with optional L2 regularization).  This invokes
// coordinate descent optimization.
func (glm *GLM) fitRegularized() *GLMResults {

	if glm.log != nil {
		glm.log.Print("Regularized fitting\n")
	}

	start := &GLMParams{
		coeff: make([]float64, len(glm.xpos)),
		scale: 1.0,
	}
	if len(glm.start) > 0 {
		copy(start.coeff, glm.start)
	}

	checkstep := strings.ToLower(glm.fam.Name) != "gaussian"
	par := statmodel.FitL1Reg(glm, start, glm.l1wgt, checkstep)
	coeff := par.GetCoeff()

	// Map the coefficients back to the original scale and restore
	// the original data.
	if glm.scaletype != statmodel.NoScale {
		for j := range coeff {
			coeff[j] /= glm.xn[j]
		}
	}
	glm.restoreData()

	// Covariate names
	var xna []string
	for _, j := range glm.xpos {
		xna = append(xna, glm.varnames[j])
	}

	scale := glm.EstimateScale(coeff)

	results := &GLMResults{
		BaseResults: statmodel.NewBaseResults(glm, 0, coeff, xna, nil),
		scale:       scale,
	}

	return results
}

// restoreData replaces any internally scaled covariate columns with
// the columns on the original scale.
func (glm *GLM) restoreData() {

	if glm.scaletype == statmodel.NoScale {
		return
	}

	copy(glm.data, glm.origdata)
	one(glm.xn)
	glm.scaletype = statmodel.NoScale
}

// Fit estimates the parameters of the GLM and returns a results
// object.  Unregularized fits and fits involving L2 regularization
// can be obtained, but if L1 regularization is desired use an
// L1Penalty in the configuration, which implies coordinate descent.
func (glm *GLM) Fit() (*GLMResults, error) {

	if glm.l1wgt != nil {
		return glm.fitRegularized(), nil
	}

	nvar := glm.NumParams()
	maxiter := 20

	var start []float64
	if glm.start != nil {
		start = glm.start
	} else {
		start = make([]float64, nvar)
	}

	if glm.l2wgt != nil {
		glm.fitMethod = "gradient"
	}

	var params []float64

	if glm.fitMethod == "gradient" {
		if glm.log != nil {
			glm.log.Print("Fitting using gradient optimization\n")
		}
		var err error
		params, _, err = glm.fitGradient(start)
		if err != nil {
			return nil, err
		}
	} else {
		if glm.log != nil {
			glm.log.Print("Fitting using IRLS\n")
		}
		params = glm.fitIRLS(start, maxiter)
	}

	// Map the coefficients back to the original scale and restore
	// the original data.  Everything remaining is done without
	// covariate scaling.
	if glm.scaletype != statmodel.NoScale {
		for j := range params {
			params[j] /= glm.xn[j]
		}
	}
	glm.restoreData()

	var scale float64
	if glm.dispersionMethod == DispersionFixed {
		scale = glm.dispersionValue
	} else {
		scale = glm.EstimateScale(params)
	}

	vcov, _ := statmodel.GetVcov(glm, &GLMParams{params, scale})
	floats.Scale(scale, vcov)

	ll := glm.LogLike(&GLMParams{params, scale}, true)

	var xna []string
	for _, j := range glm.xpos {
		xna = append(xna, glm.varnames[j])
	}

	results := &GLMResults{
		BaseResults: statmodel.NewBaseResults(glm, ll, params, xna, vcov),
		scale:       scale,
	}

	return results, nil
}

// fitGradient uses gradient-based optimization to obtain the fitted
// GLM parameters.
func (glm *GLM) fitGradient(start []float64) ([]float64, float64, error) {

	p := optimize.Problem{
		Func: func(x []float64) float64 {
			return -glm.LogLike(&GLMParams{x, 1}, false)
		},
		Grad: func(grad, x []float64) {
			if len(grad) != len(x) {
				grad = make([]float64, len(x))
			}
			glm.Score(&GLMParams{x, 1}, grad)
			floats.Scale(-1, grad)
		},
	}

	if glm.settings == nil {
		glm.settings = &optimize.Settings{
			GradientThreshold: 1e-6,
		}
	}

	if glm.method == nil {
		glm.method = &optimize.BFGS{}
	}

	optrslt, err := optimize.Minimize(p, start, glm.settings, glm.method)
	if err != nil {
		glm.failMessage(optrslt)
		return nil, 0, err
	}
	if err = optrslt.Status.Err(); err != nil {
		return nil, 0, err
	}

	params := make([]float64, len(optrslt.X))
	copy(params, optrslt.X)

	fvalue := -optrslt.F

	return params, fvalue, nil
}

// failMessage prints information that can help diagnose optimization failures.
func (glm *GLM) failMessage(optrslt *optimize.Result) {

	if optrslt == nil {
		return
	}

	os.Stderr.WriteString("Current point and gradient:\n")
	for j, x := range optrslt.X {
		na := glm.varnames[glm.xpos[j]]
		os.Stderr.WriteString(fmt.Sprintf("%16.8f %16.8f %s\n", x, optrslt.Gradient[j], na))
	}

	// Get the mean and standard deviation of the covariates.
	mn := make([]float64, len(glm.xpos))
	sd := make([]float64, len(glm.xpos))
	for j, k := range glm.xpos {
		x := glm.data[k]
		for i := range x {
			mn[j] += float64(x[i])
		}
		mn[j] /= float64(len(x))
		for i := range x {
			u := float64(x[i]) - mn[j]
			sd[j] += u * u
		}
		sd[j] /= float64(len(x))
		sd[j] = math.Sqrt(sd[j])
	}

	os.Stderr.WriteString("\nCovariate means and standard deviations:\n")
	for j, m := range mn {
		na := glm.varnames[glm.xpos[j]]
		os.Stderr.WriteString(fmt.Sprintf("%16.8f %16.8f %s\n", m, sd[j], na))
	}
}

// EstimateScale returns an estimate of the GLM scale parameter at the
// given parameter values.
func (glm *GLM) EstimateScale(params []float64) float64 {

	name := strings.ToLower(glm.fam.Name)
	if name == "binomial" || name == "poisson" {
		return 1
	}

	var wgt, off []statmodel.Dtype
	yda := glm.data[glm.ypos]

	if glm.weightpos != -1 {
		wgt = glm.data[glm.weightpos]
	}
	if glm.offsetpos != -1 {
		off = glm.data[glm.offsetpos]
	}

	nvar := glm.NumParams()
	linpred := glm.getNslice()
	mn := glm.getNslice()
	va := glm.getNslice()

	for j, k := range glm.xpos {
		xda := glm.data[k]
		for i, x := range xda {
			linpred[i] += params[j] * float64(x)
		}
	}
	if off != nil {
		for i := range off {
			linpred[i] += float64(off[i])
		}
	}

	// The mean response and variance
	glm.link.InvLink(linpred, mn)
	glm.vari.Var(mn, va)

	var scale, ws float64
	for i, y := range yda {
		r := float64(y) - mn[i]
		if wgt == nil {
			scale += r * r / va[i]
			ws++
		} else {
			scale += float64(wgt[i]) * r * r / va[i]
			ws += float64(wgt[i])
		}
	}

	scale /= (ws - float64(nvar))

	glm.putNslice(linpred)
	glm.putNslice(mn)
	glm.putNslice(va)

	return scale
}

// zero sets all elements of the slice to 0
func zero(x []float64) {
	for i := range x {
		x[i] = 0
	}
}

// one sets all elements of the slice to 1
func one(x []float64) {
	for i := range x {
		x[i] = 1
	}
}

// GLMSummary summarizes a fitted generalized linear model.
type GLMSummary struct {

	// The GLM
	glm *GLM

	// The results structure
	results *GLMResults

	// Transform the parameters with this function.  If nil,
	// no transformation is applied.  If paramXform is provided,
	// the standard error and Z-score are not shown.
	paramXform func(float64) float64

	// Messages that are appended to the table
	messages []string
}

// SetScale sets the scale on which the parameter results are
// displayed in the summary.  'xf' is a function that maps
// parameters and confidence limits from the linear scale to
// the desired scale.  'msg' is a message that is appended
// to the summary table.
func (gs *GLMSummary) SetScale(xf func(float64) float64, msg string) *GLMSummary {
	gs.paramXform = xf
	gs.messages = append(gs.messages, msg)
	return gs
}

// String returns a string representation of a summary table for the model.
func (gs *GLMSummary) String() string {

	xf := func(x float64) float64 {
		return x
	}

	if gs.paramXform != nil {
		xf = gs.paramXform
	}

	sum := &statmodel.SummaryTable{
		Msg: gs.messages,
	}

	sum.Title = "Generalized linear model analysis"

	sum.Top = []string{
		fmt.Sprintf("Family:   %s", gs.glm.fam.Name),
		fmt.Sprintf("Link:     %s", gs.glm.link.Name),
		fmt.Sprintf("Variance: %s", gs.glm.vari.Name),
		fmt.Sprintf("Num obs:  %d", gs.glm.NumObs()),
		fmt.Sprintf("Scale:    %f", gs.results.scale),
	}

	l1 := gs.glm.l1wgt != nil

	if !l1 {
		if gs.paramXform == nil {
			sum.ColNames = []string{"Variable   ", "Parameter", "SE", "LCB", "UCB", "Z-score", "P-value"}
		} else {
			sum.ColNames = []string{"Variable   ", "Parameter", "LCB", "UCB", "P-value"}
		}
	} else {
		sum.ColNames = []string{"Variable   ", "Parameter"}
	}

	// String formatter
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

	// Number formatter
	fn := func(x interface{}, h string) []string {
		y := x.([]float64)
		var s []string
		for i := range y {
			s = append(s, fmt.Sprintf("%10.4f", y[i]))
		}
		return s
	}

	if !l1 {
		if gs.paramXform == nil {
			sum.ColFmt = []statmodel.Fmter{fs, fn, fn, fn, fn, fn, fn}
		} else {
			sum.ColFmt = []statmodel.Fmter{fs, fn, fn, fn, fn}
		}
	} else {
		sum.ColFmt = []statmodel.Fmter{fs, fn}
	}

	if !l1 {
		// Create estimate and CI for the parameters
		var par, lcb, ucb []float64
		pax := gs.results.Params()
		for j := range gs.results.Params() {
			par = append(par, xf(pax[j]))
			lcb = append(lcb, xf(pax[j]-2*gs.results.StdErr()[j]))
			ucb = append(ucb, xf(pax[j]+2*gs.results.StdErr()[j]))
		}

		if gs.paramXform == nil {
			sum.Cols = []interface{}{
				gs.results.Names(),
				par,
				gs.results.StdErr(),
				lcb,
				ucb,
				gs.results.ZScores(),
				gs.results.PValues(),
			}
		} else {
			sum.Cols = []interface{}{
				gs.results.Names(),
				par,
				lcb,
				ucb,
				gs.results.PValues(),
			}
		}
	} else {
		sum.Cols = []interface{}{
			gs.results.Names(),
			gs.results.Params(),
		}
	}

	return sum.String()
}

// Summary displays a summary table of the model results.
func (rslt *GLMResults) Summary() *GLMSummary {

	glm := rslt.Model().(*GLM)

	return &GLMSummary{
		glm:     glm,
		results: rslt,
	}
}
