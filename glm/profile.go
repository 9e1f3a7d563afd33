package glm

import (
	"sort"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"
)

// profileCurve is a set of (parameter, log-likelihood) points visited
// while profiling, kept sorted by parameter value.
type profileCurve [][2]float64

func (c profileCurve) sort() {
	sort.Slice(c, func(i, j int) bool { return c[i][0] < c[j][0] })
}

// bisectmax maximizes f over the bracket (x0, x1, x2) by interval
// splitting, returning the maximizer, the maximum, and the points
// visited.  f(x1) is passed in as y1.
func bisectmax(f func(float64) float64, x0, x1, x2, y1 float64) (float64, float64, [][2]float64) {

	var hist [][2]float64

	for x2-x0 > 1e-4 {
		if x2-x1 > x1-x0 {
			x := (x1 + x2) / 2
			y := f(x)
			hist = append(hist, [2]float64{x, y})
			if y > y1 {
				x0 = x1
				y1 = y
				x1 = x
			} else {
				x2 = x
			}
		} else {
			x := (x0 + x1) / 2
			y := f(x)
			hist = append(hist, [2]float64{x, y})
			if y > y1 {
				x2 = x1
				y1 = y
				x1 = x
			} else {
				x0 = x
			}
		}
	}

	return x1, y1, hist
}

// bisectroot finds a point where f crosses yt within (x0, x1), given
// the bracketing values y0 and y1.
func bisectroot(f func(float64) float64, x0, x1, y0, y1, yt float64) (float64, [][2]float64) {

	if (y0-yt)*(y1-yt) > 0 {
		panic("bisectroot invalid bracket")
	}

	var hist [][2]float64

	for x1-x0 > 1e-4 {
		x := (x0 + x1) / 2
		y := f(x)
		hist = append(hist, [2]float64{x, y})
		if (y-yt)*(y0-yt) > 0 {
			x0 = x
			y0 = y
		} else {
			x1 = x
		}
	}

	return (x0 + x1) / 2, hist
}

// maximize1d expands geometrically from the center until the profile
// log-likelihood f brackets its maximum, then bisects.  It returns
// the maximizer, the maximum, and the points visited.
func maximize1d(f func(float64) float64, center float64) (float64, float64, [][2]float64) {

	ll1 := f(center)

	hi := 1.2 * center
	llhi := f(hi)
	for llhi >= ll1 {
		hi *= 1.2
		llhi = f(hi)
	}

	lo := 0.8 * center
	lllo := f(lo)
	for lllo >= ll1 {
		lo *= 0.8
		lllo = f(lo)
	}

	return bisectmax(f, lo, center, hi, ll1)
}

// confint1d finds the two points where the profile log-likelihood f
// falls qp below its maximum, one on each side of the maximizer.  All
// points visited are appended to the curve.
func confint1d(f func(float64) float64, mle, maxll, qp float64, curve *profileCurve) (float64, float64) {

	// Left side
	lo := 0.9 * mle
	lllo := f(lo)
	for lllo > maxll-qp {
		lo *= 0.9
		lllo = f(lo)
		*curve = append(*curve, [2]float64{lo, lllo})
	}
	lo, hist := bisectroot(f, lo, mle, lllo, maxll, maxll-qp)
	*curve = append(*curve, hist...)

	// Right side
	hi := 1.1 * mle
	llhi := f(hi)
	for llhi > maxll-qp {
		hi *= 1.1
		llhi = f(hi)
		*curve = append(*curve, [2]float64{hi, llhi})
	}
	hi, hist = bisectroot(f, mle, hi, maxll, llhi, maxll-qp)
	*curve = append(*curve, hist...)

	curve.sort()

	return lo, hi
}

// ScaleProfiler does profile likelihood analysis on the scale
// parameter of a fitted GLM.  Any additional family parameters (as in
// the Tweedie or negative binomial case) are held fixed at their
// values from the provided fit.
type ScaleProfiler struct {

	// The profile analysis is done with respect to this fitted
	// model.
	results *GLMResults

	// The MLE of the scale parameter
	scaleMLE float64

	// The largest log-likelihood attainable by varying the scale
	maxLogLike float64

	// A sequence of (scale, log-likelihood) values that lie on the
	// profile curve.
	Profile profileCurve

	// The parameters of the original fit
	params []float64
}

// NewScaleProfiler returns a ScaleProfiler value that can be used to
// profile the scale parameter.
func NewScaleProfiler(result *GLMResults) *ScaleProfiler {

	ps := &ScaleProfiler{
		results: result,
	}

	pa := result.Params()
	ps.params = make([]float64, len(pa))
	copy(ps.params, pa)

	var hist [][2]float64
	ps.scaleMLE, ps.maxLogLike, hist = maximize1d(ps.LogLike, result.scale)
	ps.Profile = append(ps.Profile, hist...)
	ps.Profile.sort()

	return ps
}

// LogLike returns the profile log likelihood value at the given scale
// parameter value.
func (ps *ScaleProfiler) LogLike(scale float64) float64 {

	model := ps.results.Model().(*GLM)
	model.dispersionMethod = DispersionFixed
	model.dispersionValue = scale

	if model.start == nil {
		model.start = make([]float64, len(ps.params))
	}
	copy(model.start, ps.params)

	result, err := model.Fit()
	if err != nil {
		panic(err)
	}
	return result.LogLike()
}

// ScaleMLE returns the maximum likelihood estimate of the scale parameter.
func (ps *ScaleProfiler) ScaleMLE() float64 {
	return ps.scaleMLE
}

// ConfInt identifies scale parameters scale1, scale2 that define a
// profile confidence interval for the scale parameter.  All points on
// the profile likelihood visited during the search are added to the
// Profile field of the ScaleProfiler value.
func (ps *ScaleProfiler) ConfInt(prob float64) (float64, float64) {

	qp := distuv.ChiSquared{K: 1}.Quantile(prob) / 2

	return confint1d(ps.LogLike, ps.scaleMLE, ps.maxLogLike, qp, &ps.Profile)
}

// TweedieProfiler conducts profile likelihood analyses on a GLM with
// the Tweedie family.
type TweedieProfiler struct {

	// The profile analysis is done with respect to this fitted
	// model.
	results *GLMResults

	// The MLE of the scale parameter
	scaleMLE float64

	// The MLE of the variance power parameter
	varPowerMLE float64

	params []float64
}

// NewTweedieProfiler returns a TweedieProfiler that can be used to
// profile the variance power parameter of a Tweedie GLM.
func NewTweedieProfiler(result *GLMResults) *TweedieProfiler {

	tp := &TweedieProfiler{
		results: result,
	}

	pa := result.Params()
	tp.params = make([]float64, len(pa))
	copy(tp.params, pa)

	tp.getMLE()

	return tp
}

// ScaleMLE returns the maximum likelihood estimate of the scale parameter.
func (tp *TweedieProfiler) ScaleMLE() float64 {
	return tp.scaleMLE
}

// VarPowerMLE returns the maximum likelihood estimate of the variance
// power parameter.
func (tp *TweedieProfiler) VarPowerMLE() float64 {
	return tp.varPowerMLE
}

// LogLike returns the profile log likelihood value at the given
// variance power and scale parameter.
func (tp *TweedieProfiler) LogLike(pw, scale float64) float64 {

	model := tp.results.Model().(*GLM)
	model.dispersionMethod = DispersionFixed
	model.dispersionValue = scale

	model.fam = NewTweedieFamily(pw, model.link)

	if model.start == nil {
		model.start = make([]float64, len(tp.params))
	}
	copy(model.start, tp.params)

	result, err := model.Fit()
	if err != nil {
		panic(err)
	}

	return result.LogLike()
}

func (tp *TweedieProfiler) getMLE() {

	p := optimize.Problem{
		Func: func(x []float64) float64 {
			return -tp.LogLike(x[0], x[1])
		},
	}

	// Starting point for the search
	x0 := []float64{1.5, tp.results.scale}

	r, err := optimize.Minimize(p, x0, nil, &optimize.NelderMead{})
	if err != nil {
		panic(err)
	}

	tp.varPowerMLE = r.X[0]
	tp.scaleMLE = r.X[1]
}

// NegBinomProfiler conducts profile likelihood analyses on a GLM with
// the negative binomial family.
type NegBinomProfiler struct {

	// The profile analysis is done with respect to this fitted
	// model.
	results *GLMResults

	// The MLE of the dispersion parameter
	dispersionMLE float64

	// The maximum likelihood value at the MLE
	maxLogLike float64

	// A sequence of (dispersion, log-likelihood) values that lie on
	// the profile curve.
	Profile profileCurve

	params []float64
}

// NewNegBinomProfiler returns a NegBinomProfiler that can be used to
// profile the dispersion parameter of a negative binomial GLM.
func NewNegBinomProfiler(result *GLMResults) *NegBinomProfiler {

	nb := &NegBinomProfiler{
		results: result,
	}

	pa := result.Params()
	nb.params = make([]float64, len(pa))
	copy(nb.params, pa)

	model := result.Model().(*GLM)

	var hist [][2]float64
	nb.dispersionMLE, nb.maxLogLike, hist = maximize1d(nb.LogLike, model.fam.alpha)
	nb.Profile = append(nb.Profile, hist...)
	nb.Profile.sort()

	return nb
}

// LogLike returns the profile log likelihood value at the given
// dispersion parameter value.
func (nb *NegBinomProfiler) LogLike(disp float64) float64 {

	model := nb.results.Model().(*GLM)

	model.dispersionMethod = DispersionFixed
	model.dispersionValue = 1

	model.fam = NewNegBinomFamily(disp, NewLink(LogLink))

	if model.start == nil {
		model.start = make([]float64, len(nb.params))
	}
	copy(model.start, nb.params)

	result, err := model.Fit()
	if err != nil {
		panic(err)
	}

	return result.LogLike()
}

// DispersionMLE returns the maximum likelihood estimate of the
// dispersion parameter.
func (nb *NegBinomProfiler) DispersionMLE() float64 {
	return nb.dispersionMLE
}

// ConfInt identifies dispersion parameters disp1, disp2 that define a
// profile confidence interval for the dispersion parameter.  All
// points on the profile likelihood visited during the search are
// added to the Profile field of the NegBinomProfiler value.
func (nb *NegBinomProfiler) ConfInt(prob float64) (float64, float64) {

	qp := distuv.ChiSquared{K: 1}.Quantile(prob) / 2

	return confint1d(nb.LogLike, nb.dispersionMLE, nb.maxLogLike, qp, &nb.Profile)
}
