package statmodel

import (
	"fmt"
	"math"
)

// Focuser is a regression model that can restrict itself to a single
// coefficient, holding the others fixed via an offset.
type Focuser interface {
	NumParams() int
	NumObs() int
	Focus(int, []float64, []float64) RegFitter
	LogLike(Parameter, bool) float64
	Score(Parameter, []float64)
	Hessian(Parameter, HessType, []float64)
}

const l1regMaxIter = 400

// FitL1Reg fits the given model subject to the L1 penalty weights in
// l1wgt, using coordinate descent.  The starting values in param are
// updated in place and returned.
func FitL1Reg(model Focuser, param Parameter, l1wgt []float64, checkstep bool) Parameter {

	// A parameter for the 1-d focused model.
	param1d := param.Clone()
	param1d.SetCoeff([]float64{0})

	nvar := model.NumParams()
	nobs := model.NumObs()

	// Scratch space for the focused models.
	offset := make([]float64, nobs)

	// The log-likelihood is not normalized by the sample size, so
	// the tolerance scales with it, up to a cap.
	tol := 1e-7 * float64(nobs)
	if tol > 0.1 {
		tol = 0.1
	}

	coeff := param.GetCoeff()

	for iter := 0; iter < l1regMaxIter; iter++ {

		// L-inf norm of the increment in the parameter vector
		px := 0.0

		// One coordinate descent sweep
		for j := 0; j < nvar; j++ {

			fmodel := model.Focus(j, coeff, offset)
			np := solve1d(fmodel, coeff[j], param1d, float64(nobs)*l1wgt[j], checkstep)

			if d := math.Abs(np - coeff[j]); d > px {
				px = d
			}
			coeff[j] = np
		}

		if px < tol {
			break
		}
	}

	return param
}

// solve1d minimizes the penalized negative log-likelihood of a
// focused one-parameter model, using a local quadratic approximation
// with a line-search fallback.
func solve1d(m1 RegFitter, coeff float64, par Parameter, l1wgt float64, checkstep bool) float64 {

	// Gradient and curvature of the negative log-likelihood at the
	// current point
	bv := make([]float64, 1)
	par.SetCoeff([]float64{coeff})
	m1.Score(par, bv)
	b := -bv[0]
	cv := make([]float64, 1)
	m1.Hessian(par, ObsHess, cv)
	c := -cv[0]

	// The optimum point of the quadratic approximation
	d := b - c*coeff

	if l1wgt > math.Abs(d) {
		// Soft thresholding takes the coefficient to zero
		return 0
	}

	// coeff + h minimizes Q(x) + l1wgt*|x|
	var h float64
	switch {
	case d >= 0:
		h = (l1wgt - b) / c
	case d < 0:
		h = -(l1wgt + b) / c
	default:
		panic(fmt.Sprintf("d=%f\n", d))
	}

	if !checkstep {
		return coeff + h
	}

	// The quadratic step may not descend when the loss is far from
	// quadratic, so confirm before accepting it.
	par.SetCoeff([]float64{coeff})
	f0 := -m1.LogLike(par, false) + l1wgt*math.Abs(coeff)
	par.SetCoeff([]float64{coeff + h})
	f1 := -m1.LogLike(par, false) + l1wgt*math.Abs(coeff+h)
	if f1 <= f0+1e-10 {
		return coeff + h
	}

	// Fall back to a direct search on the scalar objective.
	fw := func(z float64) float64 {
		par.SetCoeff([]float64{z})
		return -m1.LogLike(par, false) + l1wgt*math.Abs(z)
	}

	return bisection(fw, coeff-1, coeff+1, 1e-7)
}

// bisection minimizes f by golden-style interval splitting, first
// expanding the interval until it brackets a minimum.
func bisection(f func(float64) float64, xl, xu, tol float64) float64 {

	var x0, x1, x2, f0, f1, f2 float64

	// Try to find a bracket.
	success := false
	x0, x2 = xl, xu
	x1 = (x0 + x2) / 2
	f1 = f(x1)
	for k := 0; k < 100; k++ {

		f0 = f(x0)
		f1 = f(x1)
		f2 = f(x2)

		if f1 < f0 && f1 < f2 {
			success = true
			break
		}

		switch {
		case f0 > f1 && f1 > f2:
			// Slide right
			x0 = x1
			x1 = x2
			x2 += 1.5 * (x1 - x0)
		case f0 < f1 && f1 < f2:
			// Slide left
			x1 = x0
			x2 = x1
			x0 -= 1.5 * (x2 - x1)
		default:
			x0 = x1 - 2*(x1-x0)
			x2 = x1 + 2*(x2-x1)
		}
	}

	if !success {
		fmt.Printf("Did not find bracket...\n")
		switch {
		case f0 < f1 && f0 < f2:
			return x0
		case f1 < f0 && f1 < f2:
			return x1
		default:
			return x2
		}
	}

	for x2-x0 > tol {
		if x1-x0 > x2-x1 {
			xx := (x0 + x1) / 2
			if ff := f(xx); ff < f1 {
				x2 = x1
				x1, f1 = xx, ff
			} else {
				x0 = xx
			}
		} else {
			xx := (x1 + x2) / 2
			if ff := f(xx); ff < f1 {
				x0 = x1
				x1, f1 = xx, ff
			} else {
				x2 = xx
			}
		}
	}

	return x1
}
