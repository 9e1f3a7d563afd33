package glm

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/bioERGOtech/VERO-Code-Salerno/statmodel"
	"gonum.org/v1/gonum/mat"
)

// irlsDevTol is the convergence tolerance for the change in deviance
// between successive IRLS iterations.
const irlsDevTol = 1e-8

// fitIRLS fits the GLM by iteratively reweighted least squares,
// returning the fitted parameters.
func (glm *GLM) fitIRLS(start []float64, maxiter int) []float64 {

	linpred := glm.getNslice()
	mn := glm.getNslice()
	va := glm.getNslice()
	lderiv := glm.getNslice()
	wk := glm.getNslice()
	adjy := glm.getNslice()

	var nparam mat.VecDense

	nvar := glm.NumParams()

	xty := make([]float64, nvar)
	xtx := make([]float64, nvar*nvar)

	params := start
	if params == nil {
		params = make([]float64, nvar)
	}

	yda := glm.data[glm.ypos]

	var wgt, off []statmodel.Dtype
	if glm.weightpos != -1 {
		wgt = glm.data[glm.weightpos]
	}
	if glm.offsetpos != -1 {
		off = glm.data[glm.offsetpos]
	}

	xdat := make([][]statmodel.Dtype, len(glm.xpos))
	for j, k := range glm.xpos {
		xdat[j] = glm.data[k]
	}

	var dev []float64

	for iter := 0; iter < maxiter; iter++ {

		zero(xtx)
		zero(xty)

		zero(linpred)
		for j := range glm.xpos {
			for i := range linpred {
				linpred[i] += float64(xdat[j][i]) * params[j]
			}
		}
		if off != nil {
			for i := range linpred {
				linpred[i] += float64(off[i])
			}
		}

		if iter == 0 {
			glm.startingMu(yda, mn)
		} else {
			glm.link.InvLink(linpred, mn)
		}

		glm.link.Deriv(mn, lderiv)
		glm.vari.Var(mn, va)

		devi := glm.fam.Deviance(yda, mn, wgt, 1)

		// Working weights for the WLS step
		for i := range yda {
			wk[i] = 1 / (lderiv[i] * lderiv[i] * va[i])
			if wgt != nil {
				wk[i] *= float64(wgt[i])
			}
		}

		// Working response for the WLS step
		for i := range yda {
			adjy[i] = linpred[i] + lderiv[i]*(float64(yda[i])-mn[i])
			if off != nil {
				adjy[i] -= float64(off[i])
			}
		}

		// Weighted moment matrices.  For large data sets this is by
		// far the most expensive step.
		glm.irlsXprod(xdat, adjy, wk, xty, xtx)

		// Fill in the unfilled triangle of xtx
		for j1 := range glm.xpos {
			for j2 := j1 + 1; j2 < nvar; j2++ {
				xtx[j1*nvar+j2] = xtx[j2*nvar+j1]
			}
		}

		// Solve the WLS problem for the updated parameters
		xtxm := mat.NewDense(nvar, nvar, xtx)
		xtyv := mat.NewVecDense(nvar, xty)
		if err := nparam.SolveVec(xtxm, xtyv); err != nil {
			for j := 0; j < nvar; j++ {
				fmt.Printf("%8d %12.4f %12.4f\n", j, xty[j], xtx[j*nvar+j])
			}
			panic(err)
		}
		params = nparam.RawVector().Data

		dev = append(dev, devi)
		if len(dev) > 3 && math.Abs(dev[len(dev)-1]-dev[len(dev)-2]) < irlsDevTol {
			break
		}

		if glm.log != nil {
			glm.log.Printf("Iteration %d: deviance=%.10f\n", iter+1, devi)
		}
	}

	if glm.log != nil {
		glm.log.Print("IRLS converged\n")
	}

	glm.putNslice(linpred)
	glm.putNslice(mn)
	glm.putNslice(va)
	glm.putNslice(lderiv)
	glm.putNslice(wk)
	glm.putNslice(adjy)

	return params
}

// irlsXprod accumulates x'wy into xty and the lower triangle of x'wx
// into xtx.
func (glm *GLM) irlsXprod(xdat [][]statmodel.Dtype, adjy, wk, xty, xtx []float64) {

	if len(adjy) >= glm.concurrentIRLS {
		glm.irlsXprodConcurrent(xdat, adjy, wk, xty, xtx)
		return
	}

	nvar := len(xdat)

	for j1 := range glm.xpos {

		xda := xdat[j1]
		var u float64
		for i := range adjy {
			u += adjy[i] * float64(xda[i]) * wk[i]
		}
		xty[j1] += u

		for j2 := 0; j2 <= j1; j2++ {
			xdb := xdat[j2]
			var u float64
			for i := range xda {
				u += float64(xda[i]*xdb[i]) * wk[i]
			}
			xtx[j1*nvar+j2] += u
		}
	}
}

// irlsXprodConcurrent computes the same products as irlsXprod with
// one goroutine per entry.  Entries are disjoint so no locking is
// needed.
func (glm *GLM) irlsXprodConcurrent(xdat [][]statmodel.Dtype, adjy, wk, xty, xtx []float64) {

	nvar := len(xdat)

	var wg sync.WaitGroup

	for j1 := range glm.xpos {

		xda := xdat[j1]
		wg.Add(1)
		go func(j1 int) {
			defer wg.Done()
			var u float64
			for i := range adjy {
				u += adjy[i] * float64(xda[i]) * wk[i]
			}
			xty[j1] += u
		}(j1)

		for j2 := 0; j2 <= j1; j2++ {
			xdb := xdat[j2]
			wg.Add(1)
			go func(j1, j2 int) {
				defer wg.Done()
				var u float64
				for i := range xda {
					u += float64(xda[i]*xdb[i]) * wk[i]
				}
				xtx[j1*nvar+j2] += u
			}(j1, j2)
		}
	}

	wg.Wait()
}

// startingMu sets initial mean values for the first IRLS iteration,
// shrinking the observed response halfway toward a central value.
func (glm *GLM) startingMu(y []statmodel.Dtype, mn []float64) {

	var q float64
	if strings.ToLower(glm.fam.Name) == "binomial" {
		q = 0.5
	} else {
		for i := range y {
			q += float64(y[i])
		}
		q /= float64(len(y))
	}
	for i := range mn {
		mn[i] = (float64(y[i]) + q) / 2
		if mn[i] < 0.1 {
			mn[i] = 0.1
		}
	}
}
