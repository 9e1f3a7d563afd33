package duration

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"

	"github.com/bioERGOtech/VERO-Code-Salerno/statmodel"
)

func TestAFTGrad(t *testing.T) {

	for _, dt := range []struct {
		data    statmodel.Dataset
		timevar string
		status  string
		xnames  []string
		params  [][]float64
	}{
		{
			data:    data1(),
			timevar: "Time",
			status:  "Status",
			xnames:  []string{"X"},
			params:  [][]float64{{0, 0}, {1, 0.5}, {-0.5, -0.3}},
		},
		{
			data:    data3(),
			timevar: "Time",
			status:  "Status",
			xnames:  []string{"X1", "X2"},
			params:  [][]float64{{0, 0, 0}, {0.2, -0.1, 0.3}, {-0.3, 0.2, -0.4}},
		},
	} {
		model, err := NewWeibullAFT(dt.data, dt.timevar, dt.status, dt.xnames, nil)
		if err != nil {
			t.Fatal(err)
		}

		p := len(dt.params[0])
		ngrad := make([]float64, p)
		score := make([]float64, p)
		nhrow := make([]float64, p)
		hess := make([]float64, p*p)

		loglike := func(x []float64) float64 {
			return model.LogLike(&AFTParameter{x}, true)
		}

		for _, params := range dt.params {

			fd.Gradient(ngrad, loglike, params, nil)
			model.Score(&AFTParameter{params}, score)
			if !floats.EqualApprox(score, ngrad, 1e-5) {
				t.Fail()
			}

			// Check each row of the Hessian against a numeric
			// derivative of the score.
			model.Hessian(&AFTParameter{params}, statmodel.ObsHess, hess)
			for j := 0; j < p; j++ {
				jj := j
				scorej := func(x []float64) float64 {
					sc := make([]float64, p)
					model.Score(&AFTParameter{x}, sc)
					return sc[jj]
				}
				fd.Gradient(nhrow, scorej, params, nil)
				if !floats.EqualApprox(hess[j*p:(j+1)*p], nhrow, 1e-4) {
					t.Fail()
				}
			}
		}
	}
}

// With no censoring and group 1 times exactly e times the group 0
// times, the group coefficient is exactly 1.
func TestAFTGroupShift(t *testing.T) {

	base := []float64{1, 2, 3, 5, 8, 13}

	var time, status, icept, group []statmodel.Dtype
	for _, b := range base {
		time = append(time, b)
		status = append(status, 1)
		icept = append(icept, 1)
		group = append(group, 0)
	}
	for _, b := range base {
		time = append(time, math.E*b)
		status = append(status, 1)
		icept = append(icept, 1)
		group = append(group, 1)
	}

	data := statmodel.NewDataset([][]statmodel.Dtype{time, status, icept, group},
		[]string{"Time", "Status", "Icept", "Group"})

	model, err := NewWeibullAFT(data, "Time", "Status", []string{"Icept", "Group"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	result, err := model.Fit()
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(result.Params()[1]-1) > 1e-4 {
		t.Fail()
	}

	tr := result.TimeRatios()
	if math.Abs(tr[1]-math.E) > 1e-3 {
		t.Fail()
	}

	// Smoke test
	_ = result.Summary().String()
}

func TestAFTSim(t *testing.T) {

	n := 4000
	rng := rand.New(rand.NewSource(2384))

	icept := make([]statmodel.Dtype, n)
	x := make([]statmodel.Dtype, n)
	time := make([]statmodel.Dtype, n)
	status := make([]statmodel.Dtype, n)

	// log T = 1 + 0.5*x + sigma*G with sigma=0.5, censored at a
	// fixed time.
	sigma := 0.5
	for i := 0; i < n; i++ {
		icept[i] = 1
		x[i] = rng.NormFloat64()
		lp := 1 + 0.5*float64(x[i])
		lt := lp + sigma*math.Log(rng.ExpFloat64())
		time[i] = math.Exp(lt)
		status[i] = 1
		if time[i] > 8 {
			time[i] = 8
			status[i] = 0
		}
	}

	data := statmodel.NewDataset([][]statmodel.Dtype{time, status, icept, x},
		[]string{"time", "status", "icept", "x"})

	model, err := NewWeibullAFT(data, "time", "status", []string{"icept", "x"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	result, err := model.Fit()
	if err != nil {
		t.Fatal(err)
	}

	par := result.Params()
	if math.Abs(par[0]-1) > 0.1 {
		t.Fail()
	}
	if math.Abs(par[1]-0.5) > 0.1 {
		t.Fail()
	}
	if math.Abs(result.Scale()-sigma) > 0.1 {
		t.Fail()
	}

	se := result.StdErr()
	if se == nil {
		t.Fatal("no standard errors")
	}
	for _, s := range se {
		if s <= 0 || s > 0.1 {
			t.Fail()
		}
	}
}

func TestAFTWeights(t *testing.T) {

	// The weighted data and its unrolled version give the same fit.
	da1 := [][]statmodel.Dtype{
		{1, 2, 3, 4, 5, 6},
		{1, 1, 0, 1, 1, 0},
		{1, 1, 1, 1, 1, 1},
		{4, 2, 5, 6, 6, 5},
		{1, 2, 1, 2, 1, 2},
	}
	varnames := []string{"Time", "Status", "Icept", "X", "W"}
	wdata1 := statmodel.NewDataset(da1, varnames)

	da2 := [][]statmodel.Dtype{
		{1, 2, 2, 3, 4, 4, 5, 6, 6},
		{1, 1, 1, 0, 1, 1, 1, 0, 0},
		{1, 1, 1, 1, 1, 1, 1, 1, 1},
		{4, 2, 2, 5, 6, 6, 6, 5, 5},
	}
	wdata2 := statmodel.NewDataset(da2, varnames[0:4])

	c := DefaultWeibullAFTConfig()
	c.WeightVar = "W"

	m1, err := NewWeibullAFT(wdata1, "Time", "Status", []string{"Icept", "X"}, c)
	if err != nil {
		t.Fatal(err)
	}
	m2, err := NewWeibullAFT(wdata2, "Time", "Status", []string{"Icept", "X"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	r1, err := m1.Fit()
	if err != nil {
		t.Fatal(err)
	}
	r2, err := m2.Fit()
	if err != nil {
		t.Fatal(err)
	}

	if !floats.EqualApprox(r1.Params(), r2.Params(), 1e-5) {
		t.Fail()
	}
	if !floats.EqualApprox(r1.StdErr(), r2.StdErr(), 1e-5) {
		t.Fail()
	}
}
