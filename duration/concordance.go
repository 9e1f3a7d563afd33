package duration

import (
	"math"
	"sort"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/bioERGOtech/VERO-Code-Salerno/statmodel"
)

// Concordance calculates the survival concordance of Uno et al.
// (https://www.ncbi.nlm.nih.gov/pmc/articles/PMC3079915).  Pairs are
// weighted by the inverse probability of censoring, so the statistic
// is not biased by the censoring distribution.
type Concordance struct {

	// The risk scores that are being assessed
	score []float64

	// Event or censoring time
	time []float64

	// Event status
	status []float64

	// Number of randomly sampled pairs used to estimate the
	// concordance
	npair int

	// Source of randomness for pair sampling
	rng *rand.Rand

	// The survival function for the censoring distribution
	sf *SurvfuncRight
}

// NewConcordance creates a new Concordance value with the given
// times, status indicators, and risk scores.  Call Done to prepare
// the value before requesting concordance statistics.
func NewConcordance(time, status, score []float64) *Concordance {

	return &Concordance{
		time:   time,
		status: status,
		score:  score,
		npair:  10000,
		rng:    rand.New(rand.NewSource(4523745)),
	}
}

// NumPair sets the number of pairs of observations sampled at random
// to estimate the concordance.
func (c *Concordance) NumPair(npair int) *Concordance {
	c.npair = npair
	return c
}

// Seed sets the seed of the random number generator used to sample
// pairs of observations.
func (c *Concordance) Seed(seed uint64) *Concordance {
	c.rng = rand.New(rand.NewSource(seed))
	return c
}

// Done signals that the Concordance value has been built and now can
// be fit.
func (c *Concordance) Done() *Concordance {

	n := len(c.time)

	// Sort everything by time, flipping the status to estimate the
	// censoring distribution.
	ii := make([]int, n)
	time1 := make([]float64, n)
	statusr := make([]float64, n)
	status1 := make([]float64, n)
	score1 := make([]float64, n)
	copy(time1, c.time)
	floats.Argsort(time1, ii)

	ncens := 0.0
	for i, j := range ii {
		statusr[i] = 1 - c.status[j]
		status1[i] = c.status[j]
		score1[i] = c.score[j]
		ncens += statusr[i]
	}

	da := statmodel.NewDataset([][]statmodel.Dtype{time1, statusr}, []string{"Time", "Status"})
	var err error
	c.sf, err = NewSurvfuncRight(da, "Time", "Status", nil)
	if err != nil {
		panic(err)
	}
	if ncens == 0 {
		// Without censoring the weighting distribution is P(T>t) = 1
		// for all t.
		c.sf.times = []float64{0, math.Inf(1)}
		c.sf.survProb = []float64{1, 1}
	}

	c.time = time1
	c.status = status1
	c.score = score1

	return c
}

// Concordance returns the concordance statistic, using the given
// truncation parameter.  Only event times below the truncation point
// contribute to the statistic.
func (c *Concordance) Concordance(trunc float64) float64 {

	n := len(c.time)

	jt := sort.SearchFloat64s(c.time, trunc)
	if jt <= 0 {
		panic("not enough data below the truncation point")
	}

	time := c.time
	status := c.status
	score := c.score

	st := c.sf.Time()
	sp := c.sf.SurvProb()

	var numer, denom float64

	for i := 0; i < c.npair; i++ {

		// Sample a usable pair: the first case has the earlier time,
		// below the truncation point, and an observed event.
		var j1, j2 int
		for {
			j1 = c.rng.Intn(n)
			if j1 >= jt {
				continue
			}
			j2 = c.rng.Intn(n)
			if j2 <= j1 {
				continue
			}
			if (time[j1] < time[j2]) && (status[j1] == 1) {
				break
			}
		}

		// Inverse probability of censoring weight at the earlier
		// event time.
		jj := sort.SearchFloat64s(st, time[j1])
		if jj == len(st) {
			jj--
		}
		g := sp[jj]

		denom += 1 / (g * g)
		if score[j1] > score[j2] {
			numer += 1 / (g * g)
		}
	}

	return numer / denom
}
