// Package relimp ranks predictors by relative importance across the
// fitted models, combining effect size on standardized covariates,
// bootstrap selection stability under the elastic net, and drop-one
// loss of predictive strength.  It also provides the predictive
// metrics (AUC, Brier score, C-index) used by model validation.
package relimp

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/bioERGOtech/VERO-Code-Salerno/duration"
)

// AUC returns the area under the ROC curve for binary outcomes y
// (0/1) against scores, counting tied scores as half-concordant.
func AUC(y, score []float64) float64 {

	var num, den float64
	for i := range y {
		if y[i] != 1 {
			continue
		}
		for j := range y {
			if y[j] != 0 {
				continue
			}
			den++
			switch {
			case score[i] > score[j]:
				num++
			case score[i] == score[j]:
				num += 0.5
			}
		}
	}

	if den == 0 {
		return math.NaN()
	}
	return num / den
}

// BrierScore returns the mean squared difference between binary
// outcomes y and predicted probabilities p.
func BrierScore(y, p []float64) float64 {

	var v float64
	for i := range y {
		d := p[i] - y[i]
		v += d * d
	}

	return v / float64(len(y))
}

// TruncTime returns the q'th quantile of the observed times, used to
// truncate the concordance calculation.
func TruncTime(time []float64, q float64) float64 {

	x := make([]float64, len(time))
	copy(x, time)
	sort.Float64s(x)

	return stat.Quantile(q, stat.Empirical, x, nil)
}

// CIndex returns the Uno concordance index of risk scores against
// right-censored outcomes, truncated at the q'th quantile of the
// observed times.
func CIndex(time, status, score []float64, q float64) float64 {

	c := duration.NewConcordance(time, status, score).Done()

	return c.Concordance(TruncTime(time, q))
}

// LogisticProbs maps linear predictors to probabilities by the
// inverse logit.
func LogisticProbs(lp []float64) []float64 {

	p := make([]float64, len(lp))
	for i, v := range lp {
		p[i] = 1 / (1 + math.Exp(-v))
	}

	return p
}
