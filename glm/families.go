package glm

import (
	"fmt"
	"math"

	"github.com/bioERGOtech/VERO-Code-Salerno/statmodel"
)

// FamilyType is the type of GLM family used in a model.
type FamilyType uint8

// BinomialFamily, ... are families for a GLM.
const (
	BinomialFamily FamilyType = iota
	PoissonFamily
	QuasiPoissonFamily
	GaussianFamily
	GammaFamily
	InvGaussianFamily
	NegBinomFamily
	TweedieFamily
)

// LogLikeFunc evaluates the log-likelihood for a GLM given the data,
// the mean values, the weights, the scale parameter, and the exact
// flag.  When the exact flag is false, additive terms that are
// constant with respect to the mean may be omitted.  The weights may
// be nil, in which case all weights are 1.
type LogLikeFunc func([]statmodel.Dtype, []float64, []statmodel.Dtype, float64, bool) float64

// DevianceFunc evaluates the deviance for a GLM given the data, the
// mean values, the weights, and the scale parameter.  The weights may
// be nil, in which case all weights are 1.
type DevianceFunc func([]statmodel.Dtype, []float64, []statmodel.Dtype, float64) float64

// Family represents a generalized linear model family.
type Family struct {

	// The name of the family
	Name string

	// The numeric code for the family
	TypeCode FamilyType

	// The log-likelihood function for the family
	LogLike LogLikeFunc

	// The deviance function for the family
	Deviance DevianceFunc

	// How the dispersion is handled when not set explicitly
	dispersionDefaultMethod DispersionForm

	// The default dispersion value for a fixed dispersion
	dispersionDefaultValue float64

	// The valid links for this family, canonical link first
	validLinks []LinkType

	// The link in use by the family, only set for the negative
	// binomial and Tweedie families
	link *Link

	// Auxiliary parameter: negative binomial parameter or Tweedie
	// variance power
	alpha float64
}

// weightAt returns the i'th case weight, taking a nil weight vector
// to mean unit weights.
func weightAt(wt []statmodel.Dtype, i int) float64 {
	if wt == nil {
		return 1
	}
	return float64(wt[i])
}

// NewFamily returns a family object corresponding to the given type
// code.  The negative binomial and Tweedie families have auxiliary
// parameters and are constructed with NewNegBinomFamily and
// NewTweedieFamily instead.
func NewFamily(fam FamilyType) *Family {

	switch fam {
	case PoissonFamily:
		return &Family{
			Name:                    "Poisson",
			TypeCode:                PoissonFamily,
			LogLike:                 poissonLogLike,
			Deviance:                poissonDeviance,
			validLinks:              []LinkType{LogLink, IdentityLink},
			dispersionDefaultMethod: DispersionFixed,
			dispersionDefaultValue:  1,
		}
	case QuasiPoissonFamily:
		// Poisson mean structure with a freely estimated scale
		return &Family{
			Name:                    "QuasiPoisson",
			TypeCode:                QuasiPoissonFamily,
			LogLike:                 poissonLogLike,
			Deviance:                poissonDeviance,
			validLinks:              []LinkType{LogLink, IdentityLink},
			dispersionDefaultMethod: DispersionFree,
			dispersionDefaultValue:  1,
		}
	case BinomialFamily:
		return &Family{
			Name:                    "Binomial",
			TypeCode:                BinomialFamily,
			LogLike:                 binomialLogLike,
			Deviance:                binomialDeviance,
			validLinks:              []LinkType{LogitLink, LogLink, IdentityLink},
			dispersionDefaultMethod: DispersionFixed,
			dispersionDefaultValue:  1,
		}
	case GaussianFamily:
		return &Family{
			Name:                    "Gaussian",
			TypeCode:                GaussianFamily,
			LogLike:                 gaussianLogLike,
			Deviance:                gaussianDeviance,
			validLinks:              []LinkType{IdentityLink, LogLink, RecipLink},
			dispersionDefaultMethod: DispersionFree,
			dispersionDefaultValue:  1,
		}
	case GammaFamily:
		return &Family{
			Name:                    "Gamma",
			TypeCode:                GammaFamily,
			LogLike:                 gammaLogLike,
			Deviance:                gammaDeviance,
			validLinks:              []LinkType{RecipLink, LogLink, IdentityLink},
			dispersionDefaultMethod: DispersionFree,
		}
	case InvGaussianFamily:
		return &Family{
			Name:                    "InvGaussian",
			TypeCode:                InvGaussianFamily,
			LogLike:                 invGaussLogLike,
			Deviance:                invGaussianDeviance,
			validLinks:              []LinkType{RecipSquaredLink, RecipLink, LogLink, IdentityLink},
			dispersionDefaultMethod: DispersionFree,
		}
	default:
		panic(fmt.Sprintf("Unknown family: %v\n", fam))
	}
}

// IsValidLink returns true if the link can be used with the family.
func (fam *Family) IsValidLink(link *Link) bool {

	for _, q := range fam.validLinks {
		if link.TypeCode == q {
			return true
		}
	}

	return false
}

func poissonLogLike(y []statmodel.Dtype, mn []float64, wt []statmodel.Dtype, scale float64, exact bool) float64 {

	var ll float64
	for i := range y {
		w := weightAt(wt, i)
		ll += w * (float64(y[i])*math.Log(mn[i]) - mn[i])
		if exact {
			g, _ := math.Lgamma(float64(y[i]) + 1)
			ll -= w * g
		}
	}

	return ll
}

func binomialLogLike(y []statmodel.Dtype, mn []float64, wt []statmodel.Dtype, scale float64, exact bool) float64 {

	var ll float64
	for i := range y {
		// The offset keeps the odds ratio away from zero when the
		// fitted mean underflows.
		r := mn[i]/(1-mn[i]) + 1e-200
		ll += weightAt(wt, i) * (float64(y[i])*math.Log(r) + math.Log(1-mn[i]))
	}

	return ll
}

func gaussianLogLike(y []statmodel.Dtype, mn []float64, wt []statmodel.Dtype, scale float64, exact bool) float64 {

	var ll, ws float64
	for i := range y {
		w := weightAt(wt, i)
		r := float64(y[i]) - mn[i]
		ll -= w * r * r / (2 * scale)
		ws += w
	}
	ll -= ws * math.Log(2*math.Pi*scale) / 2

	return ll
}

func gammaLogLike(y []statmodel.Dtype, mn []float64, wt []statmodel.Dtype, scale float64, exact bool) float64 {

	var ll float64
	for i := range y {
		w := weightAt(wt, i)
		ll -= w * (float64(y[i])/mn[i] + math.Log(mn[i])) / scale
		if exact {
			v := (scale - 1) * math.Log(float64(y[i]))
			g, _ := math.Lgamma(1 / scale)
			v += math.Log(scale) + scale*g
			ll -= w * v / scale
		}
	}

	return ll
}

func invGaussLogLike(y []statmodel.Dtype, mn []float64, wt []statmodel.Dtype, scale float64, exact bool) float64 {

	var ll, ws float64
	for i := range y {
		w := weightAt(wt, i)
		r := float64(y[i]) - mn[i]
		ll -= 0.5 * w * r * r / (float64(y[i]) * mn[i] * mn[i] * scale)
		ws += w
		if exact {
			ll -= 0.5 * w * math.Log(scale*float64(y[i]*y[i]*y[i]))
		}
	}
	ll -= 0.5 * ws * math.Log(2*math.Pi)

	return ll
}

func poissonDeviance(y []statmodel.Dtype, mn []float64, wgt []statmodel.Dtype, scale float64) float64 {

	var dev float64
	for i := range y {
		if y[i] > 0 {
			dev += 2 * weightAt(wgt, i) * float64(y[i]) * math.Log(float64(y[i])/mn[i])
		}
	}

	return dev / scale
}

func binomialDeviance(y []statmodel.Dtype, mn []float64, wgt []statmodel.Dtype, scale float64) float64 {

	var dev float64
	for i := range y {
		dev -= 2 * weightAt(wgt, i) * (float64(y[i])*math.Log(mn[i]) + (1-float64(y[i]))*math.Log(1-mn[i]))
	}

	return dev
}

func gammaDeviance(y []statmodel.Dtype, mn []float64, wgt []statmodel.Dtype, scale float64) float64 {

	var dev float64
	for i := range y {
		dev += 2 * weightAt(wgt, i) * ((float64(y[i])-mn[i])/mn[i] - math.Log(float64(y[i])/mn[i]))
	}

	return dev
}

func invGaussianDeviance(y []statmodel.Dtype, mn []float64, wgt []statmodel.Dtype, scale float64) float64 {

	var dev float64
	for i := range y {
		r := float64(y[i]) - mn[i]
		dev += weightAt(wgt, i) * r * r / (float64(y[i]) * mn[i] * mn[i])
	}

	return dev / scale
}

func gaussianDeviance(y []statmodel.Dtype, mn []float64, wgt []statmodel.Dtype, scale float64) float64 {

	var dev float64
	for i := range y {
		r := float64(y[i]) - mn[i]
		dev += weightAt(wgt, i) * r * r
	}

	return dev / scale
}

// NewTweedieFamily returns a family object for the Tweedie family
// with the given variance power, variance = mean^pw.  If link is nil
// the canonical link is used, which is a power function with exponent
// 1 - pw.  Passing NewLink(LogLink) gives the log link, which avoids
// domain violations.
func NewTweedieFamily(pw float64, link *Link) *Family {

	if link == nil {
		link = NewPowerLink(1 - pw)
	}

	loglike := func(y []statmodel.Dtype, mn []float64, wt []statmodel.Dtype, scale float64, exact bool) float64 {

		var ll float64
		for i := range y {
			lmn := math.Log(mn[i])
			ll += weightAt(wt, i) * (float64(y[i])*math.Exp((1-pw)*lmn)/(1-pw) - math.Exp((2-pw)*lmn)/(2-pw))
		}
		ll /= scale

		if exact {
			// The normalizing constant is an infinite series, summed
			// here over the terms within e^-37 of the dominant one.
			alp := float64(2-pw) / float64(1-pw)
			lscale := math.Log(scale)
			for i := range y {

				// The constant is 1 at zero
				if y[i] == 0 {
					continue
				}

				lz := -alp*math.Log(float64(y[i])) + alp*math.Log(pw-1) - math.Log(2-pw) - (1-alp)*lscale
				kf := math.Pow(float64(y[i]), 2-pw) / (scale * float64(2-pw))
				k := int(math.Round(kf))
				if k < 1 {
					k = 1
				}

				term := func(j int) float64 {
					return float64(j)*lz - lgamma(float64(j+1)) - lgamma(-alp*float64(j))
				}

				// Sum outward from the dominant term.
				w0 := term(k)
				ws := 1.0
				for j := k + 1; j < 200; j++ {
					w1 := term(j)
					if w1 < w0-37 {
						break
					}
					ws += math.Exp(w1 - w0)
					if j > 198 {
						println("Tweedie upper tail...")
					}
				}
				for j := k - 1; j > 0; j-- {
					w1 := term(j)
					if w1 < w0-37 {
						break
					}
					ws += math.Exp(w1 - w0)
				}

				w := weightAt(wt, i)
				ll -= w * math.Log(float64(y[i]))
				ll += w * (w0 + math.Log(ws))
			}
		}

		return ll
	}

	deviance := func(y []statmodel.Dtype, mn []float64, wgt []statmodel.Dtype, scale float64) float64 {

		var dev float64
		for i := range y {
			u1 := math.Pow(float64(y[i]), 2-pw) / ((1 - pw) * (2 - pw))
			u2 := float64(y[i]) * math.Pow(mn[i], 1-pw) / (1 - pw)
			u3 := math.Pow(mn[i], 2-pw) / (2 - pw)
			dev += 2 * weightAt(wgt, i) * (u1 - u2 + u3)
		}

		return dev / scale
	}

	return &Family{
		Name:                    "Tweedie",
		TypeCode:                TweedieFamily,
		LogLike:                 loglike,
		Deviance:                deviance,
		alpha:                   pw,
		validLinks:              []LinkType{LogLink, PowerLink},
		link:                    link,
		dispersionDefaultMethod: DispersionFree,
	}
}

func lgamma(x float64) float64 {
	u, s := math.Lgamma(x)
	if s != 1 {
		panic("lgamma")
	}
	return u
}

// NewNegBinomFamily returns a family object for the negative binomial
// family with the given dispersion parameter and link function.
func NewNegBinomFamily(alpha float64, link *Link) *Family {

	loglike := func(y []statmodel.Dtype, mn []float64, wt []statmodel.Dtype, scale float64, exact bool) float64 {

		var ll float64
		lp := make([]float64, len(y))
		link.Link(mn, lp)
		c3, _ := math.Lgamma(1 / alpha)

		for i := range y {

			elp := math.Exp(lp[i])

			c1, _ := math.Lgamma(float64(y[i]) + 1/alpha)
			c2, _ := math.Lgamma(float64(y[i]) + 1)

			v := float64(y[i]) * math.Log(alpha*elp/(1+alpha*elp))
			v -= math.Log(1+alpha*elp) / alpha

			ll += weightAt(wt, i) * (v + c1 - c2 - c3)
		}

		return ll
	}

	deviance := func(y []statmodel.Dtype, mn []float64, wt []statmodel.Dtype, scale float64) float64 {

		var dev float64
		lp := make([]float64, len(y))
		link.Link(mn, lp)

		for i := range y {
			w := weightAt(wt, i)
			if y[i] == 1 {
				z1 := float64(y[i]) * math.Log(float64(y[i])/mn[i])
				z2 := (1 + alpha*float64(y[i])) / alpha
				z2 *= math.Log((1 + alpha*float64(y[i])) / (1 + alpha*mn[i]))
				dev += w * (z1 - z2)
			} else {
				dev += 2 * w * math.Log(1+alpha*mn[i]) / alpha
			}
		}

		return dev / scale
	}

	return &Family{
		Name:                    "NegBinom",
		TypeCode:                NegBinomFamily,
		LogLike:                 loglike,
		Deviance:                deviance,
		alpha:                   alpha,
		validLinks:              []LinkType{LogLink, IdentityLink},
		link:                    link,
		dispersionDefaultMethod: DispersionFree,
	}
}
