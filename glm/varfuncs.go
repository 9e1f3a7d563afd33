package glm

import (
	"fmt"
)

// VarianceType is used to specify a GLM variance function.
type VarianceType uint8

const (
	BinomialVar VarianceType = iota
	IdentityVar
	ConstantVar
	SquaredVar
	CubedVar
)

// Variance represents a GLM variance function, giving the variance of
// an observation as a function of its mean.
type Variance struct {
	Name  string
	Var   VecFunc
	Deriv VecFunc
}

// NewVariance returns the variance function for the given type code.
func NewVariance(vartype VarianceType) *Variance {

	switch vartype {
	case BinomialVar:
		return &Variance{
			Name: "Binomial",
			Var: apply(func(p float64) float64 {
				return p * (1 - p)
			}),
			Deriv: apply(func(p float64) float64 {
				return 1 - 2*p
			}),
		}
	case IdentityVar:
		return &Variance{
			Name:  "Identity",
			Var:   copyFunc,
			Deriv: func(mn, v []float64) { one(v) },
		}
	case ConstantVar:
		return &Variance{
			Name:  "Constant",
			Var:   func(mn, v []float64) { one(v) },
			Deriv: func(mn, v []float64) { zero(v) },
		}
	case SquaredVar:
		return &Variance{
			Name:  "Squared",
			Var:   apply(func(m float64) float64 { return m * m }),
			Deriv: apply(func(m float64) float64 { return 2 * m }),
		}
	case CubedVar:
		return &Variance{
			Name:  "Cubed",
			Var:   apply(func(m float64) float64 { return m * m * m }),
			Deriv: apply(func(m float64) float64 { return 3 * m * m }),
		}
	default:
		panic(fmt.Sprintf("Unknown variance function: %d\n", vartype))
	}
}

// NewNegBinomVariance returns a variance function for the negative
// binomial family with the given dispersion parameter alpha.  The
// variance for mean m is m + alpha*m^2.
func NewNegBinomVariance(alpha float64) *Variance {

	return &Variance{
		Var: apply(func(m float64) float64 {
			return m + alpha*m*m
		}),
		Deriv: apply(func(m float64) float64 {
			return 1 + 2*alpha*m
		}),
	}
}
