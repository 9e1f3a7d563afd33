package glm

import (
	"fmt"
	"math"
)

// VecFunc maps one float64 slice onto another of the same length.
type VecFunc func([]float64, []float64)

// Link specifies a GLM link function.
type Link struct {
	Name string

	TypeCode LinkType

	// Link maps the mean value to the linear predictor.
	Link VecFunc

	// InvLink maps the linear predictor to the mean value.
	InvLink VecFunc

	// Deriv calculates the derivative of the link function.
	Deriv VecFunc

	// Deriv2 calculates the second derivative of the link function.
	Deriv2 VecFunc
}

// LinkType is used to specify a GLM link function.
type LinkType uint8

// LogLink, etc. indicate the different link functions.
const (
	LogLink LinkType = iota
	IdentityLink
	LogitLink
	CloglogLink
	RecipLink
	RecipSquaredLink
	PowerLink
)

// NewPowerLink returns the power link g(m) = m^p.  A power link with
// exponent 1-p is the canonical link of a Tweedie family with
// variance power p.
func NewPowerLink(p float64) *Link {
	return &Link{
		Name:     fmt.Sprintf("Power(%.2f)", p),
		TypeCode: PowerLink,
		Link:     powFunc(p, 1),
		InvLink:  powFunc(1/p, 1),
		Deriv:    powFunc(p-1, p),
		Deriv2:   powFunc(p-2, p*(p-1)),
	}
}

// apply builds a VecFunc from a scalar function.
func apply(f func(float64) float64) VecFunc {
	return func(x, y []float64) {
		for i, v := range x {
			y[i] = f(v)
		}
	}
}

// powFunc builds a VecFunc computing s*x^p.
func powFunc(p, s float64) VecFunc {
	return apply(func(v float64) float64 {
		return s * math.Pow(v, p)
	})
}

func copyFunc(x, y []float64) {
	copy(y, x)
}

// NewLink returns the link function for the given type code.
func NewLink(link LinkType) *Link {

	switch link {
	case LogLink:
		return &Link{
			Name:     "Log",
			TypeCode: LogLink,
			Link:     apply(math.Log),
			InvLink:  apply(math.Exp),
			Deriv:    apply(func(v float64) float64 { return 1 / v }),
			Deriv2:   apply(func(v float64) float64 { return -1 / (v * v) }),
		}
	case IdentityLink:
		return &Link{
			Name:     "Identity",
			TypeCode: IdentityLink,
			Link:     copyFunc,
			InvLink:  copyFunc,
			Deriv:    func(x, y []float64) { one(y) },
			Deriv2:   func(x, y []float64) { zero(y) },
		}
	case LogitLink:
		return &Link{
			Name:     "Logit",
			TypeCode: LogitLink,
			Link: apply(func(v float64) float64 {
				return math.Log(v / (1 - v))
			}),
			InvLink: apply(func(v float64) float64 {
				return 1 / (1 + math.Exp(-v))
			}),
			Deriv: apply(func(v float64) float64 {
				return 1 / (v * (1 - v))
			}),
			Deriv2: apply(func(v float64) float64 {
				f := v * (1 - v)
				return (2*v - 1) / (f * f)
			}),
		}
	case CloglogLink:
		return &Link{
			Name:     "CLogLog",
			TypeCode: CloglogLink,
			Link: apply(func(v float64) float64 {
				return math.Log(-math.Log(1 - v))
			}),
			InvLink: apply(func(v float64) float64 {
				return 1 - math.Exp(-math.Exp(v))
			}),
			Deriv: apply(func(v float64) float64 {
				return 1 / ((v - 1) * math.Log(1-v))
			}),
			Deriv2: apply(func(v float64) float64 {
				f := math.Log(1 - v)
				r := -1 / ((1 - v) * (1 - v) * f)
				return r * (1 + 1/f)
			}),
		}
	case RecipLink:
		return &Link{
			Name:     "Recip",
			TypeCode: RecipLink,
			Link:     powFunc(-1, 1),
			InvLink:  powFunc(-1, 1),
			Deriv:    powFunc(-2, -1),
			Deriv2:   powFunc(-3, 2),
		}
	case RecipSquaredLink:
		return &Link{
			Name:     "RecipSquared",
			TypeCode: RecipSquaredLink,
			Link:     powFunc(-2, 1),
			InvLink:  powFunc(-0.5, 1),
			Deriv:    powFunc(-3, -2),
			Deriv2:   powFunc(-4, 6),
		}
	default:
		panic(fmt.Sprintf("Link unknown: %v\n", link))
	}
}
