// Package dose standardizes drug dose columns to milligrams and
// derives anthropometric and clinical index columns (BMI, BSA, NLR,
// eGFR) used by the downstream models.
package dose

import (
	"fmt"
	"math"
	"strings"
)

// Unit identifies a recognized dose unit.
type Unit int

const (
	// UnitUnknown marks an unparseable unit string.
	UnitUnknown Unit = iota

	// UnitMG is milligrams.
	UnitMG

	// UnitG is grams.
	UnitG

	// UnitMCG is micrograms.
	UnitMCG

	// UnitMGPerKG is milligrams per kilogram of body weight.
	UnitMGPerKG

	// UnitMGPerM2 is milligrams per square meter of body surface.
	UnitMGPerM2

	// UnitUI is international units, not convertible to mass.
	UnitUI

	// UnitUIPerML is international units per milliliter, not
	// convertible to mass.
	UnitUIPerML
)

// String returns the canonical name of the unit.
func (u Unit) String() string {
	switch u {
	case UnitMG:
		return "mg"
	case UnitG:
		return "g"
	case UnitMCG:
		return "mcg"
	case UnitMGPerKG:
		return "mg/kg"
	case UnitMGPerM2:
		return "mg/m2"
	case UnitUI:
		return "UI"
	case UnitUIPerML:
		return "UI/mL"
	}
	return "unknown"
}

// ParseUnit recognizes a raw dose unit string.  Comparison is case
// insensitive and tolerant of the µ character and of spacing.
func ParseUnit(s string) Unit {

	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "µ", "mc")
	s = strings.ReplaceAll(s, "μ", "mc")

	switch s {
	case "mg":
		return UnitMG
	case "g", "gr":
		return UnitG
	case "mcg", "ug":
		return UnitMCG
	case "mg/kg", "mgkg":
		return UnitMGPerKG
	case "mg/m2", "mg/mq", "mgm2":
		return UnitMGPerM2
	case "ui", "iu":
		return UnitUI
	case "ui/ml", "iu/ml":
		return UnitUIPerML
	}
	return UnitUnknown
}

// Convertible reports whether doses in the unit can be converted to
// milligrams, possibly requiring body weight or surface area.
func (u Unit) Convertible() bool {
	switch u {
	case UnitMG, UnitG, UnitMCG, UnitMGPerKG, UnitMGPerM2:
		return true
	}
	return false
}

// ToMG converts a dose value in the given unit to milligrams.
// weightKg is required for mg/kg and bsa (m²) for mg/m²; a
// non-positive value for the required quantity is an error.
func ToMG(dose float64, unit Unit, weightKg, bsa float64) (float64, error) {

	switch unit {
	case UnitMG:
		return dose, nil
	case UnitG:
		return 1000 * dose, nil
	case UnitMCG:
		return dose / 1000, nil
	case UnitMGPerKG:
		if weightKg <= 0 {
			return 0, fmt.Errorf("mg/kg dose requires a positive body weight")
		}
		return dose * weightKg, nil
	case UnitMGPerM2:
		if bsa <= 0 {
			return 0, fmt.Errorf("mg/m2 dose requires a positive body surface area")
		}
		return dose * bsa, nil
	}

	return 0, fmt.Errorf("unit %v is not convertible to mg", unit)
}

// BSA returns the body surface area in m² by the Mosteller formula.
func BSA(heightCm, weightKg float64) float64 {
	if heightCm <= 0 || weightKg <= 0 {
		return math.NaN()
	}
	return math.Sqrt(heightCm * weightKg / 3600)
}

// BMI returns the body mass index in kg/m².
func BMI(heightCm, weightKg float64) float64 {
	if heightCm <= 0 || weightKg <= 0 {
		return math.NaN()
	}
	h := heightCm / 100
	return weightKg / (h * h)
}

// NLR returns the neutrophil to lymphocyte ratio from the two
// differential percentages.
func NLR(neutrophilsPct, lymphocytesPct float64) float64 {
	if neutrophilsPct <= 0 || lymphocytesPct <= 0 {
		return math.NaN()
	}
	return neutrophilsPct / lymphocytesPct
}

// EGFR returns the estimated creatinine clearance in mL/min by the
// Cockcroft-Gault equation.  Creatinine is in mg/dL; the estimate is
// multiplied by 0.85 for female patients.
func EGFR(age, weightKg, creatinineMgDl float64, female bool) float64 {

	if age <= 0 || weightKg <= 0 || creatinineMgDl <= 0 {
		return math.NaN()
	}

	v := (140 - age) * weightKg / (72 * creatinineMgDl)
	if female {
		v *= 0.85
	}
	return v
}
