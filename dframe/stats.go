package dframe

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary holds descriptive statistics for a numeric column, computed
// over the non-missing values.
type Summary struct {
	N       int
	Missing int
	Mean    float64
	SD      float64
	Min     float64
	Median  float64
	Max     float64
}

// Describe computes descriptive statistics for a numeric or date
// column.
func (c *Column) Describe() Summary {

	var x []float64
	for i, v := range c.Num {
		if !c.Miss[i] {
			x = append(x, v)
		}
	}

	s := Summary{
		N:       len(x),
		Missing: c.NumMissing(),
	}

	if len(x) == 0 {
		s.Mean = math.NaN()
		s.SD = math.NaN()
		s.Min = math.NaN()
		s.Median = math.NaN()
		s.Max = math.NaN()
		return s
	}

	s.Mean = stat.Mean(x, nil)
	s.SD = math.Sqrt(stat.Variance(x, nil))

	sort.Float64s(x)
	s.Min = x[0]
	s.Max = x[len(x)-1]
	s.Median = stat.Quantile(0.5, stat.Empirical, x, nil)

	return s
}

// Skewed reports whether the distribution of a numeric column is
// skewed, using |mean - median| / sd > 1 as the criterion.
func (c *Column) Skewed() bool {
	s := c.Describe()
	if s.N == 0 || s.SD == 0 || math.IsNaN(s.SD) {
		return false
	}
	return math.Abs(s.Mean-s.Median)/s.SD > 1
}

// Mode returns the most frequent non-missing level of a categorical
// or text column, breaking ties alphabetically.
func (c *Column) Mode() string {
	lv := c.Levels()
	if len(lv) == 0 {
		return ""
	}
	return lv[0]
}

// LevelCounts returns the count of each non-missing level of a
// categorical or text column.
func (c *Column) LevelCounts() map[string]int {
	cnt := make(map[string]int)
	for i, s := range c.Str {
		if !c.Miss[i] {
			cnt[s]++
		}
	}
	return cnt
}

// MissingFraction returns the fraction of missing values in the
// column.
func (c *Column) MissingFraction() float64 {
	n := c.Len()
	if n == 0 {
		return 0
	}
	return float64(c.NumMissing()) / float64(n)
}
