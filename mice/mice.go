// Package mice imputes missing values in a clinical data frame by
// chained equations.  Numeric columns are imputed by predictive mean
// matching under a Gaussian working model, binary columns by logistic
// regression draws, and categorical columns by their mode.  The
// imputer produces several completed copies of the frame together
// with per-column imputation flags.
package mice

import (
	"fmt"
	"math"
	"sort"

	"golang.org/x/exp/rand"

	"github.com/bioERGOtech/VERO-Code-Salerno/dframe"
	"github.com/bioERGOtech/VERO-Code-Salerno/glm"
	"github.com/bioERGOtech/VERO-Code-Salerno/statmodel"
)

// Config holds the imputation settings.
type Config struct {

	// M is the number of completed datasets to produce.
	M int

	// Cycles is the number of sweeps through the incomplete columns
	// per dataset.
	Cycles int

	// Donors is the donor pool size for predictive mean matching.
	Donors int

	// Seed drives all random draws.
	Seed uint64
}

// DefaultConfig returns the default imputation settings.
func DefaultConfig() *Config {
	return &Config{
		M:      5,
		Cycles: 10,
		Donors: 5,
		Seed:   42,
	}
}

// Imputer imputes the missing values of one frame.
type Imputer struct {
	frame  *dframe.Frame
	config *Config
	rng    *rand.Rand

	// Numeric columns with missing values, in increasing order of
	// missing count.
	targets []string

	// Categorical columns with missing values.
	catTargets []string

	// All numeric columns, used as predictors.
	numCols []string
}

// New creates an imputer for the frame.  Columns that are entirely
// missing cannot be imputed and produce an error.
func New(f *dframe.Frame, config *Config) (*Imputer, error) {

	if config == nil {
		config = DefaultConfig()
	}

	imp := &Imputer{
		frame:  f,
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}

	type tgt struct {
		name string
		nmis int
	}
	var numTargets []tgt

	for _, name := range f.Names() {

		c, err := f.Col(name)
		if err != nil {
			return nil, err
		}

		nmis := c.NumMissing()
		if nmis == c.Len() && c.Type != dframe.Date {
			return nil, fmt.Errorf("column %s is entirely missing", name)
		}

		switch c.Type {
		case dframe.Numeric:
			imp.numCols = append(imp.numCols, name)
			if nmis > 0 {
				numTargets = append(numTargets, tgt{name, nmis})
			}
		case dframe.Categorical, dframe.Text:
			if nmis > 0 {
				imp.catTargets = append(imp.catTargets, name)
			}
		}
	}

	sort.SliceStable(numTargets, func(i, j int) bool {
		return numTargets[i].nmis < numTargets[j].nmis
	})
	for _, tg := range numTargets {
		imp.targets = append(imp.targets, tg.name)
	}

	return imp, nil
}

// isBinary reports whether the observed values of a numeric column
// are all 0 or 1.
func isBinary(c *dframe.Column) bool {
	any := false
	for i, v := range c.Num {
		if c.Miss[i] {
			continue
		}
		if v != 0 && v != 1 {
			return false
		}
		any = true
	}
	return any
}

// initialFill produces a completed copy of the frame: numeric columns
// filled with the mean, or the median when skewed, binary columns
// with a draw from the observed frequency, and categorical columns
// with the mode.
func (imp *Imputer) initialFill() *dframe.Frame {

	g := imp.frame.Copy()

	for _, name := range g.Names() {

		c, err := g.Col(name)
		if err != nil {
			panic(err)
		}
		if c.NumMissing() == 0 {
			continue
		}

		switch c.Type {
		case dframe.Numeric:
			s := c.Describe()
			fill := s.Mean
			if isBinary(c) {
				p := s.Mean
				for i := range c.Num {
					if c.Miss[i] {
						if imp.rng.Float64() < p {
							c.Num[i] = 1
						} else {
							c.Num[i] = 0
						}
						c.Miss[i] = false
					}
				}
				continue
			}
			if c.Skewed() {
				fill = s.Median
			}
			for i := range c.Num {
				if c.Miss[i] {
					c.Num[i] = fill
					c.Miss[i] = false
				}
			}
		case dframe.Date:
			// Date missingness is structural (a missing death date
			// means no death) and is never imputed.
		default:
			md := c.Mode()
			for i := range c.Str {
				if c.Miss[i] {
					c.Str[i] = md
					c.Miss[i] = false
				}
			}
		}
	}

	return g
}

// predict fits a working model for the target column on the rows
// where it was observed and returns the linear predictor for every
// row.  The model regresses the target on all other numeric columns
// plus an intercept.
func (imp *Imputer) predict(g *dframe.Frame, target string, binary bool) ([]float64, error) {

	orig, err := imp.frame.Col(target)
	if err != nil {
		return nil, err
	}

	var preds []string
	for _, name := range imp.numCols {
		if name != target {
			preds = append(preds, name)
		}
	}

	n := g.NumRow()
	nobs := n - orig.NumMissing()

	// Column-major training data over the observed rows, and the
	// full columns for prediction.
	names := append([]string{target, "icept"}, preds...)
	trdata := make([][]float64, len(names))
	full := make([][]float64, len(names))

	for j, name := range names {

		var src []float64
		if name == "icept" {
			src = make([]float64, n)
			for i := range src {
				src[i] = 1
			}
		} else {
			c, err := g.Col(name)
			if err != nil {
				return nil, err
			}
			src = c.Num
		}
		full[j] = src

		tr := make([]float64, 0, nobs)
		for i := 0; i < n; i++ {
			if !orig.Miss[i] {
				tr = append(tr, src[i])
			}
		}
		trdata[j] = tr
	}

	ds := statmodel.NewDataset(trdata, names)

	config := glm.DefaultGLMConfig()
	if binary {
		config.Family = glm.NewFamily(glm.BinomialFamily)
	}

	model, err := glm.NewGLM(ds, target, names[1:], config)
	if err != nil {
		return nil, err
	}
	rslt, err := model.Fit()
	if err != nil {
		return nil, err
	}
	par := rslt.Params()

	lp := make([]float64, n)
	for i := 0; i < n; i++ {
		var v float64
		for j := range par {
			v += par[j] * full[j+1][i]
		}
		lp[i] = v
	}

	return lp, nil
}

// pmmDraw imputes the missing rows of the target by predictive mean
// matching: each missing row receives the observed value of a donor
// drawn from the rows with the closest linear predictor.
func (imp *Imputer) pmmDraw(g *dframe.Frame, target string, lp []float64) error {

	orig, err := imp.frame.Col(target)
	if err != nil {
		return err
	}
	cur, err := g.Col(target)
	if err != nil {
		return err
	}

	var obs []int
	for i := range orig.Miss {
		if !orig.Miss[i] {
			obs = append(obs, i)
		}
	}

	nd := imp.config.Donors
	if nd > len(obs) {
		nd = len(obs)
	}

	for i := range orig.Miss {
		if !orig.Miss[i] {
			continue
		}

		cand := make([]int, len(obs))
		copy(cand, obs)
		sort.Slice(cand, func(a, b int) bool {
			return math.Abs(lp[cand[a]]-lp[i]) < math.Abs(lp[cand[b]]-lp[i])
		})

		donor := cand[imp.rng.Intn(nd)]
		cur.Num[i] = orig.Num[donor]
	}

	return nil
}

// bernoulliDraw imputes the missing rows of a binary target with
// draws from the fitted logistic probabilities.
func (imp *Imputer) bernoulliDraw(g *dframe.Frame, target string, lp []float64) error {

	orig, err := imp.frame.Col(target)
	if err != nil {
		return err
	}
	cur, err := g.Col(target)
	if err != nil {
		return err
	}

	for i := range orig.Miss {
		if !orig.Miss[i] {
			continue
		}
		p := 1 / (1 + math.Exp(-lp[i]))
		if imp.rng.Float64() < p {
			cur.Num[i] = 1
		} else {
			cur.Num[i] = 0
		}
	}

	return nil
}

// RunOne produces a single completed copy of the frame.
func (imp *Imputer) RunOne() (*dframe.Frame, error) {

	g := imp.initialFill()

	for cyc := 0; cyc < imp.config.Cycles; cyc++ {
		for _, target := range imp.targets {

			c, err := imp.frame.Col(target)
			if err != nil {
				return nil, err
			}
			binary := isBinary(c)

			lp, err := imp.predict(g, target, binary)
			if err != nil {
				return nil, fmt.Errorf("imputing %s: %w", target, err)
			}

			if binary {
				err = imp.bernoulliDraw(g, target, lp)
			} else {
				err = imp.pmmDraw(g, target, lp)
			}
			if err != nil {
				return nil, err
			}
		}
	}

	return g, nil
}

// Run produces M completed copies of the frame.
func (imp *Imputer) Run() ([]*dframe.Frame, error) {

	frames := make([]*dframe.Frame, imp.config.M)
	for m := range frames {
		g, err := imp.RunOne()
		if err != nil {
			return nil, err
		}
		frames[m] = g
	}

	return frames, nil
}

// AddFlags adds a "<col>_imputed" 0/1 column to the completed frame
// for every column that had missing values in the source frame.
func (imp *Imputer) AddFlags(g *dframe.Frame) error {

	for _, name := range imp.frame.Names() {

		c, err := imp.frame.Col(name)
		if err != nil {
			return err
		}
		if c.NumMissing() == 0 {
			continue
		}

		fl := make([]float64, c.Len())
		for i, m := range c.Miss {
			if m {
				fl[i] = 1
			}
		}
		if err := g.AddNumeric(name+"_imputed", fl); err != nil {
			return err
		}
	}

	return nil
}

// RepairNegatives replaces negative values in the named columns of a
// completed frame with the median of the column's nonnegative values.
// It returns the number of repaired cells.
func RepairNegatives(g *dframe.Frame, cols []string) (int, error) {

	nrep := 0

	for _, name := range cols {

		if !g.HasCol(name) {
			continue
		}
		c, err := g.Col(name)
		if err != nil {
			return 0, err
		}
		if c.Type != dframe.Numeric {
			continue
		}

		var nn []float64
		for _, v := range c.Num {
			if v >= 0 {
				nn = append(nn, v)
			}
		}
		if len(nn) == 0 {
			continue
		}
		sort.Float64s(nn)
		med := nn[len(nn)/2]

		for i, v := range c.Num {
			if v < 0 {
				c.Num[i] = med
				nrep++
			}
		}
	}

	return nrep, nil
}

// Pool combines completed frames into one: numeric cells are averaged
// across the frames, and categorical cells take the majority value,
// with ties resolved in favor of the first frame, then
// lexicographically.
func Pool(frames []*dframe.Frame) (*dframe.Frame, error) {

	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames to pool")
	}

	g := frames[0].Copy()

	for _, name := range g.Names() {

		c, err := g.Col(name)
		if err != nil {
			return nil, err
		}

		switch c.Type {
		case dframe.Numeric:
			for i := range c.Num {
				v := 0.0
				for _, f := range frames {
					fc, err := f.Col(name)
					if err != nil {
						return nil, err
					}
					v += fc.Num[i]
				}
				c.Num[i] = v / float64(len(frames))
			}
		case dframe.Categorical, dframe.Text:
			for i := range c.Str {
				cnt := make(map[string]int)
				for _, f := range frames {
					fc, err := f.Col(name)
					if err != nil {
						return nil, err
					}
					cnt[fc.Str[i]]++
				}
				levels := make([]string, 0, len(cnt))
				for s := range cnt {
					levels = append(levels, s)
				}
				sort.Strings(levels)
				best := c.Str[i]
				for _, s := range levels {
					if cnt[s] > cnt[best] {
						best = s
					}
				}
				c.Str[i] = best
			}
		}
	}

	return g, nil
}
