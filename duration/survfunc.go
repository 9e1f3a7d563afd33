package duration

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/bioERGOtech/VERO-Code-Salerno/statmodel"
)

// SurvfuncRightConfig defines configuration parameters for a survival
// function estimate.
type SurvfuncRightConfig struct {

	// Name of a variable giving case weights, optional.
	WeightVar string

	// Name of a variable giving entry times, optional.
	EntryVar string
}

// SurvfuncRight uses the method of Kaplan and Meier to estimate the
// survival distribution based on (possibly) right censored data.
type SurvfuncRight struct {

	// The data used to perform the estimation.
	data statmodel.Dataset

	// The name of the variable containing the minimum of the
	// event time and censoring time.
	timeVar string

	// The name of a variable containing the status indicator,
	// which is 1 if the event occurred at the time given by
	// timeVar, and 0 otherwise.
	statusVar string

	// The name of a variable containing case weights, optional.
	weightVar string

	// The name of a variable containing entry times, optional.
	entryVar string

	// Times at which events occur, sorted.
	times []float64

	// Number of events at each time in times.
	nEvents []float64

	// Number of people at risk just before each time in times.
	nRisk []float64

	// The estimated survival function evaluated at each time in times.
	survProb []float64

	// The standard errors for the estimates in survProb.
	survProbSE []float64

	events map[float64]float64
	total  map[float64]float64
	entry  map[float64]float64

	timepos   int
	statuspos int
	weightpos int
	entrypos  int
}

// NewSurvfuncRight estimates the survival distribution for the given
// data.  Config may be nil, in which case the estimate is unweighted
// and has no delayed entry.
func NewSurvfuncRight(data statmodel.Dataset, time, status string, config *SurvfuncRightConfig) (*SurvfuncRight, error) {

	if config == nil {
		config = &SurvfuncRightConfig{}
	}

	sf := &SurvfuncRight{
		data:      data,
		timeVar:   time,
		statusVar: status,
		weightVar: config.WeightVar,
		entryVar:  config.EntryVar,
	}

	sf.timepos = data.Pos(time)
	if sf.timepos == -1 {
		return nil, fmt.Errorf("time variable '%s' not found", time)
	}
	sf.statuspos = data.Pos(status)
	if sf.statuspos == -1 {
		return nil, fmt.Errorf("status variable '%s' not found", status)
	}
	sf.weightpos = -1
	if sf.weightVar != "" {
		sf.weightpos = data.Pos(sf.weightVar)
		if sf.weightpos == -1 {
			return nil, fmt.Errorf("weight variable '%s' not found", sf.weightVar)
		}
	}
	sf.entrypos = -1
	if sf.entryVar != "" {
		sf.entrypos = data.Pos(sf.entryVar)
		if sf.entrypos == -1 {
			return nil, fmt.Errorf("entry variable '%s' not found", sf.entryVar)
		}
	}

	if err := sf.scanData(); err != nil {
		return nil, err
	}
	sf.eventstats()
	sf.compress()
	sf.fit()

	return sf, nil
}

// Time returns the times at which the survival function changes.
func (sf *SurvfuncRight) Time() []float64 {
	return sf.times
}

// NumRisk returns the number of people at risk at each time point
// where the survival function changes.
func (sf *SurvfuncRight) NumRisk() []float64 {
	return sf.nRisk
}

// NumEvents returns the weighted number of events at each time point
// where the survival function changes.
func (sf *SurvfuncRight) NumEvents() []float64 {
	return sf.nEvents
}

// SurvProb returns the estimated survival probabilities at the points
// where the survival function changes.
func (sf *SurvfuncRight) SurvProb() []float64 {
	return sf.survProb
}

// SurvProbSE returns the standard errors of the estimated survival
// probabilities at the points where the survival function changes.
func (sf *SurvfuncRight) SurvProbSE() []float64 {
	return sf.survProbSE
}

// ProbAt returns the estimated probability of surviving beyond the
// given time point.
func (sf *SurvfuncRight) ProbAt(t float64) float64 {

	ii := sort.SearchFloat64s(sf.times, t)
	if ii < len(sf.times) && sf.times[ii] == t {
		return sf.survProb[ii]
	}
	if ii == 0 {
		return 1
	}
	return sf.survProb[ii-1]
}

func (sf *SurvfuncRight) scanData() error {

	sf.events = make(map[float64]float64)
	sf.total = make(map[float64]float64)
	sf.entry = make(map[float64]float64)

	time := sf.data.Data()[sf.timepos]
	status := sf.data.Data()[sf.statuspos]

	var entry []statmodel.Dtype
	if sf.entrypos != -1 {
		entry = sf.data.Data()[sf.entrypos]
	}

	var weight []statmodel.Dtype
	if sf.weightpos != -1 {
		weight = sf.data.Data()[sf.weightpos]
	}

	for i, t := range time {

		w := float64(1)
		if sf.weightpos != -1 {
			w = float64(weight[i])
		}

		if status[i] == 1 {
			sf.events[float64(t)] += w
		}
		sf.total[float64(t)] += w

		if sf.entrypos != -1 {
			if entry[i] >= t {
				return fmt.Errorf("observation %d enters at or after its event/censoring time", i)
			}
			sf.entry[float64(entry[i])] += w
		}
	}

	return nil
}

// rollback converts event counts per time point to risk set sizes by
// accumulating from the right.
func rollback(x []float64) {
	var z float64
	for i := len(x) - 1; i >= 0; i-- {
		z += x[i]
		x[i] = z
	}
}

func (sf *SurvfuncRight) eventstats() {

	// Get the sorted distinct times (event or censoring)
	sf.times = make([]float64, len(sf.total))
	var i int
	for t := range sf.total {
		sf.times[i] = t
		i++
	}
	sort.Float64s(sf.times)

	// Get the weighted event count and risk set size at each time
	// point (in same order as times).
	sf.nEvents = make([]float64, len(sf.times))
	sf.nRisk = make([]float64, len(sf.times))
	for i, t := range sf.times {
		sf.nEvents[i] = sf.events[t]
		sf.nRisk[i] = sf.total[t]
	}
	rollback(sf.nRisk)

	// Adjust for entry times
	if sf.entrypos != -1 {
		entry := make([]float64, len(sf.times))
		for t, w := range sf.entry {
			ii := sort.SearchFloat64s(sf.times, t)
			if t < sf.times[ii] {
				ii--
			}
			if ii >= 0 {
				entry[ii] += w
			}
		}
		rollback(entry)
		for i := 0; i < len(sf.nRisk); i++ {
			sf.nRisk[i] -= entry[i]
		}
	}
}

// compress removes times where no events occurred.
func (sf *SurvfuncRight) compress() {

	var ix []int
	for i := 0; i < len(sf.times); i++ {
		// Only retain events, except for the last point,
		// which is retained even if there are no events.
		if sf.nEvents[i] > 0 || i == len(sf.times)-1 {
			ix = append(ix, i)
		}
	}

	if len(ix) < len(sf.times) {
		for i, j := range ix {
			sf.times[i] = sf.times[j]
			sf.nEvents[i] = sf.nEvents[j]
			sf.nRisk[i] = sf.nRisk[j]
		}
		sf.times = sf.times[0:len(ix)]
		sf.nEvents = sf.nEvents[0:len(ix)]
		sf.nRisk = sf.nRisk[0:len(ix)]
	}
}

func (sf *SurvfuncRight) fit() {

	sf.survProb = make([]float64, len(sf.times))
	x := float64(1)
	for i := range sf.times {
		x *= 1 - sf.nEvents[i]/sf.nRisk[i]
		sf.survProb[i] = x
	}

	// Greenwood standard errors in the unweighted case.
	sf.survProbSE = make([]float64, len(sf.times))
	x = 0
	if sf.weightpos == -1 {
		for i := range sf.times {
			d := sf.nEvents[i]
			n := sf.nRisk[i]
			x += d / (n * (n - d))
			sf.survProbSE[i] = math.Sqrt(x) * sf.survProb[i]
		}
	} else {
		for i := range sf.times {
			d := sf.nEvents[i]
			n := sf.nRisk[i]
			x += d / (n * n)
			sf.survProbSE[i] = math.Sqrt(x)
		}
	}
}

// SurvfuncRightPlotter is used to plot one or more survival functions.
type SurvfuncRightPlotter struct {
	pts []plotter.XYs
	plt *plot.Plot

	labels []string

	lines []*plotter.Line

	width  vg.Length
	height vg.Length
}

// NewSurvfuncRightPlotter returns a default SurvfuncRightPlotter.
func NewSurvfuncRightPlotter() *SurvfuncRightPlotter {

	return &SurvfuncRightPlotter{
		width:  4,
		height: 4,
		plt:    plot.New(),
	}
}

// Width sets the width of the survival function plot, in inches.
func (sp *SurvfuncRightPlotter) Width(w float64) *SurvfuncRightPlotter {
	sp.width = vg.Length(w)
	return sp
}

// Height sets the height of the survival function plot, in inches.
func (sp *SurvfuncRightPlotter) Height(h float64) *SurvfuncRightPlotter {
	sp.height = vg.Length(h)
	return sp
}

// Add includes a given survival function in the plot, drawn as a step
// function.
func (sp *SurvfuncRightPlotter) Add(sf *SurvfuncRight, label string) *SurvfuncRightPlotter {

	ti := sf.Time()
	pr := sf.SurvProb()

	m := len(ti)
	n := 2*m + 1

	pts := make(plotter.XYs, n)

	j := 0
	pts[j].X = 0
	pts[j].Y = 1
	j++

	for i := range ti {
		pts[j].X = ti[i]
		pts[j].Y = pts[j-1].Y
		j++
		pts[j].X = ti[i]
		pts[j].Y = pr[i]
		j++
	}

	sp.pts = append(sp.pts, pts)

	sp.labels = append(sp.labels, label)

	line, err := plotter.NewLine(pts)
	if err != nil {
		panic(err)
	}
	line.Color = plotutil.Color(len(sp.lines))
	sp.lines = append(sp.lines, line)

	return sp
}

// Plot constructs the plot.
func (sp *SurvfuncRightPlotter) Plot() *SurvfuncRightPlotter {

	sp.plt.Y.Min = 0
	sp.plt.Y.Max = 1

	sp.plt.X.Label.Text = "Time"
	sp.plt.Y.Label.Text = "Proportion surviving"

	for i := range sp.lines {
		sp.plt.Add(sp.lines[i])
		sp.plt.Legend.Add(sp.labels[i], sp.lines[i])
	}

	if len(sp.lines) > 1 {
		sp.plt.Legend.Top = false
		sp.plt.Legend.Left = true
	}

	return sp
}

// GetPlotStruct returns the plotting structure for this plot.
func (sp *SurvfuncRightPlotter) GetPlotStruct() *plot.Plot {
	return sp.plt
}

// Save writes the plot to the given file.
func (sp *SurvfuncRightPlotter) Save(fname string) error {
	return sp.plt.Save(sp.width*vg.Inch, sp.height*vg.Inch, fname)
}
