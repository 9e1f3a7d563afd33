package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bioERGOtech/VERO-Code-Salerno/dframe"
	"github.com/bioERGOtech/VERO-Code-Salerno/internal/config"
)

// Pipeline runs the analysis stages over the configured layout.
type Pipeline struct {
	cfg    *config.Config
	layout Layout
	log    zerolog.Logger
	runID  string
}

// New creates a pipeline for the configuration, creating the
// directory layout under the configured working directory.
func New(cfg *config.Config, log zerolog.Logger) (*Pipeline, error) {

	p := &Pipeline{
		cfg:    cfg,
		layout: NewLayout(cfg.WorkDir),
		log:    log,
		runID:  newRunID(),
	}

	if err := p.layout.Ensure(); err != nil {
		return nil, fmt.Errorf("creating layout: %w", err)
	}

	return p, nil
}

// Layout returns the pipeline's directory layout.
func (p *Pipeline) Layout() Layout {
	return p.layout
}

// StageInfo names and describes one stage.
type StageInfo struct {
	Name string
	Desc string
}

// StageOrder lists the stages in execution order.
var StageOrder = []StageInfo{
	{"profile", "profile every column of the raw table"},
	{"clean", "canonicalize missing values and drop unusable columns"},
	{"impute", "impute missing values by chained equations"},
	{"standardize", "standardize drug doses and derive clinical indexes"},
	{"ranges", "classify labs against geriatric reference intervals"},
	{"derive", "derive survival and adverse-event outcomes"},
	{"visualize", "plot missingness, survival curves, and distributions"},
	{"screen", "screen candidate predictors one at a time"},
	{"survival", "fit the multivariable Cox and Weibull AFT models"},
	{"classify", "fit elastic-net logistic models for binary outcomes"},
	{"rank", "rank predictors by relative importance"},
	{"validate", "cross-validate and bootstrap the fitted models"},
}

// Stage is one named step of the pipeline.
type Stage struct {
	Name string
	Desc string
	Run  func() error
}

// run returns the method implementing a stage.
func (p *Pipeline) run(name string) func() error {
	switch name {
	case "profile":
		return p.Profile
	case "clean":
		return p.Clean
	case "impute":
		return p.Impute
	case "standardize":
		return p.Standardize
	case "ranges":
		return p.Ranges
	case "derive":
		return p.Derive
	case "visualize":
		return p.Visualize
	case "screen":
		return p.Screen
	case "survival":
		return p.Survival
	case "classify":
		return p.Classify
	case "rank":
		return p.Rank
	case "validate":
		return p.Validate
	}
	return nil
}

// Stages returns the pipeline stages in execution order.
func (p *Pipeline) Stages() []Stage {
	var stages []Stage
	for _, si := range StageOrder {
		stages = append(stages, Stage{si.Name, si.Desc, p.run(si.Name)})
	}
	return stages
}

// Stage returns the named stage.
func (p *Pipeline) Stage(name string) (Stage, error) {
	for _, s := range p.Stages() {
		if s.Name == name {
			return s, nil
		}
	}
	return Stage{}, fmt.Errorf("unknown stage %q", name)
}

// RunStage runs one stage and appends a manifest entry.
func (p *Pipeline) RunStage(s Stage) error {

	start := time.Now()
	p.log.Info().Str("stage", s.Name).Msg("stage starting")

	if err := s.Run(); err != nil {
		p.log.Error().Str("stage", s.Name).Err(err).Msg("stage failed")
		return fmt.Errorf("stage %s: %w", s.Name, err)
	}

	e := ManifestEntry{
		RunID:    p.runID,
		Stage:    s.Name,
		Inputs:   p.stageInputs(s.Name),
		Outputs:  p.stageOutputs(s.Name),
		Started:  start,
		Finished: time.Now(),
	}
	if err := appendManifest(p.layout.Manifest(), e); err != nil {
		return err
	}

	p.log.Info().Str("stage", s.Name).
		Dur("elapsed", time.Since(start)).Msg("stage complete")

	return nil
}

// RunAll runs every stage in order.
func (p *Pipeline) RunAll() error {
	for _, s := range p.Stages() {
		if err := p.RunStage(s); err != nil {
			return err
		}
	}
	return nil
}

// stageInputs names the primary input files of a stage.
func (p *Pipeline) stageInputs(name string) []string {
	switch name {
	case "profile", "clean":
		return []string{p.cfg.RawData}
	case "impute":
		return []string{p.layout.Interim("clean.csv")}
	case "standardize":
		return []string{p.layout.Processed("imputed.csv")}
	case "ranges":
		return []string{p.layout.Processed("standardized.csv")}
	case "derive":
		return []string{p.layout.Processed("ranged.csv")}
	default:
		return []string{p.layout.Processed("analysis.csv")}
	}
}

// stageOutputs names the primary output files of a stage.
func (p *Pipeline) stageOutputs(name string) []string {
	switch name {
	case "profile":
		return []string{p.layout.Output("profiling", "profile.csv")}
	case "clean":
		return []string{p.layout.Interim("clean.csv")}
	case "impute":
		return []string{p.layout.Processed("imputed.csv")}
	case "standardize":
		return []string{p.layout.Processed("standardized.csv")}
	case "ranges":
		return []string{p.layout.Processed("ranged.csv")}
	case "derive":
		return []string{p.layout.Processed("analysis.csv")}
	case "visualize":
		return []string{p.layout.Output("visuals", "")}
	case "screen":
		return []string{p.layout.Output("models", "screening.csv")}
	case "survival":
		return []string{p.layout.Output("models", "cox_summary.txt")}
	case "classify":
		return []string{p.layout.Output("models", "logistic_summary.txt")}
	case "rank":
		return []string{p.layout.Report("relative_importance.csv")}
	case "validate":
		return []string{p.layout.Output("validation", "validation.csv")}
	}
	return nil
}

// readTable loads a CSV or XLSX table by file extension.
func readTable(path string) (*dframe.Frame, error) {

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return dframe.ReadXLSX(path)
	case ".csv":
		return dframe.ReadCSVFile(path)
	}

	return nil, fmt.Errorf("unsupported table format: %s", path)
}
