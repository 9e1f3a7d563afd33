// Package pipeline orchestrates the analysis stages: a fixed on-disk
// layout, a run manifest, and one stage per transformation from the
// raw master table to the validated models.
package pipeline

import (
	"os"
	"path/filepath"
)

// Layout is the fixed directory layout under the working directory.
type Layout struct {
	root string
}

// NewLayout returns the layout rooted at the given directory.
func NewLayout(root string) Layout {
	return Layout{root: root}
}

// Root returns the working directory.
func (l Layout) Root() string {
	return l.root
}

// dirs lists every directory of the layout, relative to the root.
var dirs = []string{
	"data/raw",
	"data/interim",
	"data/processed",
	"outputs/profiling",
	"outputs/imputation",
	"outputs/standardization",
	"outputs/visuals",
	"outputs/models",
	"outputs/validation",
	"reports",
}

// Ensure creates every directory of the layout.
func (l Layout) Ensure() error {
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(l.root, d), 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Interim returns a path under data/interim.
func (l Layout) Interim(name string) string {
	return filepath.Join(l.root, "data", "interim", name)
}

// Processed returns a path under data/processed.
func (l Layout) Processed(name string) string {
	return filepath.Join(l.root, "data", "processed", name)
}

// Output returns a path under outputs/<sub>.
func (l Layout) Output(sub, name string) string {
	return filepath.Join(l.root, "outputs", sub, name)
}

// Report returns a path under reports.
func (l Layout) Report(name string) string {
	return filepath.Join(l.root, "reports", name)
}

// Manifest returns the path of the run manifest.
func (l Layout) Manifest() string {
	return l.Report("manifest.json")
}
