// Command vero runs the clinical risk-analysis pipeline: profiling,
// cleaning, imputation, dose standardization, lab ranges, outcome
// derivation, survival and classification models, relative-importance
// ranking, and validation.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bioERGOtech/VERO-Code-Salerno/internal/config"
	"github.com/bioERGOtech/VERO-Code-Salerno/internal/pipeline"
)

func newLogger(pretty bool) zerolog.Logger {
	if pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func newPipeline(cmd *cobra.Command) (*pipeline.Pipeline, error) {

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if raw, _ := cmd.Flags().GetString("data"); raw != "" {
		cfg.RawData = raw
	}
	if wd, _ := cmd.Flags().GetString("workdir"); wd != "" {
		cfg.WorkDir = wd
	}
	pretty, _ := cmd.Flags().GetBool("pretty")

	return pipeline.New(cfg, newLogger(pretty))
}

func stageCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(cmd)
			if err != nil {
				return err
			}
			s, err := p.Stage(name)
			if err != nil {
				return err
			}
			return p.RunStage(s)
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run every pipeline stage in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(cmd)
			if err != nil {
				return err
			}
			return p.RunAll()
		},
	}
}

func main() {

	rootCmd := &cobra.Command{
		Use:   "vero",
		Short: "Geriatric-oncology risk-analysis pipeline",
	}

	rootCmd.PersistentFlags().String("data", "", "path of the raw master table (CSV or XLSX)")
	rootCmd.PersistentFlags().String("workdir", "", "working directory for the pipeline layout")
	rootCmd.PersistentFlags().Bool("pretty", false, "human-readable log output")

	rootCmd.AddCommand(runCmd())
	for _, s := range pipeline.StageOrder {
		rootCmd.AddCommand(stageCmd(s.Name, s.Desc))
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
