// Package config loads the pipeline configuration from a .env file,
// environment variables, and defaults.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the pipeline settings.
type Config struct {

	// RawData is the path of the master dataset (CSV or XLSX).
	RawData string `mapstructure:"VERO_RAW_DATA"`

	// WorkDir is the root under which the stage directories are laid
	// out.
	WorkDir string `mapstructure:"VERO_WORK_DIR"`

	// Seed drives all random draws of the pipeline.
	Seed uint64 `mapstructure:"VERO_SEED"`

	// MissingThreshold is the missing-value fraction above which a
	// column is dropped during cleaning.
	MissingThreshold float64 `mapstructure:"VERO_MISSING_THRESHOLD"`

	// MICEDatasets and MICECycles configure the imputation.
	MICEDatasets int `mapstructure:"VERO_MICE_DATASETS"`
	MICECycles   int `mapstructure:"VERO_MICE_CYCLES"`
	MICEDonors   int `mapstructure:"VERO_MICE_DONORS"`

	// ScreenPValue is the univariate screening threshold.
	ScreenPValue float64 `mapstructure:"VERO_SCREEN_PVALUE"`

	// CVFolds is the number of cross-validation folds.
	CVFolds int `mapstructure:"VERO_CV_FOLDS"`

	// Bootstrap is the number of bootstrap replicates for stability
	// selection and validation intervals.
	Bootstrap int `mapstructure:"VERO_BOOTSTRAP"`

	// L1Weight and L2Weight are the elastic-net penalty weights.
	L1Weight float64 `mapstructure:"VERO_L1_WEIGHT"`
	L2Weight float64 `mapstructure:"VERO_L2_WEIGHT"`
}

// Load reads the configuration from .env (if present), the
// environment, and the defaults.
func Load() (*Config, error) {

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("VERO_RAW_DATA", "data/raw/master.xlsx")
	v.SetDefault("VERO_WORK_DIR", ".")
	v.SetDefault("VERO_SEED", 20240101)
	v.SetDefault("VERO_MISSING_THRESHOLD", 0.60)
	v.SetDefault("VERO_MICE_DATASETS", 5)
	v.SetDefault("VERO_MICE_CYCLES", 10)
	v.SetDefault("VERO_MICE_DONORS", 5)
	v.SetDefault("VERO_SCREEN_PVALUE", 0.157)
	v.SetDefault("VERO_CV_FOLDS", 5)
	v.SetDefault("VERO_BOOTSTRAP", 200)
	v.SetDefault("VERO_L1_WEIGHT", 0.1)
	v.SetDefault("VERO_L2_WEIGHT", 0.1)

	for _, key := range []string{
		"VERO_RAW_DATA", "VERO_WORK_DIR", "VERO_SEED",
		"VERO_MISSING_THRESHOLD", "VERO_MICE_DATASETS",
		"VERO_MICE_CYCLES", "VERO_MICE_DONORS", "VERO_SCREEN_PVALUE",
		"VERO_CV_FOLDS", "VERO_BOOTSTRAP", "VERO_L1_WEIGHT",
		"VERO_L2_WEIGHT",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	// The .env file is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {

	if c.MissingThreshold <= 0 || c.MissingThreshold > 1 {
		return fmt.Errorf("VERO_MISSING_THRESHOLD must be in (0, 1], got %v", c.MissingThreshold)
	}
	if c.MICEDatasets < 1 {
		return fmt.Errorf("VERO_MICE_DATASETS must be at least 1, got %d", c.MICEDatasets)
	}
	if c.MICECycles < 1 {
		return fmt.Errorf("VERO_MICE_CYCLES must be at least 1, got %d", c.MICECycles)
	}
	if c.ScreenPValue <= 0 || c.ScreenPValue >= 1 {
		return fmt.Errorf("VERO_SCREEN_PVALUE must be in (0, 1), got %v", c.ScreenPValue)
	}
	if c.CVFolds < 2 {
		return fmt.Errorf("VERO_CV_FOLDS must be at least 2, got %d", c.CVFolds)
	}
	if c.Bootstrap < 1 {
		return fmt.Errorf("VERO_BOOTSTRAP must be at least 1, got %d", c.Bootstrap)
	}
	if c.L1Weight < 0 || c.L2Weight < 0 {
		return fmt.Errorf("penalty weights must be nonnegative")
	}

	return nil
}
