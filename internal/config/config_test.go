package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("VERO_SEED")
	os.Unsetenv("VERO_MICE_DATASETS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.MissingThreshold != 0.60 {
		t.Errorf("expected default missing threshold 0.60, got %v", cfg.MissingThreshold)
	}
	if cfg.MICEDatasets != 5 || cfg.MICECycles != 10 {
		t.Errorf("unexpected MICE defaults: %d/%d", cfg.MICEDatasets, cfg.MICECycles)
	}
	if cfg.ScreenPValue != 0.157 {
		t.Errorf("expected screening threshold 0.157, got %v", cfg.ScreenPValue)
	}
	if cfg.CVFolds != 5 || cfg.Bootstrap != 200 {
		t.Errorf("unexpected validation defaults: %d/%d", cfg.CVFolds, cfg.Bootstrap)
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("VERO_SEED", "77")
	os.Setenv("VERO_CV_FOLDS", "10")
	defer os.Unsetenv("VERO_SEED")
	defer os.Unsetenv("VERO_CV_FOLDS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Seed != 77 {
		t.Errorf("expected seed 77, got %d", cfg.Seed)
	}
	if cfg.CVFolds != 10 {
		t.Errorf("expected 10 folds, got %d", cfg.CVFolds)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		MissingThreshold: 0.6,
		MICEDatasets:     5,
		MICECycles:       10,
		ScreenPValue:     0.157,
		CVFolds:          5,
		Bootstrap:        200,
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.MissingThreshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing threshold above 1")
	}
	cfg.MissingThreshold = 0.6

	cfg.CVFolds = 1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for a single fold")
	}
}
