// Package config loads CLI defaults from the environment. Every value has
// a flag override; env exists so batch callers can pin defaults once.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config is the complete CLI configuration
type Config struct {
	ReferenceFile string // VITALSYNTH_REFERENCE: default reference dataset path
	RulesFile     string // VITALSYNTH_RULES: optional rule-table YAML path
	DefaultK      int    // VITALSYNTH_K: default k for fidelity scoring
	MaskSeed      int64  // VITALSYNTH_MASK_SEED: k-NN mask seed
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ReferenceFile: os.Getenv("VITALSYNTH_REFERENCE"),
		RulesFile:     os.Getenv("VITALSYNTH_RULES"),
		DefaultK:      5,
		MaskSeed:      1,
	}

	if s := os.Getenv("VITALSYNTH_K"); s != "" {
		k, err := strconv.Atoi(s)
		if err != nil || k < 1 {
			return nil, fmt.Errorf("VITALSYNTH_K must be a positive integer, got %q", s)
		}
		cfg.DefaultK = k
	}

	if s := os.Getenv("VITALSYNTH_MASK_SEED"); s != "" {
		seed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("VITALSYNTH_MASK_SEED must be an integer, got %q", s)
		}
		cfg.MaskSeed = seed
	}

	return cfg, nil
}
