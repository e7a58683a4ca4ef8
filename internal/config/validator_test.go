package config

import (
	"math"
	"strings"
	"testing"
)

func TestValidate_DefaultsAreValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default configuration must validate, got: %v", err)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			"knowledge threshold above one",
			func(c *Config) { c.Estimator.KnowledgeThreshold = 1.5 },
			"estimator.knowledge_threshold",
		},
		{
			"knowledge threshold negative",
			func(c *Config) { c.Estimator.KnowledgeThreshold = -0.1 },
			"estimator.knowledge_threshold",
		},
		{
			"coverage threshold NaN",
			func(c *Config) { c.Estimator.CoverageThreshold = math.NaN() },
			"estimator.coverage_threshold",
		},
		{
			"redundancy threshold negative",
			func(c *Config) { c.Estimator.RedundancyThreshold = -1 },
			"estimator.redundancy_threshold",
		},
		{
			"unknown weight mode",
			func(c *Config) { c.Ownership.WeightMode = "entropy" },
			"ownership.weight_mode",
		},
		{
			"similarity threshold above one",
			func(c *Config) { c.Identity.SimilarityThreshold = 2 },
			"identity.similarity_threshold",
		},
		{
			"review threshold above similarity threshold",
			func(c *Config) { c.Identity.ReviewThreshold = 0.9 },
			"identity.review_threshold",
		},
		{
			"negative decay strength",
			func(c *Config) { c.Collab.DecayStrength = -0.25 },
			"collab.decay_strength",
		},
		{
			"negative fresh connection weight",
			func(c *Config) { c.Collab.FreshConnectionWeight = -1 },
			"collab.fresh_connection_weight",
		},
		{
			"zero concurrency",
			func(c *Config) { c.Batch.Concurrency = 0 },
			"batch.concurrency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() accepted a bad value")
			}
			if !strings.Contains(err.Error(), tt.wantField) {
				t.Errorf("Validate() error = %q, want mention of %q", err, tt.wantField)
			}
		})
	}
}

func TestValidate_InfiniteRedundancyIsValid(t *testing.T) {
	cfg := Default()
	cfg.Estimator.RedundancyThreshold = math.Inf(1)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("+Inf redundancy threshold disables the social adjustment and must validate, got: %v", err)
	}
}

func TestValidate_BoundaryValuesAccepted(t *testing.T) {
	cfg := Default()
	cfg.Estimator.KnowledgeThreshold = 0
	cfg.Estimator.CoverageThreshold = 1
	cfg.Collab.DecayStrength = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("boundary values inside the valid range must pass, got: %v", err)
	}
}
