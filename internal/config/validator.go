package config

import (
	"fmt"
	"math"
)

// ValidationError describes a rejected configuration value. Misconfigured
// thresholds are rejected outright, never silently clamped.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s = %v (%s)", e.Field, e.Value, e.Reason)
}

// Validate checks all tuning parameters at configuration time.
func (c *Config) Validate() error {
	if err := checkUnitInterval("identity.similarity_threshold", c.Identity.SimilarityThreshold); err != nil {
		return err
	}
	if err := checkUnitInterval("identity.review_threshold", c.Identity.ReviewThreshold); err != nil {
		return err
	}
	if c.Identity.ReviewThreshold > c.Identity.SimilarityThreshold {
		return &ValidationError{
			Field:  "identity.review_threshold",
			Value:  c.Identity.ReviewThreshold,
			Reason: "must not exceed identity.similarity_threshold",
		}
	}

	switch c.Ownership.WeightMode {
	case "doa", "lines", "commits":
	default:
		return &ValidationError{
			Field:  "ownership.weight_mode",
			Value:  c.Ownership.WeightMode,
			Reason: `must be one of "doa", "lines", "commits"`,
		}
	}

	if c.Collab.FreshConnectionWeight < 0 || math.IsNaN(c.Collab.FreshConnectionWeight) {
		return &ValidationError{
			Field:  "collab.fresh_connection_weight",
			Value:  c.Collab.FreshConnectionWeight,
			Reason: "must be non-negative",
		}
	}
	if c.Collab.DecayStrength < 0 || math.IsNaN(c.Collab.DecayStrength) {
		return &ValidationError{
			Field:  "collab.decay_strength",
			Value:  c.Collab.DecayStrength,
			Reason: "must be non-negative",
		}
	}

	if err := checkUnitInterval("estimator.knowledge_threshold", c.Estimator.KnowledgeThreshold); err != nil {
		return err
	}
	if err := checkUnitInterval("estimator.coverage_threshold", c.Estimator.CoverageThreshold); err != nil {
		return err
	}
	// +Inf is a valid redundancy threshold: it disables social redundancy.
	if c.Estimator.RedundancyThreshold < 0 || math.IsNaN(c.Estimator.RedundancyThreshold) {
		return &ValidationError{
			Field:  "estimator.redundancy_threshold",
			Value:  c.Estimator.RedundancyThreshold,
			Reason: "must be non-negative",
		}
	}

	if c.Batch.Concurrency < 1 {
		return &ValidationError{
			Field:  "batch.concurrency",
			Value:  c.Batch.Concurrency,
			Reason: "must be at least 1",
		}
	}

	return nil
}

func checkUnitInterval(field string, val float64) error {
	if math.IsNaN(val) || val < 0 || val > 1 {
		return &ValidationError{Field: field, Value: val, Reason: "must be within [0, 1]"}
	}
	return nil
}
