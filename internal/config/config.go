package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Identity resolution settings
	Identity IdentityConfig `yaml:"identity"`

	// Ownership matrix settings
	Ownership OwnershipConfig `yaml:"ownership"`

	// Collaboration graph settings
	Collab CollabConfig `yaml:"collab"`

	// Estimator settings
	Estimator EstimatorConfig `yaml:"estimator"`

	// Batch analysis settings
	Batch BatchConfig `yaml:"batch"`
}

type StorageConfig struct {
	Type        string `yaml:"type"` // "postgres", "sqlite"
	PostgresDSN string `yaml:"postgres_dsn"`
	LocalPath   string `yaml:"local_path"`
}

type IdentityConfig struct {
	// SimilarityThreshold is the minimum name similarity for an automatic
	// fuzzy merge. Pairs scoring between ReviewThreshold and this value
	// are surfaced for manual review instead.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	ReviewThreshold     float64 `yaml:"review_threshold"`
	OverridesPath       string  `yaml:"overrides_path"`
	PendingDBPath       string  `yaml:"pending_db_path"`
}

type OwnershipConfig struct {
	// WeightMode selects how knowledge weights are accumulated:
	// "doa", "lines" or "commits".
	WeightMode string `yaml:"weight_mode"`

	// ExcludePatterns are glob patterns for third-party or generated
	// paths that should not count toward ownership.
	ExcludePatterns []string `yaml:"exclude_patterns"`

	// DoA model constants (Avelino et al.)
	DoABase          float64 `yaml:"doa_base"`
	DoAFirstAuthor   float64 `yaml:"doa_first_author"`
	DoAChanges       float64 `yaml:"doa_changes"`
	DoAOthersChanges float64 `yaml:"doa_others_changes"`
}

type CollabConfig struct {
	FreshConnectionWeight float64 `yaml:"fresh_connection_weight"`
	DecayStrength         float64 `yaml:"decay_strength"`
	FilterBots            bool    `yaml:"filter_bots"`
}

type EstimatorConfig struct {
	// KnowledgeThreshold is the minimum normalized ownership share for a
	// contributor to count as a knowledgeable owner of a file.
	KnowledgeThreshold float64 `yaml:"knowledge_threshold"`

	// CoverageThreshold is the fraction of files that must retain a
	// knowledgeable owner; estimation stops once coverage drops below it.
	CoverageThreshold float64 `yaml:"coverage_threshold"`

	// RedundancyThreshold is the minimum collaboration edge weight for
	// one contributor's knowledge to substitute another's. +Inf disables
	// the social adjustment entirely.
	RedundancyThreshold float64 `yaml:"redundancy_threshold"`
}

type BatchConfig struct {
	// Concurrency bounds how many projects are analyzed in parallel.
	Concurrency int `yaml:"concurrency"`
}

// Default returns default configuration.
// Threshold defaults follow the published DoA study constants; they are
// tuning parameters, not fixed truths, and may be overridden per run.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Storage: StorageConfig{
			Type:      "sqlite",
			LocalPath: filepath.Join(homeDir, ".truckfactor", "local.db"),
		},
		Identity: IdentityConfig{
			SimilarityThreshold: 0.85,
			ReviewThreshold:     0.70,
			PendingDBPath:       filepath.Join(homeDir, ".truckfactor", "pending.db"),
		},
		Ownership: OwnershipConfig{
			WeightMode: "doa",
			ExcludePatterns: []string{
				"vendor/**",
				"node_modules/**",
				"**/*.min.js",
				"**/*.lock",
			},
			DoABase:          3.293,
			DoAFirstAuthor:   1.098,
			DoAChanges:       0.164,
			DoAOthersChanges: 0.321,
		},
		Collab: CollabConfig{
			FreshConnectionWeight: 1.0,
			DecayStrength:         0.25,
			FilterBots:            true,
		},
		Estimator: EstimatorConfig{
			KnowledgeThreshold:  0.75,
			CoverageThreshold:   0.5,
			RedundancyThreshold: 1.0,
		},
		Batch: BatchConfig{
			Concurrency: 4,
		},
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	// Load .env files first (in order of precedence)
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults
	cfg := Default()
	v.SetDefault("storage", cfg.Storage)
	v.SetDefault("identity", cfg.Identity)
	v.SetDefault("ownership", cfg.Ownership)
	v.SetDefault("collab", cfg.Collab)
	v.SetDefault("estimator", cfg.Estimator)
	v.SetDefault("batch", cfg.Batch)

	// Load from environment variables
	v.SetEnvPrefix("TRUCKFACTOR")
	v.AutomaticEnv()

	// Try to find config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search for config in standard locations
		v.SetConfigName("config")
		v.AddConfigPath(".truckfactor")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".truckfactor"))
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	// Unmarshal into struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	envFiles := []string{
		".env.local", // Local overrides (highest precedence)
		".env",       // Main environment file
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	// Also try loading from home directory
	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".truckfactor", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	// Storage configuration
	if storageType := os.Getenv("STORAGE_TYPE"); storageType != "" {
		cfg.Storage.Type = storageType
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
	if path := os.Getenv("LOCAL_DB_PATH"); path != "" {
		cfg.Storage.LocalPath = expandPath(path)
	}

	// Estimator thresholds
	if raw := os.Getenv("TRUCKFACTOR_KNOWLEDGE_THRESHOLD"); raw != "" {
		if val, err := strconv.ParseFloat(raw, 64); err == nil {
			cfg.Estimator.KnowledgeThreshold = val
		}
	}
	if raw := os.Getenv("TRUCKFACTOR_COVERAGE_THRESHOLD"); raw != "" {
		if val, err := strconv.ParseFloat(raw, 64); err == nil {
			cfg.Estimator.CoverageThreshold = val
		}
	}
	if raw := os.Getenv("TRUCKFACTOR_REDUNDANCY_THRESHOLD"); raw != "" {
		if raw == "inf" {
			cfg.Estimator.RedundancyThreshold = math.Inf(1)
		} else if val, err := strconv.ParseFloat(raw, 64); err == nil {
			cfg.Estimator.RedundancyThreshold = val
		}
	}

	// Identity configuration
	if path := os.Getenv("TRUCKFACTOR_OVERRIDES"); path != "" {
		cfg.Identity.OverridesPath = expandPath(path)
	}

	// Batch configuration
	if raw := os.Getenv("TRUCKFACTOR_CONCURRENCY"); raw != "" {
		if val, err := strconv.Atoi(raw); err == nil {
			cfg.Batch.Concurrency = val
		}
	}
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("storage", c.Storage)
	v.Set("identity", c.Identity)
	v.Set("ownership", c.Ownership)
	v.Set("collab", c.Collab)
	v.Set("estimator", c.Estimator)
	v.Set("batch", c.Batch)

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write config file
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
