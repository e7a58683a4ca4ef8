package storage

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/truckfactor/truckfactor-go/internal/config"
)

// New builds a Store from configuration.
func New(cfg config.StorageConfig, logger *logrus.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.LocalPath, logger)
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("storage type postgres requires postgres_dsn")
		}
		return NewPostgresStore(cfg.PostgresDSN, logger)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
