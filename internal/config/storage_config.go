package config

import (
	"errors"
	"fmt"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type StorageConfig interface {
	GetStorageDriver() string
	GetSQLitePath() string
	GetDatabaseURL() string
}

type Storage struct {
	Driver      string `env:"STORAGE_DRIVER" envDefault:"memory"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"./data/orgs.db"`
	DatabaseURL string `env:"DATABASE_URL"`
}

var _ StorageConfig = Storage{}

func (s Storage) GetStorageDriver() string {
	return s.Driver
}

func (s Storage) GetSQLitePath() string {
	return s.SQLitePath
}

func (s Storage) GetDatabaseURL() string {
	return s.DatabaseURL
}

func (s Storage) validate() error {
	switch s.Driver {
	case DriverMemory:
		return nil
	case DriverSQLite:
		if s.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite driver")
		}
		return nil
	case DriverPostgres:
		if s.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
		return nil
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", s.Driver)
	}
}
