// Package config loads process configuration from PROCUREMENT_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"procurement/internal/blob"
	"procurement/internal/core"
)

// EnvPrefix namespaces every variable read by Load.
const EnvPrefix = "PROCUREMENT"

// Variable names, exported for tests and error messages.
const (
	EnvLogLevel          = "PROCUREMENT_LOG_LEVEL"
	EnvLogFormat         = "PROCUREMENT_LOG_FORMAT"
	EnvLogWarnStack      = "PROCUREMENT_LOG_WARN_STACK"
	EnvSeedDefaultUsers  = "PROCUREMENT_SEED_DEFAULT_USERS"
	EnvStorageDriver     = "PROCUREMENT_STORAGE_DRIVER"
	EnvStoragePath       = "PROCUREMENT_STORAGE_PATH"
	EnvSQLitePath        = "PROCUREMENT_SQLITE_PATH"
	EnvPostgresDSN       = "PROCUREMENT_POSTGRES_DSN"
	EnvBackupDriver      = "PROCUREMENT_BACKUP_DRIVER"
	EnvBackupRoot        = "PROCUREMENT_BACKUP_ROOT"
	EnvBackupS3Bucket    = "PROCUREMENT_BACKUP_S3_BUCKET"
	EnvBackupS3Region    = "PROCUREMENT_BACKUP_S3_REGION"
	EnvBackupS3Endpoint  = "PROCUREMENT_BACKUP_S3_ENDPOINT"
	EnvBackupS3PathStyle = "PROCUREMENT_BACKUP_S3_PATH_STYLE"
)

// DefaultStorageDir and DefaultStorageFile locate the document next to the
// executable when no path is configured.
const (
	DefaultStorageDir  = "Storage"
	DefaultStorageFile = "database.json"
)

// executable is swapped in tests.
var executable = os.Executable

// Config is the full process configuration.
type Config struct {
	App     AppConfig
	Storage StorageConfig
	Backup  BackupConfig
}

// Load reads the environment, applies defaults and resolves the storage path.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Storage.resolve(); err != nil {
		return nil, err
	}
	if err := cfg.Backup.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// AppConfig holds logging and first-run settings.
type AppConfig struct {
	LogLevel         string `envconfig:"PROCUREMENT_LOG_LEVEL" default:"info"`
	LogFormat        string `envconfig:"PROCUREMENT_LOG_FORMAT" default:"json"`
	LogWarnStack     bool   `envconfig:"PROCUREMENT_LOG_WARN_STACK" default:"false"`
	SeedDefaultUsers bool   `envconfig:"PROCUREMENT_SEED_DEFAULT_USERS" default:"true"`
}

// StorageConfig selects the document store backend.
type StorageConfig struct {
	Driver      string `envconfig:"PROCUREMENT_STORAGE_DRIVER" default:"file"`
	Path        string `envconfig:"PROCUREMENT_STORAGE_PATH"`
	SQLitePath  string `envconfig:"PROCUREMENT_SQLITE_PATH" default:"procurement.db"`
	PostgresDSN string `envconfig:"PROCUREMENT_POSTGRES_DSN"`
}

func (s *StorageConfig) resolve() error {
	s.Driver = strings.ToLower(strings.TrimSpace(s.Driver))
	switch core.StorageDriver(s.Driver) {
	case core.StorageFile, core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if strings.TrimSpace(s.PostgresDSN) == "" {
			return fmt.Errorf("%s is required for the postgres driver", EnvPostgresDSN)
		}
	default:
		return fmt.Errorf("%s: unknown storage driver %q", EnvStorageDriver, s.Driver)
	}
	path, err := ResolveStoragePath(s.Path)
	if err != nil {
		return err
	}
	s.Path = path
	return nil
}

// Core converts the storage settings for core.OpenPersistentStore.
func (s StorageConfig) Core() core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(s.Driver),
		Path:        s.Path,
		SQLitePath:  s.SQLitePath,
		PostgresDSN: s.PostgresDSN,
	}
}

// ResolveStoragePath returns path, or <executable dir>/Storage/database.json
// when path is blank.
func ResolveStoragePath(path string) (string, error) {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		return trimmed, nil
	}
	exe, err := executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), DefaultStorageDir, DefaultStorageFile), nil
}

// BackupConfig selects where snapshots are written; driver "none" disables
// backups.
type BackupConfig struct {
	Driver      string `envconfig:"PROCUREMENT_BACKUP_DRIVER" default:"none"`
	Root        string `envconfig:"PROCUREMENT_BACKUP_ROOT" default:"backups"`
	S3Bucket    string `envconfig:"PROCUREMENT_BACKUP_S3_BUCKET"`
	S3Region    string `envconfig:"PROCUREMENT_BACKUP_S3_REGION" default:"us-east-1"`
	S3Endpoint  string `envconfig:"PROCUREMENT_BACKUP_S3_ENDPOINT"`
	S3PathStyle bool   `envconfig:"PROCUREMENT_BACKUP_S3_PATH_STYLE" default:"false"`
}

func (b *BackupConfig) validate() error {
	b.Driver = strings.ToLower(strings.TrimSpace(b.Driver))
	switch blob.Driver(b.Driver) {
	case "", blob.DriverNone, blob.DriverFilesystem, blob.DriverMemory:
		return nil
	case blob.DriverS3:
		if strings.TrimSpace(b.S3Bucket) == "" {
			return fmt.Errorf("%s is required for the s3 backup driver", EnvBackupS3Bucket)
		}
		return nil
	default:
		return fmt.Errorf("%s: unknown backup driver %q", EnvBackupDriver, b.Driver)
	}
}

// Enabled reports whether a backup store is configured.
func (b BackupConfig) Enabled() bool {
	return b.Driver != "" && blob.Driver(b.Driver) != blob.DriverNone
}

// Blob converts the backup settings for blob.Open. Credentials come from the
// default AWS chain.
func (b BackupConfig) Blob() blob.Config {
	return blob.Config{
		Driver: blob.Driver(b.Driver),
		Root:   b.Root,
		S3: blob.S3Config{
			Bucket:    b.S3Bucket,
			Region:    b.S3Region,
			Endpoint:  b.S3Endpoint,
			PathStyle: b.S3PathStyle,
		},
	}
}
