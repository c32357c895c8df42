package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"projectdw/internal/common"
	"projectdw/pkg/errors"
	"projectdw/pkg/models"
)

const (
	// ConfigName is the config file base name searched by viper.
	ConfigName = "projectdw"
	// EnvPrefix prefixes every environment override, e.g. PROJECTDW_PATHS_SOURCE_DIR.
	EnvPrefix = "PROJECTDW"
)

// SetDefaults registers every configuration default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("paths.source_dir", "csv")
	v.SetDefault("paths.warehouse_dir", "data_warehouse_csv")
	v.SetDefault("paths.olap_dir", "cubo_olap_csv")
	v.SetDefault("paths.state_file", "etl_state_tracking.json")
	v.SetDefault("paths.journal_file", "etl_state_tracking.journal")

	v.SetDefault("calendar.start", "2010-01-01")
	v.SetDefault("calendar.end", "2030-12-31")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("loader.driver", "sqlite3")
	v.SetDefault("loader.dsn", "projectdw.db")
	v.SetDefault("loader.batch_size", 500)
	v.SetDefault("loader.truncate", false)
	v.SetDefault("loader.include_olap", false)
	v.SetDefault("loader.snowflake.timeout", "30s")
}

// NewViper returns a viper instance with defaults, env binding and the
// standard search path (working directory, then ~/.projectdw).
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetConfigName(ConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".projectdw"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Keys without defaults are only seen by Unmarshal when bound explicitly.
	for _, key := range []string{
		"loader.snowflake.account",
		"loader.snowflake.username",
		"loader.snowflake.password",
		"loader.snowflake.role",
		"loader.snowflake.warehouse",
		"loader.snowflake.database",
		"loader.snowflake.schema",
	} {
		_ = v.BindEnv(key)
	}
	return v
}

// ReadInConfig reads the config file if one exists. A missing file is not an
// error; defaults apply.
func ReadInConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to read configuration file").
			WithContext("file", v.ConfigFileUsed())
	}
	return nil
}

// Load decodes v into a validated Config.
func Load(v *viper.Viper) (*models.Config, error) {
	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to decode configuration")
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings a run depends on.
func Validate(cfg *models.Config) error {
	required := map[string]string{
		"paths.source_dir":    cfg.Paths.SourceDir,
		"paths.warehouse_dir": cfg.Paths.WarehouseDir,
		"paths.olap_dir":      cfg.Paths.OLAPDir,
		"paths.state_file":    cfg.Paths.StateFile,
		"paths.journal_file":  cfg.Paths.JournalFile,
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			return errors.ConfigError(fmt.Sprintf("%s must not be empty", field), field)
		}
	}

	start, err := time.Parse("2006-01-02", cfg.Calendar.Start)
	if err != nil {
		return errors.ConfigError("calendar.start must be YYYY-MM-DD", "calendar.start")
	}
	end, err := time.Parse("2006-01-02", cfg.Calendar.End)
	if err != nil {
		return errors.ConfigError("calendar.end must be YYYY-MM-DD", "calendar.end")
	}
	if end.Before(start) {
		return errors.ConfigError("calendar.end is before calendar.start", "calendar.end")
	}

	if cfg.Loader.BatchSize <= 0 {
		return errors.ConfigError("loader.batch_size must be positive", "loader.batch_size")
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return errors.ConfigError(fmt.Sprintf("unknown log format %q", cfg.Log.Format), "log.format")
	}
	return nil
}

// Default returns the configuration implied by SetDefaults alone.
func Default() *models.Config {
	v := viper.New()
	SetDefaults(v)
	var cfg models.Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Save writes cfg as YAML to path. It refuses to replace an existing file
// unless force is set.
func Save(path string, cfg *models.Config, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.New(errors.ErrCodeConfigExists, fmt.Sprintf("Configuration file %s already exists", path)).
			WithContext("path", path).
			WithSuggestions("Pass --force to overwrite it")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, common.DirPermissionNormal); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigWrite, "Failed to create configuration directory").
				WithContext("path", dir)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigWrite, "Failed to marshal configuration")
	}

	if err := os.WriteFile(path, data, common.FilePermissionSecure); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigWrite, "Failed to write configuration file").
			WithContext("path", path)
	}
	return nil
}
