package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"studiopipe/internal/common"
	"studiopipe/pkg/errors"
	"studiopipe/pkg/models"
)

const (
	// EnvPrefix prefixes every environment override (STUDIOPIPE_LOAD_BATCHES, ...).
	EnvPrefix = "STUDIOPIPE"
	// ConnectionNameEnv selects the named Snowflake connection.
	ConnectionNameEnv = "SNOWFLAKE_CONNECTION_NAME"
	// ConfigFileEnv points at an explicit config file.
	ConfigFileEnv = "STUDIOPIPE_CONFIG"

	ProfileLocal = "local"
	ProfileSiS   = "sis"
)

// SetDefaults registers the built-in values on v. With no config file and no
// environment overrides they reproduce the original load script constants.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("snowflake.connection_name", "default")
	v.SetDefault("snowflake.connections_file", "")
	v.SetDefault("snowflake.query_timeout", time.Duration(0))

	v.SetDefault("warehouse.database", "SONY_DE")
	v.SetDefault("warehouse.raw_schema", "BRONZE")
	v.SetDefault("warehouse.fan_table", "RAW_FAN_INTERACTIONS")
	v.SetDefault("warehouse.box_office_table", "RAW_BOX_OFFICE")
	v.SetDefault("warehouse.fans_total_table", "GOLD.DT_DIM_FANS")
	v.SetDefault("warehouse.facts_total_table", "GOLD.DT_FACT_DAILY_PERFORMANCE")

	v.SetDefault("load.batches", 10)
	v.SetDefault("load.start_batch", 1)
	v.SetDefault("load.fan_count", 100)
	v.SetDefault("load.box_office_count", 50)
	v.SetDefault("load.batch_interval", 3*time.Second)
	v.SetDefault("load.source_system", "INCREMENTAL_LOAD")
	v.SetDefault("load.seed", 0)

	v.SetDefault("pipeline.file", "")

	v.SetDefault("archive.dir", "")
	v.SetDefault("archive.s3_bucket", "")
	v.SetDefault("archive.s3_prefix", "studiopipe")
	v.SetDefault("archive.s3_region", "us-east-1")
	v.SetDefault("archive.s3_endpoint", "")
	v.SetDefault("archive.s3_path_style", false)

	v.SetDefault("ledger.enabled", true)
	v.SetDefault("ledger.path", filepath.Join(common.AppDir(), "ledger.db"))

	v.SetDefault("dashboard.addr", ":8501")
	v.SetDefault("dashboard.profile", ProfileLocal)

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.driver_level", "error")
	v.SetDefault("log.pretty", false)
}

// New returns a viper instance with defaults, config file search paths and
// environment bindings registered. The config file itself is read by Read.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("snowflake.connection_name", ConnectionNameEnv, EnvPrefix+"_SNOWFLAKE_CONNECTION_NAME")

	if file := os.Getenv(ConfigFileEnv); file != "" {
		v.SetConfigFile(common.ExpandHome(file))
	} else {
		v.SetConfigName("studiopipe")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(common.AppDir())
	}

	return v
}

// ConnectionNamed reports whether the connection name was chosen through
// the environment or the config file, even when the choice is "default".
func ConnectionNamed(v *viper.Viper) bool {
	for _, env := range []string{ConnectionNameEnv, EnvPrefix + "_SNOWFLAKE_CONNECTION_NAME"} {
		if os.Getenv(env) != "" {
			return true
		}
	}
	return v.InConfig("snowflake.connection_name")
}

// Read loads the config file if one exists. A missing file is not an error.
func Read(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to read config file").
			WithContext("file", v.ConfigFileUsed())
	}
	return nil
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*models.Config, error) {
	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to decode configuration")
	}

	cfg.Ledger.Path = common.ExpandHome(cfg.Ledger.Path)
	cfg.Archive.Dir = common.ExpandHome(cfg.Archive.Dir)
	cfg.Pipeline.File = common.ExpandHome(cfg.Pipeline.File)
	cfg.Snowflake.ConnectionsFile = common.ExpandHome(cfg.Snowflake.ConnectionsFile)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges that would otherwise fail deep inside a run.
func Validate(cfg *models.Config) error {
	switch {
	case cfg.Snowflake.ConnectionName == "":
		return errors.ConfigError("Connection name must not be empty", "snowflake.connection_name")
	case cfg.Warehouse.Database == "":
		return errors.ConfigError("Warehouse database must be set", "warehouse.database")
	case cfg.Load.Batches < 1:
		return errors.ConfigError("At least one batch is required", "load.batches")
	case cfg.Load.StartBatch < 1:
		return errors.ConfigError("Batch numbers start at 1", "load.start_batch")
	case cfg.Load.FanCount < 0:
		return errors.ConfigError("Fan interaction count cannot be negative", "load.fan_count")
	case cfg.Load.BoxOfficeCount < 0:
		return errors.ConfigError("Box office count cannot be negative", "load.box_office_count")
	case cfg.Load.BatchInterval < 0:
		return errors.ConfigError("Batch interval cannot be negative", "load.batch_interval")
	case cfg.Snowflake.QueryTimeout < 0:
		return errors.ConfigError("Query timeout cannot be negative", "snowflake.query_timeout")
	case cfg.Dashboard.Profile != ProfileLocal && cfg.Dashboard.Profile != ProfileSiS:
		return errors.ConfigError("Dashboard profile must be 'local' or 'sis'", "dashboard.profile")
	}
	return nil
}
