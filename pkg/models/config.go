package models

import "time"

// Config is the resolved application configuration.
type Config struct {
	Snowflake Snowflake `mapstructure:"snowflake" yaml:"snowflake"`
	Warehouse Warehouse `mapstructure:"warehouse" yaml:"warehouse"`
	Load      Load      `mapstructure:"load" yaml:"load"`
	Pipeline  Pipeline  `mapstructure:"pipeline" yaml:"pipeline"`
	Archive   Archive   `mapstructure:"archive" yaml:"archive"`
	Ledger    Ledger    `mapstructure:"ledger" yaml:"ledger"`
	Dashboard Dashboard `mapstructure:"dashboard" yaml:"dashboard"`
	Log       Log       `mapstructure:"log" yaml:"log"`
}

// Snowflake selects and tunes the warehouse connection.
type Snowflake struct {
	ConnectionName  string        `mapstructure:"connection_name" yaml:"connection_name"`
	ConnectionsFile string        `mapstructure:"connections_file" yaml:"connections_file"` // empty = $SNOWFLAKE_HOME or ~/.snowflake
	QueryTimeout    time.Duration `mapstructure:"query_timeout" yaml:"query_timeout"`       // 0 = no per-statement timeout
}

// Warehouse names the database objects the harness touches.
type Warehouse struct {
	Database   string `mapstructure:"database" yaml:"database"`
	RawSchema  string `mapstructure:"raw_schema" yaml:"raw_schema"`
	FanTable   string `mapstructure:"fan_table" yaml:"fan_table"`
	BoxTable   string `mapstructure:"box_office_table" yaml:"box_office_table"`
	FansTotal  string `mapstructure:"fans_total_table" yaml:"fans_total_table"`
	FactsTotal string `mapstructure:"facts_total_table" yaml:"facts_total_table"`
}

// Load holds the batch loader constants.
type Load struct {
	Batches        int           `mapstructure:"batches" yaml:"batches"`
	StartBatch     int           `mapstructure:"start_batch" yaml:"start_batch"`
	FanCount       int           `mapstructure:"fan_count" yaml:"fan_count"`
	BoxOfficeCount int           `mapstructure:"box_office_count" yaml:"box_office_count"`
	BatchInterval  time.Duration `mapstructure:"batch_interval" yaml:"batch_interval"`
	SourceSystem   string        `mapstructure:"source_system" yaml:"source_system"`
	Seed           int64         `mapstructure:"seed" yaml:"seed"` // 0 = time-seeded
}

// Pipeline points at an optional dynamic table graph file.
type Pipeline struct {
	File string `mapstructure:"file" yaml:"file"`
}

// Archive configures where batch payloads are copied, if anywhere.
type Archive struct {
	Dir         string `mapstructure:"dir" yaml:"dir"`
	S3Bucket    string `mapstructure:"s3_bucket" yaml:"s3_bucket"`
	S3Prefix    string `mapstructure:"s3_prefix" yaml:"s3_prefix"`
	S3Region    string `mapstructure:"s3_region" yaml:"s3_region"`
	S3Endpoint  string `mapstructure:"s3_endpoint" yaml:"s3_endpoint"`
	S3PathStyle bool   `mapstructure:"s3_path_style" yaml:"s3_path_style"`
}

// Enabled reports whether any archive sink is configured.
func (a Archive) Enabled() bool {
	return a.Dir != "" || a.S3Bucket != ""
}

// Ledger configures the local run ledger.
type Ledger struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// Dashboard configures the monitoring dashboard server.
type Dashboard struct {
	Addr    string `mapstructure:"addr" yaml:"addr"`
	Profile string `mapstructure:"profile" yaml:"profile"` // local | sis
}

// Log configures structured logging.
type Log struct {
	Level       string `mapstructure:"level" yaml:"level"`
	DriverLevel string `mapstructure:"driver_level" yaml:"driver_level"`
	Pretty      bool   `mapstructure:"pretty" yaml:"pretty"`
}
