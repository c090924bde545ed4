package config

import "time"

// CollectorConfig is the root configuration for a collector instance.
type CollectorConfig struct {
	Instance   InstanceConfig  `yaml:"instance"`
	DataRoot   string          `yaml:"data_root"`
	Orderbooks OrderbookConfig `yaml:"orderbooks"`
	Trades     EntityConfig    `yaml:"trades"`
	Server     ServerConfig    `yaml:"server"`
	Manifest   ManifestConfig  `yaml:"manifest"`
}

// InstanceConfig identifies this collector.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// EntityConfig holds the per-entity-type collection settings.
type EntityConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	Groups        []GroupConfig `yaml:"groups"`
}

// OrderbookConfig extends EntityConfig with the fixed book depth. Depth
// determines the batch column layout and must not change across the
// lifetime of a running instance.
type OrderbookConfig struct {
	EntityConfig `yaml:",inline"`
	DepthLevels  int `yaml:"depth_levels"`
}

// GroupConfig is one (exchange, market type, symbols) subscription group.
type GroupConfig struct {
	Exchange   string   `yaml:"exchange" json:"exchange"`
	MarketType string   `yaml:"market_type" json:"market_type"`
	Symbols    []string `yaml:"symbols" json:"symbols"`
}

// ServerConfig holds the live-transport HTTP server settings.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MetricsPath string `yaml:"metrics_path"`
}

// ManifestConfig holds the optional batch-manifest database. When
// disabled the collector runs standalone and writes no manifest rows.
type ManifestConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Database DBConfig `yaml:"database"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}
