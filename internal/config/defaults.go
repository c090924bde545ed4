package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultOrderbookBatchSize = 50
	DefaultTradeBatchSize     = 200
	DefaultFlushInterval      = 5 * time.Second
	DefaultDepthLevels        = 20
	DefaultMarketType         = "spot"
	DefaultListenAddr         = ":8000"
	DefaultMetricsPath        = "/metrics"
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2

	// Monitor timing. The stall ceiling applies to orderbook feeds only;
	// trade feeds rely on the stream source's own liveness.
	DefaultStallCeiling  = 30 * time.Second
	DefaultRetryInterval = 5 * time.Second
)

func (c *CollectorConfig) applyDefaults() {
	if c.Orderbooks.BatchSize == 0 {
		c.Orderbooks.BatchSize = DefaultOrderbookBatchSize
	}
	if c.Orderbooks.FlushInterval == 0 {
		c.Orderbooks.FlushInterval = DefaultFlushInterval
	}
	if c.Orderbooks.DepthLevels == 0 {
		c.Orderbooks.DepthLevels = DefaultDepthLevels
	}
	if c.Trades.BatchSize == 0 {
		c.Trades.BatchSize = DefaultTradeBatchSize
	}
	if c.Trades.FlushInterval == 0 {
		c.Trades.FlushInterval = DefaultFlushInterval
	}

	applyGroupDefaults(c.Orderbooks.Groups)
	applyGroupDefaults(c.Trades.Groups)

	if c.Server.Addr == "" {
		c.Server.Addr = DefaultListenAddr
	}
	if c.Server.MetricsPath == "" {
		c.Server.MetricsPath = DefaultMetricsPath
	}

	if c.Manifest.Enabled {
		applyDBDefaults(&c.Manifest.Database)
	}
}

func applyGroupDefaults(groups []GroupConfig) {
	for i := range groups {
		if groups[i].MarketType == "" {
			groups[i].MarketType = DefaultMarketType
		}
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
