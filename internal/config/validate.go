package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *CollectorConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}
	if c.DataRoot == "" {
		return errors.New("data_root is required")
	}

	if !c.Orderbooks.Enabled && !c.Trades.Enabled {
		return errors.New("at least one of orderbooks or trades must be enabled")
	}

	if c.Orderbooks.Enabled {
		if err := c.Orderbooks.EntityConfig.validate("orderbooks"); err != nil {
			return err
		}
		if c.Orderbooks.DepthLevels < 1 {
			return errors.New("orderbooks.depth_levels must be >= 1")
		}
	}
	if c.Trades.Enabled {
		if err := c.Trades.validate("trades"); err != nil {
			return err
		}
	}

	if c.Manifest.Enabled {
		if err := c.Manifest.Database.validate("manifest.database"); err != nil {
			return err
		}
	}

	return nil
}

func (e *EntityConfig) validate(prefix string) error {
	if e.BatchSize < 1 {
		return fmt.Errorf("%s.batch_size must be >= 1", prefix)
	}
	if e.FlushInterval <= 0 {
		return fmt.Errorf("%s.flush_interval must be > 0", prefix)
	}
	if len(e.Groups) == 0 {
		return fmt.Errorf("%s.groups must not be empty when enabled", prefix)
	}
	for i, g := range e.Groups {
		if g.Exchange == "" {
			return fmt.Errorf("%s.groups[%d].exchange is required", prefix, i)
		}
		if len(g.Symbols) == 0 {
			return fmt.Errorf("%s.groups[%d].symbols must not be empty", prefix, i)
		}
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
