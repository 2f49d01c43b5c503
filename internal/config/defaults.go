package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultWSURL            = "wss://spruce.catenarymaps.org/ws/"
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultMapViewInterval  = 10 * time.Second
	DefaultScreenWidth      = 1920
	DefaultScreenHeight     = 1080
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 4
	DefaultMinConns         = 1
	DefaultBatchSize        = 500
	DefaultFlushInterval    = 1 * time.Second
	DefaultLogLevel         = "info"
)

func (c *TapConfig) applyDefaults() {
	// Connection defaults
	if c.Connection.URL == "" {
		c.Connection.URL = DefaultWSURL
	}
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}

	// Map view defaults
	if c.MapView.Interval == 0 {
		c.MapView.Interval = DefaultMapViewInterval
	}
	if c.MapView.Screen.Width == 0 {
		c.MapView.Screen.Width = DefaultScreenWidth
	}
	if c.MapView.Screen.Height == 0 {
		c.MapView.Screen.Height = DefaultScreenHeight
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Recorder defaults
	if c.Recorder.BatchSize == 0 {
		c.Recorder.BatchSize = DefaultBatchSize
	}
	if c.Recorder.FlushInterval == 0 {
		c.Recorder.FlushInterval = DefaultFlushInterval
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
}
