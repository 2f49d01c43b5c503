package config

import (
	"time"

	"github.com/catenarymaps/spruce-sync/internal/category"
	"github.com/catenarymaps/spruce-sync/internal/tiles"
)

// TapConfig is the root configuration for a sync session.
type TapConfig struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Connection ConnectionConfig `yaml:"connection"`
	Trip       TripConfig       `yaml:"trip"`
	MapView    MapViewConfig    `yaml:"map_view"`
	Database   DBConfig         `yaml:"database"`
	Recorder   RecorderConfig   `yaml:"recorder"`
	Health     HealthConfig     `yaml:"health"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// InstanceConfig identifies this client.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ConnectionConfig holds WebSocket settings.
type ConnectionConfig struct {
	URL              string        `yaml:"url" validate:"url"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
}

// TripConfig selects a trip to follow at startup. Empty partition means none.
type TripConfig struct {
	Partition string         `yaml:"partition"`
	Params    map[string]any `yaml:"params"`
}

// MapViewConfig describes the camera pushed as map-view updates.
type MapViewConfig struct {
	Enabled    bool                `yaml:"enabled"`
	Interval   time.Duration       `yaml:"interval"`
	Viewport   tiles.Viewport      `yaml:"viewport"`
	Zoom       float64             `yaml:"zoom" validate:"gte=0,lte=24"`
	Screen     category.ScreenSize `yaml:"screen"`
	Layers     category.Toggles    `yaml:"layers"`
	Partitions []string            `yaml:"partitions"`
	Feeds      map[string][]string `yaml:"feeds"`
}

// DBConfig holds the archive database connection.
type DBConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RecorderConfig holds frame archive batching settings.
type RecorderConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// HealthConfig holds the health server settings. Port 0 disables it.
type HealthConfig struct {
	Port int `yaml:"port" validate:"gte=0,lte=65535"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}
