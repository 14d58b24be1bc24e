// Package config loads engine settings from a YAML file and environment
// variables. Priority: ENV > YAML > defaults.
package config

import (
	"fmt"
	"time"
)

type Config struct {
	Queue     QueueConfig     `yaml:"queue"`
	Storage   StorageConfig   `yaml:"storage"`
	Channel   ChannelConfig   `yaml:"channel"`
	Transport TransportConfig `yaml:"transport"`
	Monitor   MonitorConfig   `yaml:"monitor"`
}

type QueueConfig struct {
	Capacity    int           `yaml:"capacity" env:"NOTESYNC_QUEUE_CAPACITY" env-default:"200"`
	MaxAttempts int           `yaml:"max_attempts" env:"NOTESYNC_QUEUE_MAX_ATTEMPTS" env-default:"3"`
	BackoffBase time.Duration `yaml:"backoff_base" env:"NOTESYNC_QUEUE_BACKOFF_BASE" env-default:"2s"`
	BackoffMax  time.Duration `yaml:"backoff_max" env:"NOTESYNC_QUEUE_BACKOFF_MAX" env-default:"30s"`
}

type StorageConfig struct {
	// Backend selects the persisted queue store: "file" or "sqlite".
	Backend string `yaml:"backend" env:"NOTESYNC_STORAGE_BACKEND" env-default:"file"`
	// Path is the directory for the file backend, or the SQLite DSN.
	Path string `yaml:"path" env:"NOTESYNC_STORAGE_PATH" env-default:".notesync"`
}

type ChannelConfig struct {
	URL               string        `yaml:"url" env:"NOTESYNC_CHANNEL_URL"`
	ReconnectBase     time.Duration `yaml:"reconnect_base" env:"NOTESYNC_CHANNEL_RECONNECT_BASE" env-default:"1s"`
	ReconnectMax      time.Duration `yaml:"reconnect_max" env:"NOTESYNC_CHANNEL_RECONNECT_MAX" env-default:"30s"`
	ReconnectAttempts int           `yaml:"reconnect_attempts" env:"NOTESYNC_CHANNEL_RECONNECT_ATTEMPTS" env-default:"8"`
}

type TransportConfig struct {
	// Timeout applies to each individual transport attempt. A timeout is
	// treated identically to a network failure.
	Timeout time.Duration `yaml:"timeout" env:"NOTESYNC_TRANSPORT_TIMEOUT" env-default:"10s"`
}

type MonitorConfig struct {
	SettleDelay time.Duration `yaml:"settle_delay" env:"NOTESYNC_MONITOR_SETTLE_DELAY" env-default:"2s"`
}

func (c *Config) Validate() error {
	if c.Queue.Capacity <= 0 {
		return fmt.Errorf("queue.capacity must be positive, got %d", c.Queue.Capacity)
	}
	if c.Queue.MaxAttempts <= 0 {
		return fmt.Errorf("queue.max_attempts must be positive, got %d", c.Queue.MaxAttempts)
	}
	switch c.Storage.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("storage.backend must be file or sqlite, got %q", c.Storage.Backend)
	}
	return nil
}
