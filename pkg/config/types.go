package config

import (
	"fmt"
	"time"
)

// Config represents the persistent streamflow configuration stored as
// config.toml in the .streamflow/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version       int                 `toml:"version"`
	Client        ClientConfig        `toml:"client"`
	Notifications NotificationsConfig `toml:"notifications"`
	Proxy         ProxyConfig         `toml:"proxy"`
	API           APIConfig           `toml:"api"`
	Storage       StorageConfig       `toml:"storage"`
	EventStream   EventStreamConfig   `toml:"eventstream"`
}

// ClientConfig holds settings for "streamflow chat" and its connection to
// the producer (or to a recording proxy in front of it).
type ClientConfig struct {
	Endpoint     string `toml:"endpoint,omitempty"`
	ResponseNode string `toml:"response_node,omitempty"`
	// Timeout is a Go duration string, e.g. "5m".
	Timeout string `toml:"timeout,omitempty"`
}

// NotificationsConfig holds notification lifecycle settings.
type NotificationsConfig struct {
	// TTL is a Go duration string, e.g. "5s".
	TTL string `toml:"ttl,omitempty"`
}

// ProxyConfig holds recording proxy settings.
type ProxyConfig struct {
	Upstream string `toml:"upstream,omitempty"`
	Listen   string `toml:"listen,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// StorageConfig holds shared storage settings used by both proxy and API.
type StorageConfig struct {
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
	LibSQLURL   string `toml:"libsql_url,omitempty"`
}

// EventStreamConfig holds turn event publishing settings.
type EventStreamConfig struct {
	Provider string `toml:"provider,omitempty"`
	// KafkaBrokers is a comma separated list of host:port pairs.
	KafkaBrokers string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string `toml:"kafka_topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"client.endpoint": {
		get: func(c *Config) string { return c.Client.Endpoint },
		set: func(c *Config, v string) error { c.Client.Endpoint = v; return nil },
	},
	"client.response_node": {
		get: func(c *Config) string { return c.Client.ResponseNode },
		set: func(c *Config, v string) error { c.Client.ResponseNode = v; return nil },
	},
	"client.timeout": {
		get: func(c *Config) string { return c.Client.Timeout },
		set: func(c *Config, v string) error {
			if err := validateDuration("client.timeout", v); err != nil {
				return err
			}
			c.Client.Timeout = v
			return nil
		},
	},
	"notifications.ttl": {
		get: func(c *Config) string { return c.Notifications.TTL },
		set: func(c *Config, v string) error {
			if err := validateDuration("notifications.ttl", v); err != nil {
				return err
			}
			c.Notifications.TTL = v
			return nil
		},
	},
	"proxy.upstream": {
		get: func(c *Config) string { return c.Proxy.Upstream },
		set: func(c *Config, v string) error { c.Proxy.Upstream = v; return nil },
	},
	"proxy.listen": {
		get: func(c *Config) string { return c.Proxy.Listen },
		set: func(c *Config, v string) error { c.Proxy.Listen = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"storage.provider": {
		get: func(c *Config) string { return c.Storage.Provider },
		set: func(c *Config, v string) error { c.Storage.Provider = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"storage.libsql_url": {
		get: func(c *Config) string { return c.Storage.LibSQLURL },
		set: func(c *Config, v string) error { c.Storage.LibSQLURL = v; return nil },
	},
	"eventstream.provider": {
		get: func(c *Config) string { return c.EventStream.Provider },
		set: func(c *Config, v string) error {
			switch v {
			case EventStreamNop, EventStreamKafka:
				c.EventStream.Provider = v
				return nil
			default:
				return fmt.Errorf("invalid value for eventstream.provider: %q (available: %s, %s)", v, EventStreamNop, EventStreamKafka)
			}
		},
	},
	"eventstream.kafka_brokers": {
		get: func(c *Config) string { return c.EventStream.KafkaBrokers },
		set: func(c *Config, v string) error { c.EventStream.KafkaBrokers = v; return nil },
	},
	"eventstream.kafka_topic": {
		get: func(c *Config) string { return c.EventStream.KafkaTopic },
		set: func(c *Config, v string) error { c.EventStream.KafkaTopic = v; return nil },
	},
}

func validateDuration(key, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("invalid value for %s: must be positive", key)
	}
	return nil
}
