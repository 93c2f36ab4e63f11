// Package config provides configuration types and loading for cuedeck.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Console, Paths, Notify, Watch.
type Config struct {
	Console ConsoleConfig `json:"console"`
	Paths   PathsConfig   `json:"paths"`
	Notify  NotifyConfig  `json:"notify"`
	Watch   WatchConfig   `json:"watch"`
}

// ---------------------------------------------------------------------------
// Console – HTTP server networking
// ---------------------------------------------------------------------------

// ConsoleConfig contains console server settings.
type ConsoleConfig struct {
	Host      string `json:"host" envconfig:"HOST"`
	Port      int    `json:"port" envconfig:"PORT"`
	AuthToken string `json:"authToken" envconfig:"AUTH_TOKEN"`
}

// ---------------------------------------------------------------------------
// Paths – filesystem locations
// ---------------------------------------------------------------------------

// PathsConfig groups all filesystem path settings.
//
// DBPath is a shared contract with the external MCP server process: both
// sides must point at the same SQLite file and agree on the table shapes.
type PathsConfig struct {
	DBPath string `json:"dbPath" envconfig:"DB_PATH"`
}

// ---------------------------------------------------------------------------
// Notify – operator notification sinks
// ---------------------------------------------------------------------------

// NotifyConfig contains notification sink configurations.
type NotifyConfig struct {
	Slack SlackConfig `json:"slack"`
	Kafka KafkaConfig `json:"kafka"`
}

// SlackConfig configures the Slack notifier.
type SlackConfig struct {
	Enabled bool   `json:"enabled" envconfig:"ENABLED"`
	Token   string `json:"token" envconfig:"TOKEN"`
	Channel string `json:"channel" envconfig:"CHANNEL"`
}

// KafkaConfig configures the Kafka lifecycle-event publisher.
type KafkaConfig struct {
	Enabled bool   `json:"enabled" envconfig:"ENABLED"`
	Brokers string `json:"brokers" envconfig:"BROKERS"`
	Topic   string `json:"topic" envconfig:"TOPIC"`
}

// ---------------------------------------------------------------------------
// Watch – pending-cue watcher
// ---------------------------------------------------------------------------

// WatchConfig contains settings for the pending-cue watcher.
type WatchConfig struct {
	Interval time.Duration `json:"interval" envconfig:"INTERVAL"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Console: ConsoleConfig{
			Host: "127.0.0.1", // Secure default
			Port: 4643,
		},
		Paths: PathsConfig{
			DBPath: "~/.cuedeck/cuedeck.db",
		},
		Notify: NotifyConfig{
			Slack: SlackConfig{Enabled: false},
			Kafka: KafkaConfig{
				Enabled: false,
				Topic:   "cuedeck.events",
			},
		},
		Watch: WatchConfig{
			Interval: 5 * time.Second,
		},
	}
}
