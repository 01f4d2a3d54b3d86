package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides (e.g. SHMBRIDGE_SOCKET_PATH).
// Unprefixed variables are never read.
const EnvPrefix = "SHMBRIDGE"

// Config represents the complete shm-bridge configuration
type Config struct {
	SocketPath string         `yaml:"socket_path" split_words:"true"` // shared-memory rendezvous socket
	CapsFile   string         `yaml:"caps_file" split_words:"true"`
	LogLevel   string         `yaml:"log_level" split_words:"true"`  // debug, info, warn, error
	LogFormat  string         `yaml:"log_format" split_words:"true"` // text, json
	Producer   ProducerConfig `yaml:"producer" split_words:"true"`
	Consumer   ConsumerConfig `yaml:"consumer" split_words:"true"`
}

// ProducerConfig contains shmsink-side settings
type ProducerConfig struct {
	SourceElement     string `yaml:"source_element" split_words:"true"`
	Pattern           int    `yaml:"pattern" split_words:"true"` // videotestsrc pattern (0 = smpte)
	IsLive            bool   `yaml:"is_live" split_words:"true"`
	ShmSize           uint   `yaml:"shm_size" split_words:"true"` // bytes
	WaitForConnection bool   `yaml:"wait_for_connection" split_words:"true"`
}

// ConsumerConfig contains shmsrc-side settings
type ConsumerConfig struct {
	Passthrough string        `yaml:"passthrough" split_words:"true"`
	DisplaySink string        `yaml:"display_sink" split_words:"true"`
	IsLive      bool          `yaml:"is_live" split_words:"true"`
	WaitForCaps time.Duration `yaml:"wait_for_caps" split_words:"true"` // 0 = no wait, a missing caps file ends the consumer
}

// Default returns the configuration both programs use when run without arguments
func Default() *Config {
	return &Config{
		SocketPath: "test_shm",
		CapsFile:   "caps.txt",
		LogLevel:   "info",
		LogFormat:  "text",
		Producer: ProducerConfig{
			SourceElement:     "videotestsrc",
			Pattern:           0,
			IsLive:            false,
			ShmSize:           1 << 20,
			WaitForConnection: true,
		},
		Consumer: ConsumerConfig{
			Passthrough: "identity",
			DisplaySink: "xvimagesink",
			IsLive:      false,
			WaitForCaps: 0,
		},
	}
}

// Load builds the configuration
//
// Sources are applied in order: Default(), the YAML file at path (skipped if
// path is empty), environment variables prefixed with EnvPrefix. The result
// is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse config: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to apply environment: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}

	return cfg, nil
}
