package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the MQTT samples.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Topics    TopicsConfig    `yaml:"topics"`
	Exchange  ExchangeConfig  `yaml:"exchange"`
	Samples   SamplesConfig   `yaml:"samples"`
	DevBroker DevBrokerConfig `yaml:"devbroker"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Presence  bool                `yaml:"presence"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
//
// URL takes precedence over Host/Port/TLS when set. It accepts the
// same forms as the sample command line: "tcp://host:port",
// "ssl://host:port", "ws://host:port/path" or a bare "host:port".
type MQTTBrokerConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
// The samples are short-lived, so reconnection is off by default.
type MQTTReconnectConfig struct {
	Enabled      bool `yaml:"enabled"`
	InitialDelay int  `yaml:"initial_delay"`
	MaxDelay     int  `yaml:"max_delay"`
}

// TopicsConfig names the well-known channels used by the samples.
type TopicsConfig struct {
	// Request is the request-intake channel the replier listens on.
	Request string `yaml:"request"`

	// ReplyToControl is the reserved channel on which the broker
	// assigns a per-session reply address.
	ReplyToControl string `yaml:"reply_to_control"`

	// DirectPublish is the topic used by the topic publisher sample.
	DirectPublish string `yaml:"direct_publish"`

	// DirectFilter is the filter used by the topic subscriber sample.
	DirectFilter string `yaml:"direct_filter"`

	// Queue is the topic used by the QoS 1 samples.
	Queue string `yaml:"queue"`
}

// ExchangeConfig contains request/reply exchange settings.
type ExchangeConfig struct {
	// Timeout bounds the wait for a correlated reply (seconds).
	Timeout int `yaml:"timeout"`

	// ReplyAddressTimeout bounds the wait for the broker to assign a
	// reply address on the control channel (seconds).
	ReplyAddressTimeout int `yaml:"reply_address_timeout"`

	// ReplyTopic is an optional well-known reply address. When set the
	// control channel is not used.
	ReplyTopic string `yaml:"reply_topic"`

	// ReplyAllow lists topic filters a replier may publish replies to.
	// Empty means any non-wildcard topic is accepted.
	ReplyAllow []string `yaml:"reply_allow"`

	// RequestMessage and ResponseMessage are the sample payload texts.
	RequestMessage  string `yaml:"request_message"`
	ResponseMessage string `yaml:"response_message"`
}

// SamplesConfig contains settings for the publish/subscribe samples.
type SamplesConfig struct {
	Message         string `yaml:"message"`
	PublishCount    int    `yaml:"publish_count"`
	PublishInterval int    `yaml:"publish_interval_ms"`
}

// DevBrokerConfig contains settings for the embedded development broker.
type DevBrokerConfig struct {
	Address     string `yaml:"address"`
	ReplyPrefix string `yaml:"reply_prefix"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MQTTSAMPLES_SECTION_KEY
// For example: MQTTSAMPLES_MQTT_HOST, MQTTSAMPLES_LOG_LEVEL
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment variable
// overrides applied. It is used when the samples run without a config file.
func Default() (*Config, error) {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with the sample defaults.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Topics: TopicsConfig{
			Request:        "T/GettingStarted/request",
			ReplyToControl: "$SYS/client/reply-to",
			DirectPublish:  "solace/samples/mqtt/direct/pub",
			DirectFilter:   "solace/samples/+/direct/#",
			Queue:          "Q/tutorial",
		},
		Exchange: ExchangeConfig{
			Timeout:             10,
			ReplyAddressTimeout: 5,
			RequestMessage:      "Sample Request",
			ResponseMessage:     "Sample Response",
		},
		Samples: SamplesConfig{
			Message:         "Hello world from MQTT!",
			PublishCount:    100,
			PublishInterval: 1000,
		},
		DevBroker: DevBrokerConfig{
			Address:     "127.0.0.1:1883",
			ReplyPrefix: "_reply",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: MQTTSAMPLES_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("MQTTSAMPLES_MQTT_URL"); v != "" {
		cfg.MQTT.Broker.URL = v
	}
	if v := os.Getenv("MQTTSAMPLES_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MQTTSAMPLES_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}
	if v := os.Getenv("MQTTSAMPLES_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MQTTSAMPLES_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Exchange
	if v := os.Getenv("MQTTSAMPLES_EXCHANGE_TIMEOUT"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			cfg.Exchange.Timeout = seconds
		}
	}

	// Logging
	if v := os.Getenv("MQTTSAMPLES_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.Broker.URL == "" {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt.broker.url is empty")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Topic validation
	if c.Topics.Request == "" {
		errs = append(errs, "topics.request is required")
	}
	if c.Topics.ReplyToControl == "" && c.Exchange.ReplyTopic == "" {
		errs = append(errs, "topics.reply_to_control or exchange.reply_topic is required")
	}
	if strings.ContainsAny(c.Topics.Request, "+#") {
		errs = append(errs, "topics.request must not contain wildcards")
	}
	if strings.ContainsAny(c.Exchange.ReplyTopic, "+#") {
		errs = append(errs, "exchange.reply_topic must not contain wildcards")
	}

	// Exchange validation
	if c.Exchange.Timeout <= 0 {
		errs = append(errs, "exchange.timeout must be positive")
	}
	if c.Exchange.ReplyAddressTimeout <= 0 {
		errs = append(errs, "exchange.reply_address_timeout must be positive")
	}

	// Samples validation
	if c.Samples.PublishCount < 1 {
		errs = append(errs, "samples.publish_count must be at least 1")
	}
	if c.Samples.PublishInterval < 0 {
		errs = append(errs, "samples.publish_interval_ms must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetExchangeTimeout returns the reply wait bound as a Duration.
func (c *Config) GetExchangeTimeout() time.Duration {
	return time.Duration(c.Exchange.Timeout) * time.Second
}

// GetReplyAddressTimeout returns the reply address wait bound as a Duration.
func (c *Config) GetReplyAddressTimeout() time.Duration {
	return time.Duration(c.Exchange.ReplyAddressTimeout) * time.Second
}

// GetPublishInterval returns the topic publisher interval as a Duration.
func (c *Config) GetPublishInterval() time.Duration {
	return time.Duration(c.Samples.PublishInterval) * time.Millisecond
}
