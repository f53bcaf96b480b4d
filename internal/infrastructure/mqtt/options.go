package mqtt

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/mqtt-samples/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 30 * time.Second

	// defaultClientIDPrefix prefixes generated client IDs.
	defaultClientIDPrefix = "mqttsamples"

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// secureSchemes are broker URL schemes that require a TLS configuration.
var secureSchemes = map[string]bool{
	"ssl":   true,
	"tls":   true,
	"mqtts": true,
	"wss":   true,
}

// NewClientID returns "<prefix>_<8 hex chars>", the client ID shape the
// samples use so several of them can share a broker.
func NewClientID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString()[:8])
}

// BrokerURL returns the broker URL paho should dial.
//
// A configured URL wins over Host/Port/TLS. A URL without a scheme
// ("host:port") is treated as plain TCP.
func BrokerURL(cfg config.MQTTBrokerConfig) (string, error) {
	if cfg.URL == "" {
		scheme := "tcp"
		if cfg.TLS {
			scheme = "ssl"
		}
		return fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port), nil
	}

	raw := cfg.URL
	if !strings.Contains(raw, "://") {
		raw = "tcp://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid broker url %q: %w", cfg.URL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid broker url %q: missing host", cfg.URL)
	}

	switch u.Scheme {
	case "tcp", "mqtt", "ssl", "tls", "mqtts", "ws", "wss":
	default:
		return "", fmt.Errorf("invalid broker url %q: unsupported scheme %q", cfg.URL, u.Scheme)
	}

	return u.String(), nil
}

// buildClientOptions creates paho MQTT options from the sample config.
//
// This configures:
//   - Broker URL (tcp://, ssl://, ws:// ...)
//   - Client ID for identification
//   - Authentication credentials (if provided)
//   - Auto-reconnect (only when enabled; samples exit on connection loss)
//   - TLS configuration for secure schemes
//   - Clean session mode
func buildClientOptions(cfg config.MQTTConfig) (*pahomqtt.ClientOptions, error) {
	brokerURL, err := BrokerURL(cfg.Broker)
	if err != nil {
		return nil, err
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(cfg.Broker.ClientID)

	// Some brokers accept a username without a password.
	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
	}
	if cfg.Auth.Password != "" {
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)

	// Handlers run in their own goroutines so they can publish and wait.
	opts.SetOrderMatters(false)

	opts.SetAutoReconnect(cfg.Reconnect.Enabled)
	opts.SetConnectRetry(false)
	if cfg.Reconnect.Enabled {
		opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
		opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	}

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if u, parseErr := url.Parse(brokerURL); parseErr == nil && secureSchemes[u.Scheme] {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts, nil
}

// configureLWT sets up Last Will and Testament for offline detection.
//
// Topic: mqttsamples/status/{clientID}
// QoS: 1, Retained: true (new subscribers see last status)
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	willTopic := Topics{}.ClientStatus(clientID)
	willPayload := fmt.Sprintf(
		`{"status":"offline","client_id":"%s","reason":"unexpected_disconnect","timestamp":"%s"}`,
		clientID,
		time.Now().UTC().Format(time.RFC3339),
	)

	opts.SetWill(willTopic, willPayload, 1, true)
}

// buildOnlinePayload creates the JSON payload for online status messages.
func buildOnlinePayload(clientID string) string {
	return fmt.Sprintf(
		`{"status":"online","client_id":"%s","timestamp":"%s"}`,
		clientID,
		time.Now().UTC().Format(time.RFC3339),
	)
}

// buildOfflinePayload creates the JSON payload for graceful offline status.
func buildOfflinePayload(clientID string) string {
	return fmt.Sprintf(
		`{"status":"offline","client_id":"%s","reason":"graceful_shutdown","timestamp":"%s"}`,
		clientID,
		time.Now().UTC().Format(time.RFC3339),
	)
}
