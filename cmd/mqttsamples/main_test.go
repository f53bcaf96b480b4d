package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/mqtt-samples/internal/devbroker"
	"github.com/nerrad567/mqtt-samples/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-samples/internal/samples"
)

func startBroker(t *testing.T) *devbroker.Broker {
	t.Helper()

	b, err := devbroker.New(config.DevBrokerConfig{Address: "127.0.0.1:0", ReplyPrefix: "_reply"}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Start())
	t.Cleanup(func() { _ = b.Close() })

	return b
}

// execute runs the root command with args and returns its error.
func execute(ctx context.Context, t *testing.T, args ...string) error {
	t.Helper()
	t.Setenv(configEnv, "")

	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	return root.ExecuteContext(ctx)
}

func TestRootCmd_HasEverySample(t *testing.T) {
	root := newRootCmd()

	for _, s := range samples.All() {
		cmd, _, err := root.Find([]string{s.Name})
		require.NoError(t, err, s.Name)
		assert.Equal(t, s.Name, cmd.Name())
	}
}

func TestSampleCmd_ArgumentValidation(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"publisher without password", []string{"topic-publisher", "tcp://127.0.0.1:1", "user"}, false},
		{"publisher missing username", []string{"topic-publisher", "tcp://127.0.0.1:1"}, true},
		{"requestor missing password", []string{"basic-requestor", "tcp://127.0.0.1:1", "user"}, true},
		{"too many args", []string{"topic-subscriber", "a", "b", "c", "d"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newRootCmd()
			cmd, args, err := root.Find(tt.args)
			require.NoError(t, err)

			err = cmd.Args(cmd, args)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRun_InvalidConfigPath(t *testing.T) {
	err := execute(context.Background(), t,
		"--config", "/nonexistent/path/config.yaml",
		"topic-publisher", "tcp://127.0.0.1:1883", "user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}

func TestRun_InvalidEndpoint(t *testing.T) {
	err := execute(context.Background(), t, "topic-publisher", "gopher://127.0.0.1:1883", "user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported scheme")
}

func TestRun_InvalidQoSFlag(t *testing.T) {
	err := execute(context.Background(), t, "--qos", "3", "topic-publisher", "tcp://127.0.0.1:1883", "user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mqtt.qos")
}

func TestRun_ConnectionRefused(t *testing.T) {
	b := startBroker(t)
	addr := b.Addr()
	require.NoError(t, b.Close())

	err := execute(context.Background(), t, "qos1-producer", addr, "user", "secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connecting to MQTT")
}

func TestRun_QoS1Producer(t *testing.T) {
	b := startBroker(t)

	err := execute(context.Background(), t, "qos1-producer", b.URL(), "user", "secret")
	assert.NoError(t, err)
}

func TestRun_ConfirmedPublishBareHostPort(t *testing.T) {
	b := startBroker(t)

	err := execute(context.Background(), t, "confirmed-publish", b.Addr(), "user", "secret")
	assert.NoError(t, err)
}

func TestRun_InterruptIsCleanExit(t *testing.T) {
	b := startBroker(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := execute(ctx, t, "topic-subscriber", b.URL(), "user")
	assert.NoError(t, err)
}

func TestRun_RequestorTimesOutWithoutReplier(t *testing.T) {
	b := startBroker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := execute(ctx, t, "--timeout", "1", "basic-requestor", b.URL(), "user", "secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "basic-requestor")
}

func TestRun_ConfigFile(t *testing.T) {
	b := startBroker(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
topics:
  queue: "Q/from-config"
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	err := execute(context.Background(), t, "--config", path, "qos1-producer", b.URL(), "user", "secret")
	assert.NoError(t, err)
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv(configEnv, "")
	assert.Equal(t, defaultConfigPath, getConfigPath(""))

	t.Setenv(configEnv, "/etc/mqttsamples.yaml")
	assert.Equal(t, "/etc/mqttsamples.yaml", getConfigPath(""))
	assert.Equal(t, "flag.yaml", getConfigPath("flag.yaml"))
}

func TestApplyArgs(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)

	s, ok := samples.Lookup("basic-requestor")
	require.True(t, ok)

	opts := &options{qos: 1, timeout: 3, logLevel: "debug"}
	require.NoError(t, applyArgs(cfg, s, opts, []string{"ssl://broker:8883", "alice", "secret"}))

	assert.Equal(t, "ssl://broker:8883", cfg.MQTT.Broker.URL)
	assert.Equal(t, "alice", cfg.MQTT.Auth.Username)
	assert.Equal(t, "secret", cfg.MQTT.Auth.Password)
	assert.Regexp(t, `^BasicRequestor_[0-9a-f]{8}$`, cfg.MQTT.Broker.ClientID)
	assert.Equal(t, 1, cfg.MQTT.QoS)
	assert.Equal(t, 3, cfg.Exchange.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
