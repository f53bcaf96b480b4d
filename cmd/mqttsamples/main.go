// MQTT Samples - messaging patterns over an MQTT broker
//
// This is the command-line shell for the samples. Each subcommand connects
// to a broker, runs one messaging pattern and exits:
//   - topic-publisher / topic-subscriber: direct (QoS 0) messaging
//   - qos1-producer / qos1-consumer / confirmed-publish: at-least-once delivery
//   - basic-requestor / basic-replier: correlated request/reply
//
// Usage:
//
//	mqttsamples <sample> <endpoint> <username> [password]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/mqtt-samples/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-samples/internal/infrastructure/logging"
	"github.com/nerrad567/mqtt-samples/internal/infrastructure/mqtt"
	"github.com/nerrad567/mqtt-samples/internal/samples"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path, used only when it exists.
const defaultConfigPath = "configs/config.yaml"

// configEnv names the environment variable holding the config file path.
const configEnv = "MQTTSAMPLES_CONFIG"

// exitFailure is the process exit code for bad arguments and fatal errors.
const exitFailure = -1

// options holds the global command-line flags.
type options struct {
	configPath string
	logLevel   string
	clientID   string
	qos        int // -1 keeps the configured value
	timeout    int // seconds; 0 keeps the configured value
}

func main() {
	// Cancel on Ctrl+C / SIGTERM so running samples can stop cleanly.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(exitFailure)
	}
}

// newRootCmd builds the command tree with one subcommand per sample.
func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "mqttsamples",
		Short: "Run MQTT messaging samples",
		Long: `mqttsamples runs one MQTT messaging pattern against a broker and exits.
The endpoint may be tcp://host:port, ssl://host:port, ws://host:port/path or host:port.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file (default $"+configEnv+" or "+defaultConfigPath+")")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&opts.clientID, "client-id", "", "MQTT client ID (default <Sample>_<random>)")
	root.PersistentFlags().IntVar(&opts.qos, "qos", 0, "QoS for the request/reply exchange")
	root.PersistentFlags().IntVar(&opts.timeout, "timeout", 0, "Reply timeout in seconds")

	for _, s := range samples.All() {
		root.AddCommand(newSampleCmd(s, opts))
	}

	return root
}

// newSampleCmd builds the subcommand for s.
func newSampleCmd(s samples.Sample, opts *options) *cobra.Command {
	use := s.Name + " <endpoint> <username> [password]"
	argCheck := cobra.RangeArgs(2, 3)
	if s.RequiresPassword {
		use = s.Name + " <endpoint> <username> <password>"
		argCheck = cobra.ExactArgs(3)
	}

	return &cobra.Command{
		Use:   use,
		Short: s.Short,
		Args:  argCheck,
		RunE: func(cmd *cobra.Command, args []string) error {
			o := *opts
			if !cmd.Flags().Changed("qos") {
				o.qos = -1
			}
			return run(cmd.Context(), s, &o, args)
		},
	}
}

// run connects to the broker and runs one sample.
//
// Parameters:
//   - ctx: cancelled on interrupt; a sample stopped this way is a clean exit
//   - s: the sample to run
//   - opts: global flags
//   - args: endpoint, username and optional password
//
// Returns:
//   - error: nil on success or interrupt, otherwise the failure
func run(ctx context.Context, s samples.Sample, opts *options, args []string) error {
	log := logging.Default()

	cfg, path, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if path != "" {
		log.Debug("configuration loaded", "path", path)
	}

	if err := applyArgs(cfg, s, opts, args); err != nil {
		return err
	}

	log = logging.New(cfg.Logging, version).With("sample", s.Name)

	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log)
	if cfg.MQTT.Reconnect.Enabled {
		client.SetOnConnect(func() {
			log.Info("MQTT connection established", "client_id", client.ClientID())
		})
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
		log.Info("disconnected")
	}()
	log.Info("MQTT connected", "broker", cfg.MQTT.Broker.URL, "client_id", client.ClientID())

	runner := samples.NewRunner(client, cfg, log)
	if err := s.Run(ctx, runner); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("interrupted")
			return nil
		}
		return fmt.Errorf("%s: %w", s.Name, err)
	}

	return nil
}

// loadConfig loads the config file named by flag or environment, the
// default file if present, or the built-in defaults.
func loadConfig(flagPath string) (*config.Config, string, error) {
	path := getConfigPath(flagPath)
	if path == defaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			cfg, err := config.Default()
			return cfg, "", err
		}
	}

	cfg, err := config.Load(path)
	return cfg, path, err
}

// getConfigPath returns the configuration file path.
// The --config flag wins over MQTTSAMPLES_CONFIG, which wins over the default.
func getConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

// applyArgs applies positional arguments and flags over cfg.
func applyArgs(cfg *config.Config, s samples.Sample, opts *options, args []string) error {
	cfg.MQTT.Broker.URL = args[0]
	cfg.MQTT.Auth.Username = args[1]
	cfg.MQTT.Auth.Password = ""
	if len(args) > 2 {
		cfg.MQTT.Auth.Password = args[2]
	}
	if _, err := mqtt.BrokerURL(cfg.MQTT.Broker); err != nil {
		return err
	}

	switch {
	case opts.clientID != "":
		cfg.MQTT.Broker.ClientID = opts.clientID
	case cfg.MQTT.Broker.ClientID == "":
		cfg.MQTT.Broker.ClientID = mqtt.NewClientID(s.ClientPrefix)
	}

	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.qos >= 0 {
		cfg.MQTT.QoS = opts.qos
	}
	if opts.timeout > 0 {
		cfg.Exchange.Timeout = opts.timeout
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
