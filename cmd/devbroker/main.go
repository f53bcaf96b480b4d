// MQTT Samples development broker
//
// devbroker runs an embedded MQTT broker for trying the samples locally.
// It accepts every client and answers subscriptions to the reply-to
// control topic with the subscriber's own reply address, so the
// request/reply samples work without an external broker.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/mqtt-samples/internal/devbroker"
	"github.com/nerrad567/mqtt-samples/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-samples/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
var (
	version = "dev"
	commit  = "unknown"
)

// Default configuration file path, used only when it exists.
const defaultConfigPath = "configs/config.yaml"

// statusInterval is how often broker counters are logged.
const statusInterval = 30 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// run starts the broker and blocks until ctx is cancelled.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting devbroker", "commit", commit)

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)

	broker, err := devbroker.New(cfg.DevBroker, log)
	if err != nil {
		return fmt.Errorf("creating broker: %w", err)
	}
	if err := broker.Start(); err != nil {
		return fmt.Errorf("starting broker: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")
		return broker.Close()
	})

	g.Go(func() error {
		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				log.Info("broker status",
					"address", broker.Addr(),
					"reply_addresses_assigned", broker.AssignedCount(),
				)
			case <-broker.Done():
				return nil
			}
		}
	})

	return g.Wait()
}

// loadConfig loads the file named by MQTTSAMPLES_CONFIG, the default file
// if present, or the built-in defaults.
func loadConfig() (*config.Config, error) {
	path := os.Getenv("MQTTSAMPLES_CONFIG")
	if path == "" {
		path = defaultConfigPath
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return config.Default()
		}
	}
	return config.Load(path)
}
