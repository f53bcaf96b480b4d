// Package config handles loading and validating the MQTT samples configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (MQTTSAMPLES_*)
//   - Validation of required fields
//   - Default value handling
//
// Every sample can run without a config file: Default returns the built-in
// values with environment overrides applied, and the command line overrides
// broker endpoint and credentials on top of that.
//
// Security Considerations:
//   - Broker passwords should be set via MQTTSAMPLES_MQTT_PASSWORD or the
//     command line rather than committed config files
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Topics.Request)
package config
