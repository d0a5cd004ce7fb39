// Package config handles loading and validating Taskdesk configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields and password cost floors
//   - Default value handling, including the insecure JWT secret fallback
//
// Security Considerations:
//   - Sensitive values (JWT secret, broker passwords, tokens) should be set via
//     environment variables
//   - When no JWT secret is configured a well-known default is used and
//     Warnings() reports it; main logs every warning at startup
//
// Configuration is loaded once at startup and treated as immutable afterwards.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, w := range cfg.Warnings() {
//	    logger.Warn("configuration warning", "detail", w)
//	}
package config
