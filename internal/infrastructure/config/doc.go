// Package config handles loading and validating Gray Logic Persist configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (GRAYPERSIST_*)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Database DSNs and tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - The JWT secret is mandatory whenever the admin API is enabled
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Persistence.Retry.MaxAttempts)
package config
