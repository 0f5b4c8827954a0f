// Package config handles loading and validating the NHC2 bus configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with NHC2_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The controller password should be set via NHC2_CONTROLLER_PASSWORD
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/nhc2.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Controller.Address())
package config
