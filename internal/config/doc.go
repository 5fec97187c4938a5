// Package config provides configuration management for the chemvis server.
// It layers built-in defaults, an optional YAML file and CHEMVIS_* environment
// variables, then validates the result.
//
// # Configuration Sources
//
// Sources are applied in this order, later ones win:
//
//	1. Default() values
//	2. YAML file (CHEMVIS_CONFIG, config.yaml or configs/config.yaml)
//	3. Environment variables
//
// # Environment Variables
//
// Nested fields are addressed with underscores:
//
//	CHEMVIS_SERVER_PORT=8080
//	CHEMVIS_STORAGE_DRIVER=postgres
//	CHEMVIS_STORAGE_DSN=postgres://chemvis@localhost/chemvis
//	CHEMVIS_STORAGE_CAPACITY=5
//	CHEMVIS_AUTH_USER_NAME=operator
//	CHEMVIS_LOGGING_LEVEL=debug
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
