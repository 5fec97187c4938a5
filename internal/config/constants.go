package config

import "time"

// Application constants
const (
	// Application Info
	AppName   = "chemvis"
	EnvPrefix = "CHEMVIS"

	// ConfigFileEnv names the variable that points at an explicit YAML file
	ConfigFileEnv = "CHEMVIS_CONFIG"

	// Storage drivers
	StorageDriverMemory   = "memory"
	StorageDriverFile     = "file"
	StorageDriverPostgres = "postgres"

	// History
	DefaultHistoryCapacity = 5
	DefaultStorageFile     = "data/datasets.json"

	// Uploads
	DefaultMaxUploadBytes = 10 << 20 // 10 MiB

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// Network Timeouts
	DefaultHTTPTimeout  = 30 * time.Second
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second
)
