package contracts

import "fmt"

// Version is the release of both the server and the chemvis client
const Version = "0.4.0"

// BuildTime is set during build using ldflags:
//
//	go build -ldflags "-X chemvis/pkg/contracts.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var BuildTime = "unknown"

// GetVersionString returns the version as logged at startup
func GetVersionString() string {
	return fmt.Sprintf("chemvis v%s", Version)
}

// UserAgent identifies the chemvis client to the server
func UserAgent() string {
	return "chemvis-client/" + Version
}
