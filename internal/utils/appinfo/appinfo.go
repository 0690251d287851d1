// Package appinfo provides application information utilities
package appinfo

import (
	"os"
	"runtime/debug"
	"strings"
)

// Name of the application as reported in health checks and logs
const Name = "bridgeus"

// GetEnvironment returns the normalized GO_ENV, defaulting to development
func GetEnvironment() string {
	env := os.Getenv("GO_ENV")
	switch strings.ToLower(env) {
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	case "", "dev", "development":
		return "development"
	default:
		return env
	}
}

// GetVersion returns the application version
// It checks for the following in order:
// 1. BRIDGEUS_VERSION environment variable
// 2. Build info from debug.BuildInfo (module version, then vcs revision)
// 3. Defaults to "0.0.0-unknown"
func GetVersion() string {
	if version := os.Getenv("BRIDGEUS_VERSION"); version != "" {
		return version
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && setting.Value != "" {
				return setting.Value
			}
		}
	}

	return "0.0.0-unknown"
}
