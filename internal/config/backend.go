package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// BackendConfig holds the project credentials mobile clients need to reach
// the backend. They are served to clients and checked at startup.
type BackendConfig struct {
	APIKey            string `yaml:"apiKey" json:"apiKey"`
	AuthDomain        string `yaml:"authDomain" json:"authDomain"`
	ProjectID         string `yaml:"projectId" json:"projectId"`
	StorageBucket     string `yaml:"storageBucket" json:"storageBucket"`
	MessagingSenderID string `yaml:"messagingSenderId" json:"messagingSenderId"`
	AppID             string `yaml:"appId" json:"appId"`
}

// ErrMissingBackendCredentials is returned when a required credential is
// absent from both the environment and the bundled app config.
var ErrMissingBackendCredentials = errors.New("missing backend credentials")

// bundledAppConfig accepts both a top-level "backend" section and the
// "expo.extra.backend" layout of mobile app manifests. JSON files parse too.
type bundledAppConfig struct {
	Backend BackendConfig `yaml:"backend"`
	Expo    struct {
		Extra struct {
			Backend BackendConfig `yaml:"backend"`
		} `yaml:"extra"`
	} `yaml:"expo"`
}

// LoadBackendConfig reads BRIDGEUS_BACKEND_* variables and fills gaps from
// the bundled app config at path. A missing file is fine; missing
// credentials are not.
func LoadBackendConfig(path string) (*BackendConfig, error) {
	cfg := &BackendConfig{
		APIKey:            getEnv("BRIDGEUS_BACKEND_API_KEY", ""),
		AuthDomain:        getEnv("BRIDGEUS_BACKEND_AUTH_DOMAIN", ""),
		ProjectID:         getEnv("BRIDGEUS_BACKEND_PROJECT_ID", ""),
		StorageBucket:     getEnv("BRIDGEUS_BACKEND_STORAGE_BUCKET", ""),
		MessagingSenderID: getEnv("BRIDGEUS_BACKEND_MESSAGING_SENDER_ID", ""),
		AppID:             getEnv("BRIDGEUS_BACKEND_APP_ID", ""),
	}

	if len(cfg.Missing()) > 0 && path != "" {
		bundled, err := readBundledConfig(path)
		if err != nil {
			return nil, err
		}
		if bundled != nil {
			cfg.fillFrom(*bundled)
		}
	}

	if missing := cfg.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingBackendCredentials, strings.Join(missing, ", "))
	}
	return cfg, nil
}

func readBundledConfig(path string) (*BackendConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read app config %s: %w", path, err)
	}

	var parsed bundledAppConfig
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse app config %s: %w", path, err)
	}

	out := parsed.Backend
	out.fillFrom(parsed.Expo.Extra.Backend)
	return &out, nil
}

func (c *BackendConfig) fillFrom(other BackendConfig) {
	if c.APIKey == "" {
		c.APIKey = other.APIKey
	}
	if c.AuthDomain == "" {
		c.AuthDomain = other.AuthDomain
	}
	if c.ProjectID == "" {
		c.ProjectID = other.ProjectID
	}
	if c.StorageBucket == "" {
		c.StorageBucket = other.StorageBucket
	}
	if c.MessagingSenderID == "" {
		c.MessagingSenderID = other.MessagingSenderID
	}
	if c.AppID == "" {
		c.AppID = other.AppID
	}
}

// Missing lists the names of absent credentials.
func (c *BackendConfig) Missing() []string {
	var missing []string
	for _, field := range []struct {
		name  string
		value string
	}{
		{"apiKey", c.APIKey},
		{"authDomain", c.AuthDomain},
		{"projectId", c.ProjectID},
		{"storageBucket", c.StorageBucket},
		{"messagingSenderId", c.MessagingSenderID},
		{"appId", c.AppID},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	return missing
}
