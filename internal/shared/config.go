package shared

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.json
var exampleConf []byte

// Config represents the target configuration.
//
// Singer convention is a JSON file passed via --config, but TOML files are
// accepted too for hand-maintained setups.
type Config struct {
	// OAuth credentials; the refresh-token grant is the only supported flow.
	ClientID     string `json:"client_id" toml:"client_id"`
	ClientSecret string `json:"client_secret" toml:"client_secret"`
	RefreshToken string `json:"refresh_token" toml:"refresh_token"`
	RedirectURI  string `json:"redirect_uri" toml:"redirect_uri"`

	// Rotating token state, written back to the config file after refresh.
	AccessToken string `json:"access_token,omitempty" toml:"access_token"`
	InstanceURL string `json:"instance_url,omitempty" toml:"instance_url"`
	IssuedAt    int64  `json:"issued_at,omitempty" toml:"issued_at"` // epoch millis

	AuthEndpoint string `json:"auth_endpoint,omitempty" toml:"auth_endpoint"`
	APIVersion   string `json:"api_version,omitempty" toml:"api_version"`
	UserAgent    string `json:"user_agent,omitempty" toml:"user_agent"`

	// Upsert behavior
	OnlyUpsertEmptyFields bool     `json:"only_upsert_empty_fields,omitempty" toml:"only_upsert_empty_fields"`
	CreateCustomFields    bool     `json:"create_custom_fields,omitempty" toml:"create_custom_fields"`
	PermissionSetIDs      []string `json:"permission_set_ids,omitempty" toml:"permission_set_ids"`

	// Rate and quota controls
	QuotaPercent      float64 `json:"quota_percent_total,omitempty" toml:"quota_percent_total"`
	RequestsPerSecond float64 `json:"requests_per_second,omitempty" toml:"requests_per_second"`

	// Optional local sqlite cache for lookup resolutions and the run journal.
	CachePath string `json:"cache_path,omitempty" toml:"cache_path"`

	// path the config was loaded from, used for token persistence
	path string
}

const (
	DefaultAuthEndpoint = "https://login.salesforce.com/services/oauth2/token"
	DefaultAPIVersion   = "v55.0"
	DefaultQuotaPercent = 80.0
	DefaultRPS          = 8.0
)

// LoadConfig reads and parses a configuration file from the specified path.
// The format is selected by extension: .toml is parsed as TOML, anything else as JSON.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingConfig, err)
	}

	var config Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	} else if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	config.path = path
	config.applyDefaults()
	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := json.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.applyDefaults()
	return &config
}

func (c *Config) applyDefaults() {
	if c.AuthEndpoint == "" {
		c.AuthEndpoint = DefaultAuthEndpoint
	}
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.QuotaPercent <= 0 {
		c.QuotaPercent = DefaultQuotaPercent
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = DefaultRPS
	}
}

// Validate checks that credentials sufficient for the refresh-token grant are present.
func (c *Config) Validate() error {
	if c.AccessToken != "" && c.InstanceURL != "" {
		return nil
	}
	for name, v := range map[string]string{
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
		"refresh_token": c.RefreshToken,
	} {
		if v == "" {
			return fmt.Errorf("%w: %s", ErrMissingCredentials, name)
		}
	}
	return nil
}

// Path returns the file path the config was loaded from, or "" for defaults.
func (c *Config) Path() string { return c.path }

// Save writes the config back to the file it was loaded from.
//
// Called after a token refresh so that subsequent runs reuse the new access
// token instead of burning another refresh. TOML configs are not written back.
func (c *Config) Save() error {
	if c.path == "" {
		return fmt.Errorf("%w: config has no backing file", ErrInvalidConfig)
	}
	if strings.EqualFold(filepath.Ext(c.path), ".toml") {
		return nil
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// CreateConfigFile creates a config file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
