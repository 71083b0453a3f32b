// Package config loads the migrator's configuration from the environment
// and layers runtime overrides on top, so connections can be repointed from
// the web UI without a restart.
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/face-migrator/internal/constants"
	"github.com/kozaktomas/face-migrator/internal/facematch"
)

// SourceDBConfig locates the Windows Photos Legacy SQLite database.
type SourceDBConfig struct {
	Path string
}

// TargetAPIConfig holds the Immich HTTP API connection.
type TargetAPIConfig struct {
	URL    string
	APIKey string
}

// TargetDBConfig holds the Immich Postgres connection.
type TargetDBConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
}

// ServerConfig holds the web server settings.
type ServerConfig struct {
	Port int
}

// MatchingConfig holds the tunable matching parameters.
type MatchingConfig struct {
	MinIoU             float64
	MaxCenterDist      float64
	MinMatches         int
	MinPhotosInCluster int
	NameMatchMode      facematch.NameMatchMode
}

// PathMappings rewrites source folder prefixes to target library prefixes.
type PathMappings map[string]string

// Settings is one consistent view of the full configuration.
type Settings struct {
	SourceDB     SourceDBConfig
	TargetAPI    TargetAPIConfig
	TargetDB     TargetDBConfig
	Server       ServerConfig
	Matching     MatchingConfig
	PathMappings PathMappings
}

// Config is the live configuration: environment values plus any runtime
// overrides applied through the web API. All access goes through the mutex.
type Config struct {
	mu         sync.RWMutex
	settings   Settings
	overridden map[string]bool
}

// Load reads the configuration from the environment. Callers load .env
// beforehand (the CLI does this via godotenv).
func Load() (*Config, error) {
	mappings, err := loadPathMappings()
	if err != nil {
		return nil, err
	}

	nameMode := facematch.NameMatchMode(envString("NAME_MATCH_MODE", string(facematch.NameMatchFold)))
	if nameMode != facematch.NameMatchFold && nameMode != facematch.NameMatchExact {
		return nil, fmt.Errorf("invalid NAME_MATCH_MODE %q, want fold or exact", nameMode)
	}

	return &Config{
		settings: Settings{
			SourceDB: SourceDBConfig{
				Path: os.Getenv("SOURCE_DB_PATH"),
			},
			TargetAPI: TargetAPIConfig{
				URL:    os.Getenv("TARGET_API_URL"),
				APIKey: os.Getenv("TARGET_API_KEY"),
			},
			TargetDB: TargetDBConfig{
				Host:     envString("TARGET_DB_HOST", "localhost"),
				Port:     envInt("TARGET_DB_PORT", 5432),
				Name:     envString("TARGET_DB_NAME", "immich"),
				User:     envString("TARGET_DB_USER", "postgres"),
				Password: os.Getenv("TARGET_DB_PASSWORD"),
			},
			Server: ServerConfig{
				Port: envInt("PORT", 8080),
			},
			Matching: MatchingConfig{
				MinIoU:             envFloat("MIN_IOU", constants.DefaultMinIoU),
				MaxCenterDist:      envFloat("MAX_CENTER_DIST", constants.DefaultMaxCenterDist),
				MinMatches:         envInt("MIN_MATCHES", constants.DefaultMinMatches),
				MinPhotosInCluster: envInt("MIN_PHOTOS_IN_CLUSTER", constants.DefaultMinPhotosInCluster),
				NameMatchMode:      nameMode,
			},
			PathMappings: mappings,
		},
		overridden: make(map[string]bool),
	}, nil
}

// loadPathMappings parses PATH_MAPPINGS as inline YAML, or reads the file
// named by PATH_MAPPINGS_FILE. Inline wins when both are set.
func loadPathMappings() (PathMappings, error) {
	raw := []byte(os.Getenv("PATH_MAPPINGS"))
	if len(raw) == 0 {
		path := os.Getenv("PATH_MAPPINGS_FILE")
		if path == "" {
			return PathMappings{}, nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read path mappings file: %w", err)
		}
		raw = data
	}

	mappings := PathMappings{}
	if err := yaml.Unmarshal(raw, &mappings); err != nil {
		return nil, fmt.Errorf("parse path mappings: %w", err)
	}
	return mappings, nil
}

// Snapshot returns a consistent copy of the current settings.
func (c *Config) Snapshot() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	settings := c.settings
	settings.PathMappings = make(PathMappings, len(c.settings.PathMappings))
	for k, v := range c.settings.PathMappings {
		settings.PathMappings[k] = v
	}
	return settings
}

// SetServerPort overrides the listen port before the server starts.
func (c *Config) SetServerPort(port int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.Server.Port = port
}

// SetSourceDB points the source reader at a different database file.
func (c *Config) SetSourceDB(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.SourceDB.Path = path
	c.overridden["source_db_path"] = true
}

// SetTargetAPI updates the target API connection. Empty fields keep their
// current value, so the UI can change the URL without resending the key.
func (c *Config) SetTargetAPI(url, apiKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if url != "" {
		c.settings.TargetAPI.URL = url
		c.overridden["target_api_url"] = true
	}
	if apiKey != "" {
		c.settings.TargetAPI.APIKey = apiKey
		c.overridden["target_api_key"] = true
	}
}

// TargetDBUpdate carries a partial target database override. Nil fields keep
// their current value.
type TargetDBUpdate struct {
	Host     *string `json:"host"`
	Port     *int    `json:"port"`
	Name     *string `json:"name"`
	User     *string `json:"user"`
	Password *string `json:"password"`
}

// SetTargetDB applies a partial target database override.
func (c *Config) SetTargetDB(update TargetDBUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if update.Host != nil {
		c.settings.TargetDB.Host = *update.Host
		c.overridden["target_db_host"] = true
	}
	if update.Port != nil {
		c.settings.TargetDB.Port = *update.Port
		c.overridden["target_db_port"] = true
	}
	if update.Name != nil {
		c.settings.TargetDB.Name = *update.Name
		c.overridden["target_db_name"] = true
	}
	if update.User != nil {
		c.settings.TargetDB.User = *update.User
		c.overridden["target_db_user"] = true
	}
	if update.Password != nil {
		c.settings.TargetDB.Password = *update.Password
		c.overridden["target_db_password"] = true
	}
}

// Public is the redacted configuration served over HTTP. Secrets are never
// echoed; only their presence is reported.
type Public struct {
	SourceDBPath       string          `json:"source_db_path"`
	TargetAPIURL       string          `json:"target_api_url"`
	TargetAPIKeySet    bool            `json:"target_api_key_set"`
	TargetDBHost       string          `json:"target_db_host"`
	TargetDBPort       int             `json:"target_db_port"`
	TargetDBName       string          `json:"target_db_name"`
	TargetDBUser       string          `json:"target_db_user"`
	TargetDBPassSet    bool            `json:"target_db_password_set"`
	MinIoU             float64         `json:"min_iou"`
	MaxCenterDist      float64         `json:"max_center_dist"`
	MinMatches         int             `json:"min_matches"`
	MinPhotosInCluster int             `json:"min_photos_in_cluster"`
	NameMatchMode      string          `json:"name_match_mode"`
	PathMappings       PathMappings    `json:"path_mappings"`
	OverriddenFields   map[string]bool `json:"overridden_fields"`
}

// PublicView returns the redacted configuration.
func (c *Config) PublicView() Public {
	c.mu.RLock()
	defer c.mu.RUnlock()

	overridden := make(map[string]bool, len(c.overridden))
	for k, v := range c.overridden {
		overridden[k] = v
	}
	return Public{
		SourceDBPath:       c.settings.SourceDB.Path,
		TargetAPIURL:       c.settings.TargetAPI.URL,
		TargetAPIKeySet:    c.settings.TargetAPI.APIKey != "",
		TargetDBHost:       c.settings.TargetDB.Host,
		TargetDBPort:       c.settings.TargetDB.Port,
		TargetDBName:       c.settings.TargetDB.Name,
		TargetDBUser:       c.settings.TargetDB.User,
		TargetDBPassSet:    c.settings.TargetDB.Password != "",
		MinIoU:             c.settings.Matching.MinIoU,
		MaxCenterDist:      c.settings.Matching.MaxCenterDist,
		MinMatches:         c.settings.Matching.MinMatches,
		MinPhotosInCluster: c.settings.Matching.MinPhotosInCluster,
		NameMatchMode:      string(c.settings.Matching.NameMatchMode),
		PathMappings:       c.settings.PathMappings,
		OverriddenFields:   overridden,
	}
}

// envString reads an environment variable with a default.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float in (0, 1].
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}
