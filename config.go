package famcal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const configFile = "famcal.yaml"

// Config is the top-level application configuration.
type Config struct {
	// CredentialsFile is the path to the service-account JSON key used
	// to access every family calendar.
	CredentialsFile string `yaml:"credentials_file"`

	// Timezone is the IANA timezone the board is displayed in
	// (e.g. "Europe/Berlin"). Defaults to the process-local zone.
	Timezone string `yaml:"timezone"`

	// Calendars lists the family members' calendars with the caller's
	// per-calendar permission grants.
	Calendars []CalendarSource `yaml:"calendars"`

	// TaskList is the remote id of the shared task list.
	TaskList string `yaml:"task_list"`
}

// getConfigDir returns ~/.config/famcal (honoring XDG_CONFIG_HOME).
func getConfigDir() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "famcal"), nil
}

// LoadConfig reads the config from path, or from the default config dir
// when path is empty.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		dir, err := getConfigDir()
		if err != nil {
			return nil, fmt.Errorf("get config dir: %w", err)
		}
		path = filepath.Join(dir, configFile)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config not found at %s", path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the config for the mistakes that would otherwise only
// surface as confusing remote failures.
func (c *Config) Validate() error {
	if c.CredentialsFile == "" {
		return fmt.Errorf("config missing credentials_file")
	}
	if len(c.Calendars) == 0 {
		return fmt.Errorf("config declares no calendars")
	}
	seen := make(map[string]bool, len(c.Calendars))
	for i, src := range c.Calendars {
		if src.ID == "" {
			return fmt.Errorf("calendar %d missing id", i)
		}
		if seen[src.ID] {
			return fmt.Errorf("calendar %s declared twice", src.ID)
		}
		seen[src.ID] = true
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("bad timezone %q: %w", c.Timezone, err)
		}
	}
	return nil
}

// Location resolves the configured display timezone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
