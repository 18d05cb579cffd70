// Package config loads the workspace connection list for runsql.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lexcodex/runsql/dialect"
)

const configDirName = "runsql_cfg"

// ErrNoConnectionsConfigured reports an empty connection list.
var ErrNoConnectionsConfigured = errors.New("no connections configured")

// ErrUnknownConnection reports a lookup for a name not in the config.
var ErrUnknownConnection = errors.New("unknown connection")

// Connection describes one configured database client invocation.
type Connection struct {
	Name    string   `yaml:"name"`
	Dialect string   `yaml:"dialect"`
	Cmd     []string `yaml:"cmd"`
}

// Config matches runsql_cfg/runsql.yaml inside the workspace.
type Config struct {
	Version     string       `yaml:"version"`
	Connections []Connection `yaml:"connections"`
}

// ConfigDir returns the workspace-local configuration directory.
func ConfigDir(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, configDirName)
}

// DefaultConfigPath returns runsql_cfg/runsql.yaml within the workspace.
func DefaultConfigPath(workspace string) string {
	return filepath.Join(ConfigDir(workspace), "runsql.yaml")
}

// Load reads the config or returns an empty default when the file is missing.
// Entries without a command template (the legacy "Run" reset sentinel) are
// dropped; they only existed to trigger the picker in the original setup.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{Version: "1.0.0"}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	kept := cfg.Connections[:0]
	for _, conn := range cfg.Connections {
		if len(conn.Cmd) == 0 {
			continue
		}
		kept = append(kept, conn)
	}
	cfg.Connections = kept
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to disk.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config missing")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) validate() error {
	for i, conn := range c.Connections {
		if conn.Name == "" {
			return fmt.Errorf("connection %d: name required", i)
		}
		if _, err := dialect.Parse(conn.Dialect); err != nil {
			return fmt.Errorf("connection %s: %w", conn.Name, err)
		}
	}
	return nil
}

// Lookup finds a connection by name.
func (c *Config) Lookup(name string) (*Connection, error) {
	if c == nil || len(c.Connections) == 0 {
		return nil, ErrNoConnectionsConfigured
	}
	for i := range c.Connections {
		if c.Connections[i].Name == name {
			return &c.Connections[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownConnection, name)
}

// Names returns the connection names in config order.
func (c *Config) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.Connections))
	for _, conn := range c.Connections {
		names = append(names, conn.Name)
	}
	return names
}
