// Package config handles soulsift.toml configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the daemon and CLI configuration.
type Config struct {
	Server    Server    `toml:"server"`
	Listen    Listen    `toml:"listen"`
	Downloads Downloads `toml:"downloads"`
	Shares    Shares    `toml:"shares"`
	IPC       IPC       `toml:"ipc"`
	LogLevel  string    `toml:"log-level"`
}

// Server is the central server connection and account.
type Server struct {
	Address  string `toml:"address"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// Listen configures the peer listening socket.
type Listen struct {
	Port int `toml:"port"`
}

// Downloads configures where completed downloads land.
type Downloads struct {
	Dir string `toml:"dir"`
}

// Shares configures the locally shared directories.
type Shares struct {
	Roots  []string `toml:"roots"`
	DBPath string   `toml:"db-path"`
}

// IPC configures the CLI <-> daemon socket.
type IPC struct {
	SocketPath string `toml:"socket-path"`
}

// Default returns a configuration usable without a config file.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".soulsift")
	return &Config{
		Server:    Server{Address: "server.slsknet.org:2242"},
		Listen:    Listen{Port: 2234},
		Downloads: Downloads{Dir: filepath.Join(base, "downloads")},
		Shares:    Shares{DBPath: filepath.Join(base, "shares.db")},
		IPC:       IPC{SocketPath: filepath.Join(base, "daemon.sock")},
		LogLevel:  "info",
	}
}

// Load parses a soulsift.toml file, filling unset fields from Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to Default when it
// does not. A file that exists but fails to parse is still an error.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks the fields the daemon cannot run without.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server address is required")
	}
	if c.Server.Username == "" {
		return fmt.Errorf("server username is required")
	}
	if c.Listen.Port <= 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen port %d out of range", c.Listen.Port)
	}
	return nil
}
