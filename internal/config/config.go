package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultCols is the initial terminal width when --size is not given
	DefaultCols = 120
	// DefaultRows is the initial terminal height when --size is not given
	DefaultRows = 40
	// DefaultListenAddr binds to an ephemeral port on loopback
	DefaultListenAddr = "127.0.0.1:0"
)

// Config holds the resolved invocation settings for a single ht run.
type Config struct {
	Cols      int
	Rows      int
	Subscribe []string
	Listen    string
	Command   []string
}

// FileConfig is the optional on-disk defaults file. Flags always win over it.
type FileConfig struct {
	Size      string `yaml:"size,omitempty"`
	Subscribe string `yaml:"subscribe,omitempty"`
	Listen    string `yaml:"listen,omitempty"`
}

// ConfigPath returns the defaults file location, honoring HT_CONFIG.
func ConfigPath() string {
	if p := os.Getenv("HT_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".ht.yml")
	}
	return filepath.Join(home, ".config", "ht", "config.yml")
}

// LoadFile reads the defaults file from the given path.
// A missing file is not an error; it yields empty defaults.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileConfig{}, nil
		}
		return nil, err
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &fc, nil
}

// ParseSize parses a COLSxROWS string like "120x40".
func ParseSize(s string) (cols, rows int, err error) {
	parts := strings.Split(s, "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid size %q, expected COLSxROWS", s)
	}
	cols, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	rows, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if cols < 1 || rows < 1 {
		return 0, 0, fmt.Errorf("invalid size %q: cols and rows must be at least 1", s)
	}
	return cols, rows, nil
}

// ParseSubscribe splits a comma-separated event type list, dropping empties.
func ParseSubscribe(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DefaultCommand returns the child to spawn when no command is given on the
// command line: a login-style shell from $SHELL, falling back to bash.
func DefaultCommand() []string {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "bash"
	}
	return []string{shell, "-l"}
}
