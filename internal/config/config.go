package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultConfigPath = "/app/docindex/config.json"
	defaultWorkers    = 8
)

// Config matches the JSON file deployed next to the generated docs.
type Config struct {
	Site      string `json:"site"`
	DocsDir   string `json:"docs_dir"`
	Version   string `json:"version"`
	DocsSub   string `json:"docs_subdir"`
	PublicDir string `json:"public_dir"`
	IndexDir  string `json:"index_dir"`
	Workers   int    `json:"workers"`
	Watch     bool   `json:"watch"`
}

func DefaultPath() string {
	if path := os.Getenv("DOCINDEX_CONFIG_FILE"); path != "" {
		return path
	}
	return defaultConfigPath
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Site == "" {
		return errors.New("config site is required")
	}
	if c.DocsDir == "" {
		return errors.New("config docs_dir is required")
	}
	if c.PublicDir == "" {
		return errors.New("config public_dir is required")
	}
	if c.Workers < 0 {
		return errors.New("config workers must not be negative")
	}
	if strings.ContainsAny(c.Version, `/\`) {
		return errors.New("config version must be a directory name")
	}
	return nil
}

func (c *Config) IndexPath() string {
	if c.IndexDir != "" {
		return c.IndexDir
	}
	return filepath.Join(c.PublicDir, "search.db")
}

func (c *Config) SiteURL() string {
	return strings.TrimRight(c.Site, "/")
}

func (c *Config) WorkerCount() int {
	if c.Workers == 0 {
		return defaultWorkers
	}
	return c.Workers
}

// DocsSubdir is the directory inside a version holding the fragments.
func (c *Config) DocsSubdir() string {
	if c.DocsSub == "" {
		return "rustdoc"
	}
	return c.DocsSub
}
