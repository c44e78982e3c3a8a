// Package config loads the application settings from layered YAML files and
// CELERIX_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DataDir   string          `yaml:"data_dir"`
	Store     StoreConfig     `yaml:"store"`
	HTTP      HTTPConfig      `yaml:"http"`
	Templates TemplatesConfig `yaml:"templates"`
	Log       LogConfig       `yaml:"log"`
}

type StoreConfig struct {
	// Port the TCP daemon listens on.
	Port string `yaml:"port"`
	// Addr of a remote daemon. Empty means the embedded engine is used.
	Addr       string `yaml:"addr"`
	DisableTLS bool   `yaml:"disable_tls"`
}

type HTTPConfig struct {
	Port string `yaml:"port"`
}

type TemplatesConfig struct {
	// Root is a directory of *.html templates overriding the embedded set.
	Root    string `yaml:"root"`
	PerPage int    `yaml:"per_page"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Debug  bool   `yaml:"debug"`
}

func Defaults() Config {
	return Config{
		DataDir: "./data",
		Store: StoreConfig{
			Port: "7001",
		},
		HTTP: HTTPConfig{
			Port: "7002",
		},
		Templates: TemplatesConfig{
			PerPage: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load applies the files in order on top of Defaults, skipping the ones
// that do not exist, then applies the environment.
func Load(paths ...string) (Config, error) {
	cfg := Defaults()

	for _, path := range paths {
		b, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decode(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str("CELERIX_DATA_DIR", &c.DataDir)
	str("CELERIX_PORT", &c.Store.Port)
	str("CELERIX_STORE_ADDR", &c.Store.Addr)
	str("CELERIX_HTTP_PORT", &c.HTTP.Port)
	str("CELERIX_TEMPLATES", &c.Templates.Root)
	str("CELERIX_LOG_LEVEL", &c.Log.Level)
	str("CELERIX_LOG_FORMAT", &c.Log.Format)

	if err := boolean("CELERIX_DISABLE_TLS", &c.Store.DisableTLS); err != nil {
		return err
	}
	return boolean("CELERIX_DEBUG", &c.Log.Debug)
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	for name, port := range map[string]string{"store.port": c.Store.Port, "http.port": c.HTTP.Port} {
		n, err := strconv.Atoi(port)
		if err != nil || n < 0 || n > 65535 {
			return fmt.Errorf("config: %s: invalid port %q", name, port)
		}
	}
	if c.Templates.PerPage <= 0 {
		return fmt.Errorf("config: templates.per_page must be positive, got %d", c.Templates.PerPage)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("config: log.format must be json or text, got %q", c.Log.Format)
	}
	return nil
}
