// Package config loads the server configuration from a YAML file and the
// environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	BackendMongo  = "mongo"
	BackendSqlite = "sqlite"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Error is a validation failure of a single field.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config error in '%s': %s", e.Field, e.Message)
}

func (e *Error) Unwrap() error {
	return ErrInvalidConfig
}

func newError(field, message string) *Error {
	return &Error{Field: field, Message: message}
}

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Psd2    Psd2Config    `yaml:"psd2"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type StorageConfig struct {
	Backend string       `yaml:"backend"`
	Mongo   MongoConfig  `yaml:"mongo"`
	Sqlite  SqliteConfig `yaml:"sqlite"`
}

type MongoConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

type SqliteConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Psd2Config struct {
	// RequireEUQualified additionally requires the QcCompliance statement
	// before a certificate counts as a PSD2 certificate.
	RequireEUQualified bool `yaml:"require_eu_qualified"`
}

func Default() *Config {
	return &Config{
		Server:  ServerConfig{Addr: ":8080"},
		Storage: StorageConfig{Backend: BackendMongo},
		Log:     LogConfig{Level: "info"},
	}
}

// Parse reads YAML on top of the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	conf := Default()
	if len(data) == 0 {
		return conf, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(conf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return conf, nil
}

// Load reads the file at path, applies environment overrides and validates
// the result. An empty path yields the defaults plus the environment.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	conf, err := Parse(data)
	if err != nil {
		return nil, err
	}
	conf.ApplyEnv(os.LookupEnv)
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// ApplyEnv overrides settings with MONGO_URL, MONGO_DB, SQLITE_PATH and
// LOG_LEVEL when they are set.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("MONGO_URL"); ok && v != "" {
		c.Storage.Mongo.URL = v
	}
	if v, ok := lookup("MONGO_DB"); ok && v != "" {
		c.Storage.Mongo.Database = v
	}
	if v, ok := lookup("SQLITE_PATH"); ok && v != "" {
		c.Storage.Sqlite.Path = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return newError("server.addr", "required field is missing")
	}
	switch c.Storage.Backend {
	case BackendMongo:
		if c.Storage.Mongo.URL == "" {
			return newError("storage.mongo.url", "required field is missing")
		}
		if c.Storage.Mongo.Database == "" {
			return newError("storage.mongo.database", "required field is missing")
		}
	case BackendSqlite:
		if c.Storage.Sqlite.Path == "" {
			return newError("storage.sqlite.path", "required field is missing")
		}
	default:
		return newError("storage.backend", fmt.Sprintf("unknown backend %q", c.Storage.Backend))
	}
	if _, err := c.Log.LogrusLevel(); err != nil {
		return newError("log.level", err.Error())
	}
	return nil
}

func (l LogConfig) LogrusLevel() (logrus.Level, error) {
	if l.Level == "" {
		return logrus.InfoLevel, nil
	}
	return logrus.ParseLevel(l.Level)
}
