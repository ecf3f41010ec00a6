// Package config loads the toolkit's configuration file.
//
// Every collaborator gets an explicit section (object store, database, audit
// log, metrics, logging) instead of module-level constants; subcommand flags
// override what the file provides. YAML is the default format and files
// ending in .json are decoded as JSON. ${VAR} references in secrets and DSNs
// are expanded from the environment at load time.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable consulted when no -config
// flag is given.
const EnvConfigPath = "EDUETL_CONFIG"

type Config struct {
	ObjectStore ObjectStore `yaml:"objectstore" json:"objectstore"`
	Database    Database    `yaml:"database" json:"database"`
	Audit       Audit       `yaml:"audit" json:"audit"`
	Metrics     Metrics     `yaml:"metrics" json:"metrics"`
	Logging     Logging     `yaml:"logging" json:"logging"`

	// Reader holds tabular reader options (see tabular.ReadCSV).
	Reader Options `yaml:"reader,omitempty" json:"reader,omitempty"`
}

// ObjectStore configures the S3-compatible asset lister.
type ObjectStore struct {
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	Region          string `yaml:"region" json:"region"`
	UseSSL          bool   `yaml:"use_ssl" json:"use_ssl"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
	Bucket          string `yaml:"bucket" json:"bucket"`
	Prefix          string `yaml:"prefix" json:"prefix"`
	Delimiter       string `yaml:"delimiter" json:"delimiter"`
	PublicBaseURL   string `yaml:"public_base_url" json:"public_base_url"`
}

// Database configures the course hierarchy source.
type Database struct {
	// Kind: mysql | postgres | mssql | sqlite
	Kind  string `yaml:"kind" json:"kind"`
	DSN   string `yaml:"dsn" json:"dsn"`
	Table string `yaml:"table" json:"table"`
}

type Audit struct {
	Path string `yaml:"path" json:"path"`
}

type Metrics struct {
	// Backend: none | datadog
	Backend string   `yaml:"backend" json:"backend"`
	Job     string   `yaml:"job" json:"job"`
	Tags    []string `yaml:"tags" json:"tags"`
}

type Logging struct {
	Level string `yaml:"level" json:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ObjectStore: ObjectStore{
			Endpoint:  "https://s3.ap-south-1.amazonaws.com",
			Region:    "ap-south-1",
			UseSSL:    true,
			Delimiter: "/",
		},
		Database: Database{
			Kind:  "mysql",
			Table: "course",
		},
		Audit:   Audit{Path: "error_log.jsonl"},
		Metrics: Metrics{Backend: "none", Job: "eduetl"},
		Logging: Logging{Level: "info"},
	}
}

// Load reads path over Default(). An empty path returns Default() with the
// environment expanded.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		cfg.expandEnv()
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := Decode(bytes.NewReader(raw), strings.EqualFold(filepath.Ext(path), ".json"), &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.expandEnv()
	return cfg, cfg.Validate()
}

// Decode decodes r into cfg, keeping fields r does not mention.
func Decode(r io.Reader, asJSON bool, cfg *Config) error {
	if asJSON {
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) expandEnv() {
	c.ObjectStore.AccessKeyID = os.ExpandEnv(c.ObjectStore.AccessKeyID)
	c.ObjectStore.SecretAccessKey = os.ExpandEnv(c.ObjectStore.SecretAccessKey)
	c.ObjectStore.Endpoint = os.ExpandEnv(c.ObjectStore.Endpoint)
	c.Database.DSN = os.ExpandEnv(c.Database.DSN)
	c.Audit.Path = os.ExpandEnv(c.Audit.Path)
}

// Validate reports settings that can never work. Missing values that only
// some subcommands need are checked by those subcommands.
func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Database.Kind) {
	case "", "mysql", "postgres", "postgresql", "mssql", "sqlserver", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.kind: unsupported %q", c.Database.Kind))
	}
	switch strings.ToLower(c.Metrics.Backend) {
	case "", "none", "datadog":
	default:
		errs = append(errs, fmt.Errorf("metrics.backend: unsupported %q", c.Metrics.Backend))
	}
	if c.ObjectStore.Delimiter != "" && len(c.ObjectStore.Delimiter) != 1 {
		errs = append(errs, fmt.Errorf("objectstore.delimiter: must be a single character, got %q", c.ObjectStore.Delimiter))
	}
	return errors.Join(errs...)
}
