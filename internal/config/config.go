// Package config provides configuration loading and validation for shardroute.
// Supports YAML files with environment variable overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable Load reads the config path from.
const EnvConfigPath = "SHARDROUTE_CONFIG"

// Config holds all configuration for the routingctl tool and its HTTP API.
type Config struct {
	Codec         CodecConfig         `yaml:"codec"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type CodecConfig struct {
	// Compression is one of none, gzip, snappy, lz4, zstd.
	Compression     string `yaml:"compression" env:"SHARDROUTE_COMPRESSION"`
	MaxPayloadBytes int    `yaml:"maxPayloadBytes" env:"SHARDROUTE_MAX_PAYLOAD_BYTES"`
}

type ServerConfig struct {
	ListenAddr   string `yaml:"listenAddr" env:"SHARDROUTE_LISTEN_ADDR"`
	MaxBodyBytes int64  `yaml:"maxBodyBytes" env:"SHARDROUTE_MAX_BODY_BYTES"`
}

type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metricsAddr" env:"SHARDROUTE_METRICS_ADDR"`
	LogLevel    string `yaml:"logLevel" env:"SHARDROUTE_LOG_LEVEL"`
	LogFormat   string `yaml:"logFormat" env:"SHARDROUTE_LOG_FORMAT"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Codec: CodecConfig{
			Compression:     "none",
			MaxPayloadBytes: 64 * 1024 * 1024, // 64MB
		},
		Server: ServerConfig{
			ListenAddr:   ":8470",
			MaxBodyBytes: 64 * 1024 * 1024,
		},
		Observability: ObservabilityConfig{
			MetricsAddr: ":9090",
			LogLevel:    "info",
			LogFormat:   "json",
		},
	}
}

// Load reads the file named by SHARDROUTE_CONFIG, or starts from defaults when
// it is unset, then applies environment overrides.
func Load() (*Config, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return LoadFromPath(path)
	}
	cfg := Default()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// LoadFromPath reads a YAML config file and applies environment overrides.
func LoadFromPath(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse reads YAML from r over the defaults and applies environment overrides.
// Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch c.Codec.Compression {
	case "none", "gzip", "snappy", "lz4", "zstd":
	default:
		return fmt.Errorf("codec.compression: unsupported value %q", c.Codec.Compression)
	}
	if c.Codec.MaxPayloadBytes < 0 {
		return fmt.Errorf("codec.maxPayloadBytes: must not be negative, got %d", c.Codec.MaxPayloadBytes)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.maxBodyBytes: must be positive, got %d", c.Server.MaxBodyBytes)
	}
	switch c.Observability.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("observability.logLevel: unsupported value %q", c.Observability.LogLevel)
	}
	switch c.Observability.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("observability.logFormat: unsupported value %q", c.Observability.LogFormat)
	}
	return nil
}

// applyEnv overrides fields carrying an env tag with the variable's value when set.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	return applyEnvStruct(reflect.ValueOf(c).Elem(), lookup)
}

func applyEnvStruct(v reflect.Value, lookup func(string) (string, bool)) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() == reflect.Struct {
			if err := applyEnvStruct(field, lookup); err != nil {
				return err
			}
			continue
		}

		name := t.Field(i).Tag.Get("env")
		if name == "" {
			continue
		}
		raw, ok := lookup(name)
		if !ok {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(raw)
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			field.SetInt(n)
		case reflect.Bool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			field.SetBool(b)
		default:
			return fmt.Errorf("%s: unsupported field kind %s", name, field.Kind())
		}
	}
	return nil
}
