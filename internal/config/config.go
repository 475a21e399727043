// Package config provides functionality for managing configuration options
// for the application using command-line flags, a YAML config file and
// environment variables.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Options holds the configuration values for the application.
type Options struct {
	// Addr defines the server's listening address (ip:port).
	Addr string `yaml:"addr"`
	// PublicURL is the externally visible base URL, used for OAuth redirects.
	PublicURL string `yaml:"public_url"`

	// DataServiceURL is the data service endpoint (PostgreSQL URL or DSN).
	DataServiceURL string `yaml:"data_service_url"`
	// DataServiceKey is the access key presented to the data service.
	DataServiceKey string `yaml:"data_service_key"`

	// RedisAddr is the address of the session store.
	RedisAddr string `yaml:"redis_addr"`
	// RedisPassword is optional.
	RedisPassword string `yaml:"redis_password"`
	// RedisDB selects the Redis logical database.
	RedisDB int `yaml:"redis_db"`

	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret"`

	// SessionSecret signs session tokens.
	SessionSecret string `yaml:"session_secret"`
	// SessionTTL bounds the lifetime of a login.
	SessionTTL time.Duration `yaml:"session_ttl"`
	// WorkspaceIdleTTL evicts in-memory workspace state nobody touched for this long.
	WorkspaceIdleTTL time.Duration `yaml:"workspace_idle_ttl"`

	LogLevel string `yaml:"log_level"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`

	// Config is the path to the Config file.
	Config string `yaml:"-"`
}

// DataServiceConfigured reports whether both data service connection
// parameters are present.
func (o *Options) DataServiceConfigured() bool {
	return o.DataServiceURL != "" && o.DataServiceKey != ""
}

// IdentityConfigured reports whether sign-in can be offered.
func (o *Options) IdentityConfigured() bool {
	return o.GoogleClientID != "" && o.GoogleClientSecret != "" && o.SessionSecret != ""
}

// RedirectURL is the OAuth callback registered with the identity provider.
func (o *Options) RedirectURL() string {
	return strings.TrimRight(o.PublicURL, "/") + "/auth/callback"
}

// SecureCookies reports whether cookies must carry the Secure attribute.
func (o *Options) SecureCookies() bool {
	return strings.HasPrefix(o.PublicURL, "https://") || (o.TLSCert != "" && o.TLSKey != "")
}

// Parse loads a .env file if present, then parses the command-line flags,
// the config file and environment variables, in that order of precedence
// (later wins). Invalid configuration terminates the process.
func Parse() *Options {
	// A missing .env is the normal case outside of local development.
	_ = godotenv.Load()

	opts, err := Load(flag.CommandLine, os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("error while loading config: %v", err)
	}
	return opts
}

// Load registers the flags on fs, parses args and then applies the config
// file and the environment read through getenv.
func Load(fs *flag.FlagSet, args []string, getenv func(string) string) (*Options, error) {
	opts := &Options{}

	fs.StringVar(&opts.Addr, "a", "localhost:8080", "run on ip:port server")
	fs.StringVar(&opts.PublicURL, "u", "http://localhost:8080", "public base URL")
	fs.StringVar(&opts.DataServiceURL, "d", "", "data service endpoint")
	fs.StringVar(&opts.DataServiceKey, "k", "", "data service access key")
	fs.StringVar(&opts.RedisAddr, "r", "localhost:6379", "redis address")
	fs.StringVar(&opts.LogLevel, "l", "info", "log level")
	fs.DurationVar(&opts.SessionTTL, "session-ttl", 7*24*time.Hour, "session lifetime")
	fs.DurationVar(&opts.WorkspaceIdleTTL, "workspace-idle-ttl", time.Hour, "idle workspace eviction")
	fs.StringVar(&opts.Config, "config", "config.yaml", "path to config file")
	fs.StringVar(&opts.Config, "c", "config.yaml", "path to config file (shorthand)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if configPath := getenv("CONFIG"); configPath != "" {
		opts.Config = configPath
	}

	if opts.Config != "" {
		if err := loadFile(opts.Config, opts); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(opts, getenv); err != nil {
		return nil, err
	}

	return opts, nil
}

func loadFile(path string, opts *Options) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, opts); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(opts *Options, getenv func(string) string) error {
	strs := map[string]*string{
		"SERVER_ADDRESS":       &opts.Addr,
		"PUBLIC_URL":           &opts.PublicURL,
		"DATA_SERVICE_URL":     &opts.DataServiceURL,
		"DATA_SERVICE_KEY":     &opts.DataServiceKey,
		"REDIS_ADDR":           &opts.RedisAddr,
		"REDIS_PASSWORD":       &opts.RedisPassword,
		"GOOGLE_CLIENT_ID":     &opts.GoogleClientID,
		"GOOGLE_CLIENT_SECRET": &opts.GoogleClientSecret,
		"SESSION_SECRET":       &opts.SessionSecret,
		"LOG_LEVEL":            &opts.LogLevel,
		"TLS_CERT":             &opts.TLSCert,
		"TLS_KEY":              &opts.TLSKey,
	}
	for key, dst := range strs {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"SESSION_TTL":        &opts.SessionTTL,
		"WORKSPACE_IDLE_TTL": &opts.WorkspaceIdleTTL,
	}
	for key, dst := range durations {
		v := getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}

	if v := getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		opts.RedisDB = db
	}

	return nil
}
