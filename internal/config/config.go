// Package config provides functionality for managing configuration options
// for the application using command-line flags, a JSON config file and
// environment variables.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
)

// Options holds the configuration values for both the CLI client and
// the dev server.
type Options struct {
	// ServerURL is the base URL of the task service API.
	ServerURL string

	// StateDir is the directory holding the client's durable state
	// (tokens, offline task cache).
	StateDir string

	// Address defines the dev server's listening address (ip:port).
	Address string

	// DatabaseDSN holds the Postgres connection string for the dev
	// server. Empty means the in-memory repositories are used.
	DatabaseDSN string

	// LogLevel sets the zap log level.
	LogLevel string

	// GoogleClientID and GoogleClientSecret configure the dev server's
	// Google OAuth code exchange.
	GoogleClientID     string
	GoogleClientSecret string
	// GoogleRedirectURL is where Google sends the user back after consent.
	GoogleRedirectURL string

	// Config is the path to the JSON config file.
	Config string
}

// options holds the current configuration values.
var options = &Options{}

// init initializes command-line flags and sets default values.
func init() {
	flag.StringVar(&options.Address, "a", "localhost:8080", "run on ip:port server")
	flag.StringVar(&options.DatabaseDSN, "d", "", "db address")
	flag.StringVar(&options.LogLevel, "l", "info", "log level")
	flag.StringVar(&options.Config, "config", "config.json", "path to config file")
	flag.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
}

// Parse parses the command-line flags, the config file and environment
// variables to set configuration values. Precedence is flags < file < env.
// It returns a pointer to the Options struct containing the parsed values.
func Parse() *Options {
	flag.Parse()
	return Load(options)
}

// Load fills opts from the config file and environment variables
// without touching the flag package, so cobra-based binaries can reuse
// the same layering. A nil opts starts from defaults.
func Load(opts *Options) *Options {
	if opts == nil {
		opts = &Options{}
	}
	applyDefaults(opts)

	if configPath := os.Getenv("CONFIG"); configPath != "" {
		opts.Config = configPath
	}

	if opts.Config != "" {
		if _, err := os.Stat(opts.Config); err == nil {
			data, err := os.ReadFile(opts.Config)
			if err != nil {
				log.Fatalf("error while reading config file: %v", err)
			}
			if err := json.Unmarshal(data, opts); err != nil {
				log.Fatalf("error while parsing config file: %v", err)
			}
		}
	}

	if serverAddress := os.Getenv("SERVER_ADDRESS"); serverAddress != "" {
		opts.Address = serverAddress
	}
	if serverURL := os.Getenv("TASKDECK_SERVER_URL"); serverURL != "" {
		opts.ServerURL = serverURL
	}
	if stateDir := os.Getenv("TASKDECK_STATE_DIR"); stateDir != "" {
		opts.StateDir = stateDir
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		opts.DatabaseDSN = dsn
	}
	if id := os.Getenv("GOOGLE_CLIENT_ID"); id != "" {
		opts.GoogleClientID = id
	}
	if secret := os.Getenv("GOOGLE_CLIENT_SECRET"); secret != "" {
		opts.GoogleClientSecret = secret
	}
	if redirect := os.Getenv("GOOGLE_REDIRECT_URL"); redirect != "" {
		opts.GoogleRedirectURL = redirect
	}

	return opts
}

// applyDefaults sets values that cannot be expressed as flag defaults.
func applyDefaults(opts *Options) {
	if opts.ServerURL == "" {
		opts.ServerURL = "http://localhost:8080"
	}
	if opts.LogLevel == "" {
		opts.LogLevel = "info"
	}
	if opts.StateDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			opts.StateDir = filepath.Join(home, ".taskdeck")
		} else {
			opts.StateDir = ".taskdeck"
		}
	}
}
