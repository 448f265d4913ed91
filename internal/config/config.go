// Package config provides functionality for managing configuration options
// for the client using command-line flags, a config file and environment
// variables.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Options holds the configuration values for the client.
type Options struct {
	// APIURL is the base URL of the equipment analytics API.
	APIURL string `mapstructure:"api_url"`

	// StorageDir is where the credential store keeps its data.
	StorageDir string `mapstructure:"storage_dir"`

	// StorageBackend selects the credential store backend: "file" or "badger".
	StorageBackend string `mapstructure:"storage_backend"`

	// StorageSecret seeds the keys that seal persisted values.
	StorageSecret string `mapstructure:"storage_secret"`

	// LogLevel is the zap level name.
	LogLevel string `mapstructure:"log_level"`

	// Timeout bounds every HTTP request.
	Timeout time.Duration `mapstructure:"timeout"`

	// CAFile optionally points to a PEM bundle for https API servers.
	CAFile string `mapstructure:"ca_file"`

	// Config is the path to the config file.
	Config string `mapstructure:"-"`
}

const (
	defaultAPIURL = "http://localhost:8000/api"
	defaultSecret = "chemora-local-profile"
)

// Parse parses the process command line, the config file and environment
// variables, in that order of increasing precedence.
func Parse() (*Options, error) {
	return parse(flag.CommandLine, os.Args[1:])
}

func parse(fs *flag.FlagSet, args []string) (*Options, error) {
	options := &Options{}

	fs.StringVar(&options.APIURL, "url", defaultAPIURL, "API base URL")
	fs.StringVar(&options.StorageDir, "storage", ".chemora", "credential store directory")
	fs.StringVar(&options.StorageBackend, "backend", "file", "credential store backend: file | badger")
	fs.StringVar(&options.StorageSecret, "secret", defaultSecret, "secret sealing persisted credentials")
	fs.StringVar(&options.LogLevel, "log-level", "info", "log level")
	fs.DurationVar(&options.Timeout, "timeout", 10*time.Second, "HTTP request timeout")
	fs.StringVar(&options.CAFile, "ca", "", "path to CA bundle for https servers")
	fs.StringVar(&options.Config, "config", "", "path to config file")
	fs.StringVar(&options.Config, "c", "", "path to config file (shorthand)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			v := viper.New()
			v.SetConfigFile(options.Config)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error while reading config file: %w", err)
			}
			if err := v.Unmarshal(options); err != nil {
				return nil, fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}

	if apiURL := os.Getenv("CHEMORA_API_URL"); apiURL != "" {
		options.APIURL = apiURL
	}
	if dir := os.Getenv("CHEMORA_STORAGE_DIR"); dir != "" {
		options.StorageDir = dir
	}
	if secret := os.Getenv("CHEMORA_STORAGE_SECRET"); secret != "" {
		options.StorageSecret = secret
	}

	if err := options.Validate(); err != nil {
		return nil, err
	}
	return options, nil
}

// Validate rejects option combinations the client cannot run with.
func (o *Options) Validate() error {
	if o.APIURL == "" {
		return errors.New("api url must not be empty")
	}
	switch o.StorageBackend {
	case "file", "badger":
	default:
		return fmt.Errorf("unknown storage backend %q", o.StorageBackend)
	}
	if o.StorageSecret == "" {
		return errors.New("storage secret must not be empty")
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", o.Timeout)
	}
	return nil
}
