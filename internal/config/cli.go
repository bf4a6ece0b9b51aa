package config

import (
	"flag"
	"fmt"
)

// CLIFlags holds command-line overrides. Nil fields were not set on the
// command line and leave the lower layers untouched.
type CLIFlags struct {
	ConfigPath *string
	Port       *string
	LogLevel   *string
	OllamaURL  *string
}

// ParseFlags parses modelgate's command-line flags.
func ParseFlags(args []string) (CLIFlags, error) {
	fs := flag.NewFlagSet("modelgate", flag.ContinueOnError)

	var configPath, port, logLevel, ollamaURL string
	fs.StringVar(&configPath, "config", "", "path to YAML config file")
	fs.StringVar(&configPath, "c", "", "shorthand for --config")
	fs.StringVar(&port, "port", "", "HTTP listen port")
	fs.StringVar(&port, "p", "", "shorthand for --port")
	fs.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&ollamaURL, "ollama-url", "", "local inference base URL")

	if err := fs.Parse(args); err != nil {
		return CLIFlags{}, fmt.Errorf("parse flags: %w", err)
	}

	var flags CLIFlags
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config", "c":
			flags.ConfigPath = &configPath
		case "port", "p":
			flags.Port = &port
		case "log-level":
			flags.LogLevel = &logLevel
		case "ollama-url":
			flags.OllamaURL = &ollamaURL
		}
	})
	return flags, nil
}

// LoadWithCLI loads config with the hierarchy defaults < YAML < ENV < CLI.
// It returns the YAML path that was consulted.
func LoadWithCLI(flags CLIFlags) (*Config, string, error) {
	path := DefaultConfigFile
	if flags.ConfigPath != nil {
		path = *flags.ConfigPath
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, path); err != nil {
		return nil, path, fmt.Errorf("config yaml: %w", err)
	}
	loadEnv(&cfg)
	applyCLI(&cfg, flags)

	if err := validate(&cfg); err != nil {
		return nil, path, fmt.Errorf("config validate: %w", err)
	}
	return &cfg, path, nil
}

func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.Port != nil {
		cfg.Server.Port = *flags.Port
	}
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.OllamaURL != nil {
		cfg.Ollama.URL = *flags.OllamaURL
	}
}
