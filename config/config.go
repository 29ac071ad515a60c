// Package config turns the command line (and an optional YAML file) into the
// server's startup settings.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/cyberinferno/vulnserver/logger"
	"github.com/cyberinferno/vulnserver/peerstats"
	"github.com/cyberinferno/vulnserver/session"
)

// ErrUsage is returned when the positional arguments are wrong or a flag
// could not be parsed. The usage text has already been printed.
var ErrUsage = errors.New("usage error")

const (
	// DefaultLogFile is the peer log opened at startup.
	DefaultLogFile = "server.log"
	// DefaultLogLevel is the minimum level of the diagnostic log.
	DefaultLogLevel = "info"
)

// Config holds the startup settings. Fields tagged "-" only come from the
// command line or are derived by Load.
type Config struct {
	Port     int    `yaml:"-"`
	Mode     string `yaml:"mode"`
	Sanitize bool   `yaml:"sanitize"`
	LogFile  string `yaml:"log_file"`
	// LogLines records every echoed line in the peer log.
	LogLines    bool          `yaml:"log_lines"`
	LogLevel    string        `yaml:"log_level"`
	StatsWindow time.Duration `yaml:"stats_window"`
	// Redis is the address of the Redis server backing peer stats. Empty
	// keeps them in memory.
	Redis string `yaml:"redis"`
	// ResetStats forgets every recorded peer at startup.
	ResetStats bool `yaml:"reset_stats"`

	SessionMode session.Mode  `yaml:"-"`
	Level       zerolog.Level `yaml:"-"`
}

// Default returns the settings used when neither a flag nor the config file
// sets a value.
func Default() Config {
	return Config{
		Mode:        session.ModeVulnerable.String(),
		LogFile:     DefaultLogFile,
		LogLevel:    DefaultLogLevel,
		StatsWindow: peerstats.DefaultWindow,
	}
}

// Addr returns the loopback listen address for the configured port.
func (c Config) Addr() string {
	return fmt.Sprintf("127.0.0.1:%d", c.Port)
}

// Load parses args (without the program name). Values from the -config file
// are applied first; flags given explicitly override them.
//
// Parameters:
//   - name: Program name used in the usage text
//   - args: Command line arguments after the program name
//   - output: Destination of usage and flag errors (typically os.Stderr)
//
// Returns:
//   - The validated Config
//   - ErrUsage for a bad command line, or an error describing the invalid
//     setting or unreadable config file
func Load(name string, args []string, output io.Writer) (Config, error) {
	flags := Default()
	var configPath string

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] <port>\n", name)
		fs.PrintDefaults()
	}

	fs.StringVar(&configPath, "config", "", "YAML file with default settings")
	fs.StringVar(&flags.Mode, "mode", flags.Mode, "vulnerable or hardened")
	fs.BoolVar(&flags.Sanitize, "sanitize", flags.Sanitize, "fault on the first write past a stack buffer")
	fs.StringVar(&flags.LogFile, "log-file", flags.LogFile, "peer log file, opened for appending at startup")
	fs.BoolVar(&flags.LogLines, "log-lines", flags.LogLines, "record every echoed line in the peer log")
	fs.StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "debug, info, warn or error")
	fs.DurationVar(&flags.StatsWindow, "stats-window", flags.StatsWindow, "window of the per-peer connection count")
	fs.StringVar(&flags.Redis, "redis", flags.Redis, "Redis address for peer stats (empty keeps them in memory)")
	fs.BoolVar(&flags.ResetStats, "reset-stats", flags.ResetStats, "forget recorded peer stats at startup")

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrUsage, err)
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return Config{}, ErrUsage
	}

	cfg := Default()
	if configPath != "" {
		if err := readFile(configPath, &cfg); err != nil {
			return Config{}, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Mode = flags.Mode
		case "sanitize":
			cfg.Sanitize = flags.Sanitize
		case "log-file":
			cfg.LogFile = flags.LogFile
		case "log-lines":
			cfg.LogLines = flags.LogLines
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		case "stats-window":
			cfg.StatsWindow = flags.StatsWindow
		case "redis":
			cfg.Redis = flags.Redis
		case "reset-stats":
			cfg.ResetStats = flags.ResetStats
		}
	})

	port, err := strconv.ParseUint(fs.Arg(0), 10, 16)
	if err != nil {
		return Config{}, fmt.Errorf("invalid port %q: %w", fs.Arg(0), err)
	}
	cfg.Port = int(port)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return nil
}

func (c *Config) validate() error {
	mode, err := session.ParseMode(c.Mode)
	if err != nil {
		return err
	}
	c.SessionMode = mode

	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	c.Level = level

	if c.LogFile == "" {
		return errors.New("log file must not be empty")
	}

	if c.StatsWindow <= 0 {
		return fmt.Errorf("stats window must be positive, got %s", c.StatsWindow)
	}

	return nil
}
