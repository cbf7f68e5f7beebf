// Package config holds the user-tunable settings of ticketshare. Values come from
// defaults, then an optional YAML file, then command line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rescp17/ticketShare/internal/session"
	"github.com/rescp17/ticketShare/pkg/transfer"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Config struct {
	GraceDelay       time.Duration `yaml:"grace_delay"`
	ListenPort       int           `yaml:"listen_port"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	DialRetries      int           `yaml:"dial_retries"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
	ChunkSize        int32         `yaml:"chunk_size"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
	ProgressBuffer   int           `yaml:"progress_buffer"`
	MDNS             bool          `yaml:"mdns"`
	Extensions       []string      `yaml:"extensions"`
	DownloadDir      string        `yaml:"download_dir"`
	LogFile          string        `yaml:"log_file"`
	LogLevel         string        `yaml:"log_level"`
}

func Default() *Config {
	tc := transfer.DefaultTransferConfig()
	return &Config{
		GraceDelay:       session.DefaultGraceDelay,
		ListenPort:       tc.ListenPort,
		DialTimeout:      tc.DialTimeout,
		DialRetries:      tc.RetryPolicy.MaxRetries,
		ShutdownTimeout:  tc.ShutdownTimeout,
		ChunkSize:        tc.ChunkSize,
		ProgressInterval: tc.ProgressInterval,
		ProgressBuffer:   16,
		MDNS:             true,
		DownloadDir:      ".",
		LogFile:          "debug.log",
		LogLevel:         "info",
	}
}

func (c *Config) Validate() error {
	if c.GraceDelay < 0 {
		return errors.New("grace_delay cannot be negative")
	}
	if c.ProgressBuffer <= 0 {
		return errors.New("progress_buffer must be positive")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return c.TransferConfig().Validate()
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// TransferConfig maps the settings onto the engine configuration.
func (c *Config) TransferConfig() *transfer.TransferConfig {
	tc := transfer.DefaultTransferConfig()
	tc.ListenPort = c.ListenPort
	tc.DialTimeout = c.DialTimeout
	tc.ShutdownTimeout = c.ShutdownTimeout
	tc.ChunkSize = c.ChunkSize
	tc.ProgressInterval = c.ProgressInterval
	tc.RetryPolicy.MaxRetries = c.DialRetries
	return tc
}

// Load reads a YAML file over the defaults. Durations are written as "500ms", "2s" and so on.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// BindFlags registers a flag for every scalar setting, defaulting to the current values.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.DurationVar(&c.GraceDelay, "grace-delay", c.GraceDelay, "how long a finished progress bar stays visible")
	fs.IntVar(&c.ListenPort, "port", c.ListenPort, "UDP port to share on (0 picks a free port)")
	fs.DurationVar(&c.DialTimeout, "dial-timeout", c.DialTimeout, "timeout for reaching a sender")
	fs.IntVar(&c.DialRetries, "dial-retries", c.DialRetries, "extra attempts when a sender cannot be reached")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", c.ShutdownTimeout, "how long to wait for a share to stop")
	fs.Int32Var(&c.ChunkSize, "chunk-size", c.ChunkSize, "bytes read from disk per chunk")
	fs.DurationVar(&c.ProgressInterval, "progress-interval", c.ProgressInterval, "minimum time between progress updates")
	fs.BoolVar(&c.MDNS, "mdns", c.MDNS, "announce shares and resolve senders over mDNS")
	fs.StringVar(&c.DownloadDir, "dir", c.DownloadDir, "directory received files are written to")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "file debug logs are written to")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn or error")
}

// ApplyFile merges a YAML file under the flags of fs: settings given on the command
// line keep their values.
func (c *Config) ApplyFile(path string, fs *pflag.FlagSet) error {
	changed := map[string]string{}
	fs.Visit(func(f *pflag.Flag) {
		changed[f.Name] = f.Value.String()
	})
	if err := c.mergeFile(path); err != nil {
		return err
	}
	for name, value := range changed {
		if err := fs.Set(name, value); err != nil {
			return fmt.Errorf("reapply --%s: %w", name, err)
		}
	}
	return nil
}
