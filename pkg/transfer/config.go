package transfer

import (
	"errors"
	"time"
)

// TransferConfig holds the tunables of the transfer engine.
type TransferConfig struct {
	ChunkSize    int32 `json:"chunk_size" yaml:"chunk_size"`
	MaxChunkSize int32 `json:"max_chunk_size" yaml:"-"`
	MinChunkSize int32 `json:"min_chunk_size" yaml:"-"`

	// ListenPort is the UDP port the sender listens on. Zero picks a free port.
	ListenPort int `json:"listen_port" yaml:"listen_port"`

	ProgressInterval time.Duration `json:"progress_interval" yaml:"progress_interval"`
	DialTimeout      time.Duration `json:"dial_timeout" yaml:"dial_timeout"`
	IdleTimeout      time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout  time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`

	RetryPolicy *RetryPolicy `json:"retry_policy" yaml:"retry_policy"`
}

const (
	DefaultChunkSize = 64 * 1024
	MaxChunkSize     = 256 * 1024
	MinChunkSize     = 4 * 1024
)

func DefaultTransferConfig() *TransferConfig {
	return &TransferConfig{
		ChunkSize:    DefaultChunkSize,
		MaxChunkSize: MaxChunkSize,
		MinChunkSize: MinChunkSize,

		ListenPort: 0,

		ProgressInterval: 100 * time.Millisecond,
		DialTimeout:      5 * time.Second,
		IdleTimeout:      30 * time.Second,
		ShutdownTimeout:  2 * time.Second,

		RetryPolicy: DefaultRetryPolicy(),
	}
}

// Validate checks if the configuration values are valid
func (tc *TransferConfig) Validate() error {
	if tc.ChunkSize <= 0 {
		return errors.New("chunk_size must be positive")
	}
	if tc.MinChunkSize <= 0 {
		return errors.New("min_chunk_size must be positive")
	}
	if tc.MaxChunkSize <= 0 {
		return errors.New("max_chunk_size must be positive")
	}
	if tc.ChunkSize < tc.MinChunkSize {
		return errors.New("chunk_size cannot be less than min_chunk_size")
	}
	if tc.ChunkSize > tc.MaxChunkSize {
		return errors.New("chunk_size cannot be greater than max_chunk_size")
	}
	if tc.ListenPort < 0 || tc.ListenPort > 65535 {
		return errors.New("listen_port must be between 0 and 65535")
	}
	if tc.ProgressInterval < 0 {
		return errors.New("progress_interval cannot be negative")
	}
	if tc.DialTimeout <= 0 {
		return errors.New("dial_timeout must be positive")
	}
	if tc.IdleTimeout <= 0 {
		return errors.New("idle_timeout must be positive")
	}
	if tc.ShutdownTimeout <= 0 {
		return errors.New("shutdown_timeout must be positive")
	}
	if tc.RetryPolicy == nil {
		return errors.New("retry_policy cannot be nil")
	}
	return tc.RetryPolicy.Validate()
}
