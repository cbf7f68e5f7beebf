package transfer

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
)

// ErrorCategory represents the category of an error for handling purposes
type ErrorCategory int

const (
	// ErrorCategoryRecoverable indicates errors that can be retried
	ErrorCategoryRecoverable ErrorCategory = iota
	// ErrorCategoryNonRecoverable indicates errors that should not be retried
	ErrorCategoryNonRecoverable
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrorCategoryRecoverable:
		return "recoverable"
	case ErrorCategoryNonRecoverable:
		return "non-recoverable"
	default:
		return "unknown"
	}
}

var nonRecoverablePatterns = []string{
	"file not found",
	"no such file",
	"permission denied",
	"access denied",
	"no space left",
	"unauthorized",
	"invalid ticket",
	"invalid checksum",
	"checksum mismatch",
	"certificate",
	"crypto_error",
}

var recoverablePatterns = []string{
	"connection timeout",
	"temporary failure",
	"network unreachable",
	"connection reset",
	"connection refused",
	"no recent network activity",
	"timeout",
	"busy",
	"try again",
	"temporary",
	"peer unreachable",
}

// CategorizeError determines the category of an error
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryRecoverable
	}
	switch {
	case errors.Is(err, context.Canceled):
		return ErrorCategoryNonRecoverable
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return ErrorCategoryNonRecoverable
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorCategoryRecoverable
	}

	errMsg := strings.ToLower(err.Error())
	for _, pattern := range nonRecoverablePatterns {
		if strings.Contains(errMsg, pattern) {
			return ErrorCategoryNonRecoverable
		}
	}
	for _, pattern := range recoverablePatterns {
		if strings.Contains(errMsg, pattern) {
			return ErrorCategoryRecoverable
		}
	}
	return ErrorCategoryNonRecoverable
}

// IsRetryable checks if an error should trigger a retry
func IsRetryable(err error) bool {
	return err != nil && CategorizeError(err) == ErrorCategoryRecoverable
}

// RetryPolicy defines the retry behavior when reaching a peer
type RetryPolicy struct {
	MaxRetries    int           `json:"max_retries" yaml:"max_retries"`
	InitialDelay  time.Duration `json:"initial_delay" yaml:"initial_delay"`
	BackoffFactor float64       `json:"backoff_factor" yaml:"backoff_factor"`
	MaxDelay      time.Duration `json:"max_delay" yaml:"max_delay"`
}

func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:    3,
		InitialDelay:  500 * time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      5 * time.Second,
	}
}

func (rp *RetryPolicy) Validate() error {
	if rp.MaxRetries < 0 {
		return errors.New("max_retries cannot be negative")
	}
	if rp.InitialDelay <= 0 {
		return errors.New("initial_delay must be positive")
	}
	if rp.BackoffFactor < 1 {
		return errors.New("backoff_factor must be at least 1")
	}
	if rp.MaxDelay < rp.InitialDelay {
		return errors.New("max_delay cannot be less than initial_delay")
	}
	return nil
}

// NewBackOff builds an exponential backoff bounded by MaxRetries and ctx.
func (rp *RetryPolicy) NewBackOff(ctx context.Context) backoff.BackOff {
	if rp.MaxRetries == 0 {
		// WithMaxRetries treats zero as unlimited
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = rp.InitialDelay
	b.Multiplier = rp.BackoffFactor
	b.MaxInterval = rp.MaxDelay
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(rp.MaxRetries)), ctx)
}

// Retry runs op until it succeeds, fails with a non-retryable error, or the policy is exhausted.
func (rp *RetryPolicy) Retry(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, rp.NewBackOff(ctx))
}
