// Package engine moves files between peers. A sender shares one file and gets a
// ticket back; a receiver redeems the ticket to download the file into a directory.
package engine

import (
	"context"
	"errors"

	"github.com/rescp17/ticketShare/pkg/transfer"
)

var (
	ErrInvalidTicket      = errors.New("invalid ticket")
	ErrInvalidDestination = errors.New("destination is not a directory")
	ErrPeerUnreachable    = errors.New("peer unreachable")
	ErrRejected           = errors.New("sender rejected the request")
	ErrTargetExists       = errors.New("target file already exists")
	ErrChecksumMismatch   = errors.New("checksum mismatch")
	ErrNotAFile           = errors.New("only regular files can be shared")
	ErrShutdown           = errors.New("engine was shut down")
)

// Engine is the transfer backend driven by the flow controllers.
//
// Progress samples are written to the channel passed to each call. BeginReceive
// never writes to its channel after returning; BeginSend keeps writing until Shutdown.
type Engine interface {
	BeginSend(ctx context.Context, path string, progress chan<- transfer.Progress) (string, error)
	BeginReceive(ctx context.Context, ticket, destDir string, progress chan<- transfer.Progress) error
	Shutdown(ctx context.Context) error
}

// OpError records the engine operation that failed.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func wrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return err
	}
	return &OpError{Op: op, Err: err}
}
