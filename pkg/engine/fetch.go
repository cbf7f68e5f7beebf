package engine

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/rescp17/ticketShare/internal/util"
	"github.com/rescp17/ticketShare/pkg/crypto"
	"github.com/rescp17/ticketShare/pkg/discovery"
	"github.com/rescp17/ticketShare/pkg/transfer"
)

// resolveTimeout bounds the mDNS fallback when no ticket address answers.
const resolveTimeout = 3 * time.Second

// BeginReceive downloads the file behind ticketText into destDir and returns once it
// has been verified and moved into place. Existing files are never overwritten.
func (e *QUICEngine) BeginReceive(ctx context.Context, ticketText, destDir string, progress chan<- transfer.Progress) error {
	const op = "begin_receive"

	ticket, err := ParseTicket(ticketText)
	if err != nil {
		return wrapOp(op, err)
	}

	exists, isDir, err := util.CheckDirectory(destDir)
	if err != nil {
		return wrapOp(op, err)
	}
	if !exists || !isDir {
		return wrapOp(op, fmt.Errorf("%w: %s", ErrInvalidDestination, destDir))
	}
	target := filepath.Join(destDir, ticket.Name)
	if err := ensureAbsent(target); err != nil {
		return wrapOp(op, err)
	}

	var (
		conn   quic.Connection
		stream quic.Stream
		header *transfer.FileHeader
	)
	err = e.cfg.RetryPolicy.Retry(ctx, func() error {
		var err error
		conn, stream, header, err = e.request(ctx, ticket)
		return err
	})
	if err != nil {
		return wrapOp(op, err)
	}
	defer conn.CloseWithError(codeFailed, "receive aborted")

	stop := context.AfterFunc(ctx, func() {
		stream.CancelRead(quic.StreamErrorCode(codeShutdown))
		stream.CancelWrite(quic.StreamErrorCode(codeShutdown))
	})
	defer stop()

	if header.Size != ticket.Size || header.Checksum != ticket.Checksum {
		return wrapOp(op, fmt.Errorf("%w: file changed since the ticket was issued", ErrRejected))
	}

	if err := e.download(ctx, stream, header, target, progress); err != nil {
		return wrapOp(op, err)
	}
	_ = stream.Close()
	_ = conn.CloseWithError(codeOK, "")
	slog.Info("file received", "name", header.Name, "size", header.Size, "path", target)
	return nil
}

func ensureAbsent(path string) error {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", ErrTargetExists, path)
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return err
	}
}

// request connects to the sender, asks for the file and reads the header.
func (e *QUICEngine) request(ctx context.Context, ticket Ticket) (quic.Connection, quic.Stream, *transfer.FileHeader, error) {
	conn, err := e.dial(ctx, ticket)
	if err != nil {
		return nil, nil, nil, err
	}
	fail := func(err error) (quic.Connection, quic.Stream, *transfer.FileHeader, error) {
		_ = conn.CloseWithError(codeFailed, "request failed")
		return nil, nil, nil, err
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return fail(fmt.Errorf("open stream: %w", err))
	}
	err = transfer.WriteMessage(stream, e.serializer, &transfer.Message{
		Type:    transfer.FetchRequestType,
		Request: &transfer.FetchRequest{Token: ticket.Token},
	})
	if err != nil {
		return fail(fmt.Errorf("send request: %w", err))
	}
	msg, err := transfer.ReadMessage(stream, e.serializer)
	if err != nil {
		return fail(fmt.Errorf("read header: %w", err))
	}
	if msg.Type != transfer.FileHeaderType || msg.Header == nil {
		return fail(fmt.Errorf("%w: unexpected %q message", ErrRejected, msg.Type))
	}
	if msg.Header.Error != "" {
		err := fmt.Errorf("%w: %s", ErrRejected, msg.Header.Error)
		if !msg.Header.Retryable {
			return fail(err)
		}
		return fail(fmt.Errorf("%w (temporary)", err))
	}
	return conn, stream, msg.Header, nil
}

// dial tries every address in the ticket, then falls back to resolving the ticket's node name.
func (e *QUICEngine) dial(ctx context.Context, ticket Ticket) (quic.Connection, error) {
	tlsConf := crypto.PinnedClientTLSConfig(ticket.Fingerprint, transfer.ALPN)

	conn, err := e.dialAny(ctx, ticket.Addrs, tlsConf)
	if err == nil {
		return conn, nil
	}
	if e.discovery != nil && ticket.Node != "" && ctx.Err() == nil {
		resolveCtx, cancel := context.WithTimeout(ctx, resolveTimeout)
		found, rerr := discovery.Resolve(resolveCtx, e.discovery, discovery.ServiceName(discovery.DefaultServiceType, discovery.DefaultDomain), ticket.Node)
		cancel()
		if rerr == nil {
			slog.Debug("resolved sender over mDNS", "node", ticket.Node, "endpoints", found.Endpoints())
			if conn, derr := e.dialAny(ctx, found.Endpoints(), tlsConf); derr == nil {
				return conn, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrPeerUnreachable, err)
}

// dialAny dials all addresses at once and keeps the first connection that completes the handshake.
func (e *QUICEngine) dialAny(ctx context.Context, addrs []string, tlsConf *tls.Config) (quic.Connection, error) {
	if len(addrs) == 0 {
		return nil, errors.New("no addresses to dial")
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.DialTimeout)
	defer cancel()

	type result struct {
		conn quic.Connection
		err  error
	}
	results := make(chan result, len(addrs))
	for _, addr := range addrs {
		go func(addr string) {
			conn, err := quic.DialAddr(ctx, addr, tlsConf.Clone(), e.quicConfig())
			if err != nil {
				err = fmt.Errorf("%s: %w", addr, err)
			}
			results <- result{conn: conn, err: err}
		}(addr)
	}

	var (
		winner quic.Connection
		errs   []error
	)
	for range addrs {
		r := <-results
		switch {
		case r.err != nil:
			errs = append(errs, r.err)
		case winner == nil:
			winner = r.conn
			cancel()
		default:
			_ = r.conn.CloseWithError(codeOK, "duplicate")
		}
	}
	if winner != nil {
		return winner, nil
	}
	return nil, errors.Join(errs...)
}

func (e *QUICEngine) download(ctx context.Context, stream quic.Stream, header *transfer.FileHeader, target string, progress chan<- transfer.Progress) (err error) {
	part := target + ".part"
	file, err := os.OpenFile(part, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = file.Close()
			if rmErr := os.Remove(part); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				slog.Warn("failed to remove partial file", "path", part, "error", rmErr)
			}
		}
	}()

	reporter := transfer.NewProgressReporter(progress, header.Size, e.cfg.ProgressInterval)
	if err := reporter.Start(ctx); err != nil {
		return err
	}

	hasher := sha256.New()
	sink := &progressWriter{ctx: ctx, reporter: reporter}
	buf := make([]byte, e.cfg.ChunkSize)
	if _, err := io.CopyBuffer(io.MultiWriter(file, hasher, sink), io.LimitReader(stream, header.Size), buf); err != nil {
		return fmt.Errorf("receive %s: %w", header.Name, err)
	}
	if sink.written != header.Size {
		return fmt.Errorf("receive %s: %w", header.Name, io.ErrUnexpectedEOF)
	}
	if err := file.Close(); err != nil {
		return err
	}
	if sum := hex.EncodeToString(hasher.Sum(nil)); sum != header.Checksum {
		return fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, sum, header.Checksum)
	}
	if err := ensureAbsent(target); err != nil {
		return err
	}
	if err := os.Rename(part, target); err != nil {
		return err
	}
	return reporter.Finish(ctx)
}

type progressWriter struct {
	ctx      context.Context
	reporter *transfer.ProgressReporter
	written  int64
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	if err := w.reporter.Update(w.ctx, w.written); err != nil {
		return 0, err
	}
	return len(p), nil
}
