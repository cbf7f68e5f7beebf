package engine

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/quic-go/quic-go"
	"github.com/rescp17/ticketShare/pkg/concurrency"
	"github.com/rescp17/ticketShare/pkg/transfer"
	"golang.org/x/sync/errgroup"
)

const (
	codeOK       quic.ApplicationErrorCode = 0
	codeShutdown quic.ApplicationErrorCode = 1
	codeFailed   quic.ApplicationErrorCode = 2
)

// peerDone reports whether err is the peer closing the connection after a clean finish.
func peerDone(err error) bool {
	var appErr *quic.ApplicationError
	return errors.As(err, &appErr) && appErr.Remote && appErr.ErrorCode == codeOK
}

// serve accepts connections until the share is stopped.
func (e *QUICEngine) serve(ctx context.Context, share *activeShare) {
	var g errgroup.Group
	for {
		conn, err := share.listener.Accept(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, quic.ErrServerClosed) {
				slog.Warn("accept failed", "error", err)
			}
			break
		}
		g.Go(func() error {
			e.handleConn(ctx, share, conn)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *QUICEngine) handleConn(ctx context.Context, share *activeShare, conn quic.Connection) {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.CloseWithError(codeShutdown, "share stopped")
	})
	defer stop()
	defer conn.CloseWithError(codeOK, "")

	remote := conn.RemoteAddr().String()
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		slog.Debug("no stream from peer", "remote", remote, "error", err)
		return
	}
	defer stream.Close()

	msg, err := transfer.ReadMessage(stream, e.serializer)
	if err != nil {
		slog.Warn("failed to read fetch request", "remote", remote, "error", err)
		return
	}
	if msg.Type != transfer.FetchRequestType || msg.Request == nil {
		e.reject(stream, "unexpected message", false)
		return
	}
	if subtle.ConstantTimeCompare([]byte(msg.Request.Token), []byte(share.token)) != 1 {
		slog.Warn("fetch request with wrong token", "remote", remote)
		e.reject(stream, "unauthorized", false)
		return
	}

	err = share.guard.ExecuteWithContext(ctx, func(ctx context.Context) error {
		return e.sendFile(ctx, share, stream)
	})
	switch {
	case errors.Is(err, concurrency.ErrBusy):
		e.reject(stream, "sender busy, try again", true)
	case err != nil:
		slog.Error("transfer to peer failed", "remote", remote, "error", err)
	default:
		slog.Info("file delivered", "remote", remote, "name", share.node.Name)
	}
}

func (e *QUICEngine) reject(stream quic.Stream, reason string, retryable bool) {
	err := transfer.WriteMessage(stream, e.serializer, &transfer.Message{
		Type:   transfer.FileHeaderType,
		Header: &transfer.FileHeader{Error: reason, Retryable: retryable},
	})
	if err != nil {
		slog.Debug("failed to send rejection", "error", err)
		return
	}
	_ = stream.Close()
	// hold the connection open until the peer has read the rejection
	_, _ = io.Copy(io.Discard, stream)
}

func (e *QUICEngine) sendFile(ctx context.Context, share *activeShare, stream quic.Stream) error {
	node := share.node
	err := transfer.WriteMessage(stream, e.serializer, &transfer.Message{
		Type: transfer.FileHeaderType,
		Header: &transfer.FileHeader{
			Name:     node.Name,
			Size:     node.Size,
			MimeType: node.MimeType,
			Checksum: node.Checksum,
		},
	})
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	chunker, err := transfer.NewChunkerFromFileNode(&node, e.cfg.ChunkSize)
	if err != nil {
		return err
	}
	defer chunker.Close()

	reporter := transfer.NewProgressReporter(share.progress, node.Size, e.cfg.ProgressInterval)
	if err := reporter.Start(ctx); err != nil {
		return err
	}
	for {
		chunk, err := chunker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", node.Name, err)
		}
		if _, err := stream.Write(chunk.Data); err != nil {
			return fmt.Errorf("write chunk %d: %w", chunk.SequenceNo, err)
		}
		if err := reporter.Update(ctx, chunker.BytesRead()); err != nil {
			return err
		}
	}
	if err := stream.Close(); err != nil {
		return err
	}

	// the receiver closes its side once the file is verified
	if _, err := io.Copy(io.Discard, stream); err != nil && !peerDone(err) {
		return fmt.Errorf("waiting for receiver: %w", err)
	}
	return reporter.Finish(ctx)
}
