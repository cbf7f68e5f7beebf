package engine

import (
	"bytes"
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rescp17/ticketShare/pkg/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *transfer.TransferConfig {
	cfg := transfer.DefaultTransferConfig()
	cfg.ProgressInterval = time.Millisecond
	cfg.DialTimeout = 2 * time.Second
	cfg.RetryPolicy = &transfer.RetryPolicy{
		MaxRetries:    0,
		InitialDelay:  10 * time.Millisecond,
		BackoffFactor: 1,
		MaxDelay:      10 * time.Millisecond,
	}
	return cfg
}

func newTestEngine(t *testing.T) *QUICEngine {
	t.Helper()
	e, err := NewQUICEngine(testConfig(), WithHosts("127.0.0.1"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = e.Shutdown(context.Background())
	})
	return e
}

// collector drains a progress channel so the engine never blocks on it.
type collector struct {
	ch chan transfer.Progress

	mu      sync.Mutex
	samples []transfer.Progress
}

func newCollector() *collector {
	c := &collector{ch: make(chan transfer.Progress, 16)}
	go func() {
		for p := range c.ch {
			c.mu.Lock()
			c.samples = append(c.samples, p)
			c.mu.Unlock()
		}
	}()
	return c
}

func (c *collector) last() (transfer.Progress, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.samples) == 0 {
		return transfer.Progress{}, false
	}
	return c.samples[len(c.samples)-1], true
}

func writeRandomFile(t *testing.T, dir, name string, size int) []byte {
	t.Helper()
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	return data
}

func TestQUICEngine_SendReceive(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	data := writeRandomFile(t, srcDir, "payload.bin", 300*1024+17)

	sender := newTestEngine(t)
	receiver := newTestEngine(t)

	sent := newCollector()
	text, err := sender.BeginSend(context.Background(), filepath.Join(srcDir, "payload.bin"), sent.ch)
	require.NoError(t, err)

	ticket, err := ParseTicket(text)
	require.NoError(t, err)
	assert.Equal(t, "payload.bin", ticket.Name)
	assert.Equal(t, int64(len(data)), ticket.Size)
	require.NotEmpty(t, ticket.Addrs)

	recvCh := make(chan transfer.Progress, 1024)
	err = receiver.BeginReceive(context.Background(), text, dstDir, recvCh)
	require.NoError(t, err)
	close(recvCh)

	got, err := os.ReadFile(filepath.Join(dstDir, "payload.bin"))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got), "received content differs")
	assert.NoFileExists(t, filepath.Join(dstDir, "payload.bin.part"))

	var samples []transfer.Progress
	for p := range recvCh {
		samples = append(samples, p)
	}
	require.NotEmpty(t, samples)
	assert.Equal(t, transfer.Progress{Done: 0, Total: int64(len(data))}, samples[0])
	assert.Equal(t, transfer.Progress{Done: int64(len(data)), Total: int64(len(data))}, samples[len(samples)-1])
	for i := 1; i < len(samples); i++ {
		assert.GreaterOrEqual(t, samples[i].Done, samples[i-1].Done)
	}

	require.Eventually(t, func() bool {
		p, ok := sent.last()
		return ok && p.Done == p.Total && p.Total == int64(len(data))
	}, 5*time.Second, 10*time.Millisecond)
}

func TestQUICEngine_ReceiveErrors(t *testing.T) {
	srcDir := t.TempDir()
	writeRandomFile(t, srcDir, "notes.txt", 2048)

	sender := newTestEngine(t)
	text, err := sender.BeginSend(context.Background(), filepath.Join(srcDir, "notes.txt"), newCollector().ch)
	require.NoError(t, err)

	receiver := newTestEngine(t)

	t.Run("invalid ticket", func(t *testing.T) {
		err := receiver.BeginReceive(context.Background(), "not a ticket", t.TempDir(), nil)
		assert.ErrorIs(t, err, ErrInvalidTicket)
	})

	t.Run("missing destination", func(t *testing.T) {
		err := receiver.BeginReceive(context.Background(), text, filepath.Join(t.TempDir(), "nope"), nil)
		assert.ErrorIs(t, err, ErrInvalidDestination)
	})

	t.Run("destination is a file", func(t *testing.T) {
		dir := t.TempDir()
		file := filepath.Join(dir, "plain")
		require.NoError(t, os.WriteFile(file, nil, 0o644))
		err := receiver.BeginReceive(context.Background(), text, file, nil)
		assert.ErrorIs(t, err, ErrInvalidDestination)
	})

	t.Run("target exists", func(t *testing.T) {
		dir := t.TempDir()
		existing := filepath.Join(dir, "notes.txt")
		require.NoError(t, os.WriteFile(existing, []byte("keep me"), 0o644))

		err := receiver.BeginReceive(context.Background(), text, dir, nil)
		assert.ErrorIs(t, err, ErrTargetExists)

		content, err := os.ReadFile(existing)
		require.NoError(t, err)
		assert.Equal(t, "keep me", string(content))
	})

	t.Run("wrong token", func(t *testing.T) {
		tk, err := ParseTicket(text)
		require.NoError(t, err)
		tk.Token = "guess"
		forged, err := tk.Encode()
		require.NoError(t, err)

		dir := t.TempDir()
		err = receiver.BeginReceive(context.Background(), forged, dir, nil)
		assert.ErrorIs(t, err, ErrRejected)
		assert.NoFileExists(t, filepath.Join(dir, "notes.txt"))
	})

	t.Run("wrong fingerprint", func(t *testing.T) {
		tk, err := ParseTicket(text)
		require.NoError(t, err)
		flipped := "0"
		if tk.Fingerprint[0] == '0' {
			flipped = "1"
		}
		tk.Fingerprint = flipped + tk.Fingerprint[1:]
		forged, err := tk.Encode()
		require.NoError(t, err)

		err = receiver.BeginReceive(context.Background(), forged, t.TempDir(), nil)
		assert.ErrorIs(t, err, ErrPeerUnreachable)
	})
}

func TestQUICEngine_SendRejectsDirectory(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.BeginSend(context.Background(), t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrNotAFile)
}

func TestQUICEngine_SendMissingFile(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.BeginSend(context.Background(), filepath.Join(t.TempDir(), "gone"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestQUICEngine_UnreachableAfterShutdown(t *testing.T) {
	srcDir := t.TempDir()
	writeRandomFile(t, srcDir, "a.txt", 128)

	sender := newTestEngine(t)
	text, err := sender.BeginSend(context.Background(), filepath.Join(srcDir, "a.txt"), nil)
	require.NoError(t, err)
	require.NoError(t, sender.Shutdown(context.Background()))

	cfg := testConfig()
	cfg.DialTimeout = 300 * time.Millisecond
	receiver, err := NewQUICEngine(cfg)
	require.NoError(t, err)

	dir := t.TempDir()
	err = receiver.BeginReceive(context.Background(), text, dir, nil)
	assert.ErrorIs(t, err, ErrPeerUnreachable)
	assert.NoFileExists(t, filepath.Join(dir, "a.txt"))
}

func TestQUICEngine_ShutdownIdempotent(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Shutdown(context.Background()))
	require.NoError(t, e.Shutdown(context.Background()))
}

func TestQUICEngine_NewShareReplacesPrevious(t *testing.T) {
	srcDir := t.TempDir()
	writeRandomFile(t, srcDir, "first.txt", 64)
	writeRandomFile(t, srcDir, "second.txt", 64)

	sender := newTestEngine(t)
	first, err := sender.BeginSend(context.Background(), filepath.Join(srcDir, "first.txt"), nil)
	require.NoError(t, err)
	second, err := sender.BeginSend(context.Background(), filepath.Join(srcDir, "second.txt"), nil)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	cfg := testConfig()
	cfg.DialTimeout = 300 * time.Millisecond
	receiver, err := NewQUICEngine(cfg)
	require.NoError(t, err)

	err = receiver.BeginReceive(context.Background(), first, t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrPeerUnreachable)

	dir := t.TempDir()
	require.NoError(t, receiver.BeginReceive(context.Background(), second, dir, nil))
	assert.FileExists(t, filepath.Join(dir, "second.txt"))
}

func TestQUICEngine_ReceiveCancelled(t *testing.T) {
	e := newTestEngine(t)
	tk := validTicket()
	tk.Addrs = []string{"127.0.0.1:9"}
	text, err := tk.Encode()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = e.BeginReceive(ctx, text, t.TempDir(), nil)
	assert.Error(t, err)
}
