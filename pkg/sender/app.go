package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/rescp17/ticketShare/internal/app_events"
	"github.com/rescp17/ticketShare/internal/app_events/sender"
	"github.com/rescp17/ticketShare/internal/session"
	"github.com/rescp17/ticketShare/pkg/engine"
	"github.com/rescp17/ticketShare/pkg/picker"
	"github.com/rescp17/ticketShare/pkg/transfer"
)

var (
	ErrNoSelection = errors.New("no file selected")
	ErrNoTicket    = errors.New("no ticket to copy")
)

const (
	defaultProgressBuffer  = 16
	defaultShutdownTimeout = 2 * time.Second
)

type Option func(*App)

// WithClipboard replaces the system clipboard writer.
func WithClipboard(write func(string) error) Option {
	return func(a *App) {
		a.copy = write
	}
}

// WithConstraints sets the filters used by Browse.
func WithConstraints(c picker.Constraints) Option {
	return func(a *App) {
		a.constraints = c
	}
}

func WithProgressBuffer(n int) Option {
	return func(a *App) {
		if n > 0 {
			a.progressBuffer = n
		}
	}
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

// App is the send flow controller.
type App struct {
	store           *session.Store
	engine          engine.Engine
	picker          picker.Source
	constraints     picker.Constraints
	copy            func(string) error
	progressBuffer  int
	shutdownTimeout time.Duration

	uiMessages chan tea.Msg            // App -> TUI
	appEvents  chan appevents.AppEvent // TUI -> App

	mu              sync.Mutex
	stopRelay       context.CancelFunc
	pendingShutdown chan struct{}

	tasks sync.WaitGroup
}

func NewApp(store *session.Store, eng engine.Engine, source picker.Source, opts ...Option) *App {
	a := &App{
		store:           store,
		engine:          eng,
		picker:          source,
		constraints:     picker.DefaultFileConstraints(),
		copy:            clipboard.WriteAll,
		progressBuffer:  defaultProgressBuffer,
		shutdownTimeout: defaultShutdownTimeout,
		uiMessages:      make(chan tea.Msg, 16),
		appEvents:       make(chan appevents.AppEvent),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// UIMessages returns the channel for the UI to listen on for updates.
func (a *App) UIMessages() <-chan tea.Msg {
	return a.uiMessages
}

// AppEvents returns a write-only channel for the TUI to send events to the app.
func (a *App) AppEvents() chan<- appevents.AppEvent {
	return a.appEvents
}

// Run dispatches UI events until ctx is done, then stops any share that is still up.
func (a *App) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if err := a.Close(); err != nil {
				slog.Warn("failed to stop share on exit", "error", err)
			}
			return nil
		case event := <-a.appEvents:
			a.handleEvent(ctx, event)
		}
	}
}

// Close waits for background work, then stops any share that is still up. It must not
// run concurrently with Run's event loop.
func (a *App) Close() error {
	a.tasks.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	a.cancelRelay()
	_ = a.waitPendingShutdown(stopCtx)
	return a.engine.Shutdown(stopCtx)
}

func (a *App) handleEvent(ctx context.Context, event appevents.AppEvent) {
	switch e := event.(type) {
	case sender.BrowseEvent:
		a.spawn(func() {
			if err := a.Browse(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.sendAndLogError("Could not select file", err)
			}
		})
	case sender.PathDroppedEvent:
		if err := a.HandleDrop(e.Paths); err != nil {
			a.reportPathError(err)
		}
	case sender.ClearPathEvent:
		if err := a.ClearPath(); err != nil {
			a.reportPathError(err)
		}
	case sender.ShareFileEvent:
		a.spawn(func() {
			_, err := a.ShareSelectedFile(ctx)
			switch {
			case err == nil, errors.Is(err, session.ErrStaleGeneration):
			case errors.Is(err, session.ErrBusy):
				a.sendAndLogError("A transfer is already in progress", err)
			default:
				a.sendAndLogError("Share failed", err)
			}
		})
	case sender.DisconnectEvent:
		a.Disconnect(ctx)
	case sender.CopyTicketEvent:
		if err := a.CopyTicket(); err != nil {
			a.sendAndLogError("Could not copy ticket", err)
		}
	default:
		slog.Warn("Received unhandled app event", "event", fmt.Sprintf("%T", event))
	}
}

func (a *App) spawn(task func()) {
	a.tasks.Add(1)
	go func() {
		defer a.tasks.Done()
		task()
	}()
}

// reportPathError stays quiet about a locked selection; the action is simply unavailable.
func (a *App) reportPathError(err error) {
	if errors.Is(err, session.ErrPathLocked) {
		slog.Debug("selection change ignored", "error", err)
		return
	}
	a.sendAndLogError("Could not select file", err)
}

// sendAndLogError is a helper function to both log an error and send it to the UI.
func (a *App) sendAndLogError(baseMessage string, err error) {
	slog.Error(baseMessage, "error", err)
	a.notify(appevents.ErrorMsg{Err: fmt.Errorf("%s: %w", baseMessage, err)})
}

func (a *App) notify(msg tea.Msg) {
	select {
	case a.uiMessages <- msg:
	default:
		slog.Warn("UI message dropped", "msg", fmt.Sprintf("%T", msg))
	}
}

// SetPath selects path for sharing.
func (a *App) SetPath(path string) error {
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		path = abs
	}
	return a.store.SetPath(path)
}

// ClearPath withdraws a selection that has not been shared yet. The engine is not involved.
func (a *App) ClearPath() error {
	return a.store.SetPath("")
}

// Browse asks the picker for a file. A cancelled prompt changes nothing.
func (a *App) Browse(ctx context.Context) error {
	path, ok, err := a.picker.SelectPath(ctx, a.constraints)
	if err != nil {
		return err
	}
	if !ok {
		slog.Debug("file selection cancelled")
		return nil
	}
	return a.SetPath(path)
}

// HandleDrop selects the first dropped path and ignores the rest.
func (a *App) HandleDrop(paths []string) error {
	path, ok := picker.FirstDropped(paths)
	if !ok {
		return nil
	}
	if len(paths) > 1 {
		slog.Debug("multiple paths dropped, using the first", "count", len(paths))
	}
	return a.SetPath(path)
}

// ShareSelectedFile starts sharing the selected file and returns its ticket. On failure
// the session is rolled back to idle and the selection is kept.
func (a *App) ShareSelectedFile(ctx context.Context) (string, error) {
	if a.store.Snapshot().SelectedPath == "" {
		return "", ErrNoSelection
	}
	gen, err := a.store.BeginSession(session.Sending)
	if err != nil {
		return "", err
	}
	path := a.store.Snapshot().SelectedPath
	if path == "" {
		a.store.AbortSession(gen)
		return "", ErrNoSelection
	}

	// a share must not start while the previous one is still being torn down
	if err := a.waitPendingShutdown(ctx); err != nil {
		a.store.AbortSession(gen)
		return "", err
	}
	// a disconnect that arrived while waiting already ended this session
	if a.store.Snapshot().Generation != gen {
		slog.Debug("share superseded before it started", "generation", gen)
		return "", session.ErrStaleGeneration
	}

	progress := make(chan transfer.Progress, a.progressBuffer)
	relayCtx, cancelRelay := context.WithCancel(context.Background())
	a.mu.Lock()
	if a.stopRelay != nil {
		a.stopRelay()
	}
	a.stopRelay = cancelRelay
	a.mu.Unlock()
	go session.Relay(relayCtx, a.store, gen, progress)

	ticket, err := a.engine.BeginSend(ctx, path, progress)
	if err != nil {
		a.releaseRelay(gen, cancelRelay)
		a.store.AbortSession(gen)
		return "", err
	}
	if err := a.store.SetTicket(gen, ticket); err != nil {
		// disconnected while the engine was starting; the late ticket is dropped
		slog.Info("discarding ticket of a superseded share", "generation", gen, "error", err)
		a.releaseRelay(gen, cancelRelay)
		a.stopSupersededShare(ctx)
		return "", err
	}

	slog.Info("share started", "path", path, "generation", gen)
	a.notify(sender.TicketIssuedMsg{Ticket: ticket})
	return ticket, nil
}

// releaseRelay stops the relay of a failed share unless a newer share already replaced it.
func (a *App) releaseRelay(gen uint64, cancel context.CancelFunc) {
	cancel()
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.store.Snapshot().Generation == gen {
		a.stopRelay = nil
	}
}

// stopSupersededShare tears down a share the engine installed after its session was
// disconnected. A newer share owns the engine and is left running.
func (a *App) stopSupersededShare(ctx context.Context) {
	if snap := a.store.Snapshot(); snap.Role == session.Sending {
		return
	}
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.shutdownTimeout)
	defer cancel()
	if err := a.engine.Shutdown(stopCtx); err != nil {
		slog.Warn("failed to stop superseded share", "error", err)
	}
}

func (a *App) cancelRelay() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopRelay != nil {
		a.stopRelay()
		a.stopRelay = nil
	}
}

// Disconnect is the hard stop. Local state is reset at once; the engine shutdown
// runs in the background and later shares wait for it.
func (a *App) Disconnect(ctx context.Context) {
	a.cancelRelay()

	done := make(chan struct{})
	a.mu.Lock()
	previous := a.pendingShutdown
	a.pendingShutdown = done
	a.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.shutdownTimeout)
	a.tasks.Add(1)
	go func() {
		defer a.tasks.Done()
		defer close(done)
		defer cancel()
		if previous != nil {
			select {
			case <-previous:
			case <-shutdownCtx.Done():
			}
		}
		if err := a.engine.Shutdown(shutdownCtx); err != nil {
			slog.Warn("engine shutdown failed", "error", err)
		}
	}()

	a.store.Disconnect()
	a.notify(sender.DisconnectedMsg{})
}

func (a *App) waitPendingShutdown(ctx context.Context) error {
	a.mu.Lock()
	pending := a.pendingShutdown
	a.mu.Unlock()
	if pending == nil {
		return nil
	}
	select {
	case <-pending:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CopyTicket puts the current ticket on the clipboard. The session is not touched.
func (a *App) CopyTicket() error {
	ticket := a.store.Snapshot().Ticket
	if ticket == "" {
		return ErrNoTicket
	}
	if err := a.copy(ticket); err != nil {
		return err
	}
	a.notify(sender.TicketCopiedMsg{})
	return nil
}
