package receiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/rescp17/ticketShare/internal/app_events"
	"github.com/rescp17/ticketShare/internal/app_events/receiver"
	"github.com/rescp17/ticketShare/internal/session"
	"github.com/rescp17/ticketShare/pkg/concurrency"
	"github.com/rescp17/ticketShare/pkg/engine"
	"github.com/rescp17/ticketShare/pkg/picker"
	"github.com/rescp17/ticketShare/pkg/transfer"
)

var ErrEmptyTicket = errors.New("ticket is empty")

const defaultProgressBuffer = 16

// App is the receive flow controller.
type App struct {
	store          *session.Store
	engine         engine.Engine
	picker         picker.Source
	guard          *concurrency.ConcurrencyGuard
	progressBuffer int

	uiMessages chan tea.Msg
	appEvents  chan appevents.AppEvent

	tasks sync.WaitGroup
}

// NewApp creates a receive controller. progressBuffer sizes the per-session sample channel.
func NewApp(store *session.Store, eng engine.Engine, source picker.Source, progressBuffer int) *App {
	if progressBuffer <= 0 {
		progressBuffer = defaultProgressBuffer
	}
	return &App{
		store:          store,
		engine:         eng,
		picker:         source,
		guard:          concurrency.NewConcurrencyGuard(),
		progressBuffer: progressBuffer,
		uiMessages:     make(chan tea.Msg, 16),
		appEvents:      make(chan appevents.AppEvent),
	}
}

func (a *App) UIMessages() <-chan tea.Msg {
	return a.uiMessages
}

func (a *App) AppEvents() chan<- appevents.AppEvent {
	return a.appEvents
}

// Run starts the application's main event loop. Receives run in the background,
// one at a time.
func (a *App) Run(ctx context.Context) error {
	defer a.tasks.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-a.appEvents:
			switch e := event.(type) {
			case receiver.ReceiveEvent:
				a.startReceive(ctx, e.Ticket)
			default:
				slog.Warn("Received unhandled app event", "event", fmt.Sprintf("%T", event))
			}
		}
	}
}

func (a *App) startReceive(ctx context.Context, ticket string) {
	a.tasks.Add(1)
	go func() {
		defer a.tasks.Done()
		err := a.guard.ExecuteWithContext(ctx, func(ctx context.Context) error {
			return a.Receive(ctx, ticket)
		})
		switch {
		case err == nil:
		case errors.Is(err, concurrency.ErrBusy), errors.Is(err, session.ErrBusy):
			a.sendAndLogError("A transfer is already in progress", err)
		case errors.Is(err, context.Canceled):
			slog.Info("receive cancelled")
		default:
			a.sendAndLogError("Receive failed", err)
		}
	}()
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

// Receive redeems ticketText into a directory chosen by the user and blocks until the
// download finished. The ticket is passed to the engine as is; a cancelled directory
// prompt returns nil without touching the session.
func (a *App) Receive(ctx context.Context, ticketText string) error {
	ticketText = strings.TrimSpace(ticketText)
	if ticketText == "" {
		return ErrEmptyTicket
	}
	if !a.store.Snapshot().CanReceive() {
		return session.ErrBusy
	}

	dir, ok, err := a.picker.SelectPath(ctx, picker.DirectoryConstraints())
	if err != nil {
		return err
	}
	if !ok {
		slog.Debug("destination selection cancelled")
		return nil
	}

	gen, err := a.store.BeginSession(session.Receiving)
	if err != nil {
		return err
	}
	a.notify(receiver.ReceiveStartedMsg{Dir: dir})

	progress := make(chan transfer.Progress, a.progressBuffer)
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		session.Relay(context.Background(), a.store, gen, progress)
	}()

	err = a.engine.BeginReceive(ctx, ticketText, dir, progress)
	// the engine is done with the channel once BeginReceive returns
	close(progress)
	<-relayDone

	if err != nil {
		a.store.AbortSession(gen)
		return err
	}
	a.store.FinishSession(gen)
	slog.Info("receive finished", "dir", dir, "generation", gen)
	a.notify(receiver.ReceiveCompleteMsg{Dir: dir})
	return nil
}
