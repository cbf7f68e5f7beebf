package receiver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	appevents "github.com/rescp17/ticketShare/internal/app_events"
	receiverEvent "github.com/rescp17/ticketShare/internal/app_events/receiver"
	"github.com/rescp17/ticketShare/internal/session"
	"github.com/rescp17/ticketShare/pkg/picker"
	"github.com/rescp17/ticketShare/pkg/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type receiveCall struct {
	ticket string
	dir    string
}

type fakeEngine struct {
	mu      sync.Mutex
	calls   []receiveCall
	receive func(ctx context.Context, progress chan<- transfer.Progress) error
}

func (f *fakeEngine) BeginSend(context.Context, string, chan<- transfer.Progress) (string, error) {
	return "", errors.New("not supported")
}

func (f *fakeEngine) BeginReceive(ctx context.Context, ticket, dir string, progress chan<- transfer.Progress) error {
	f.mu.Lock()
	f.calls = append(f.calls, receiveCall{ticket: ticket, dir: dir})
	f.mu.Unlock()
	if f.receive == nil {
		return nil
	}
	return f.receive(ctx, progress)
}

func (f *fakeEngine) Shutdown(context.Context) error { return nil }

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePicker struct {
	dir  string
	ok   bool
	last picker.Constraints
}

func (p *fakePicker) SelectPath(_ context.Context, c picker.Constraints) (string, bool, error) {
	p.last = c
	return p.dir, p.ok, nil
}

func newTestApp(t *testing.T, eng *fakeEngine, p *fakePicker) (*App, *session.Store) {
	t.Helper()
	store := session.NewStore(100 * time.Millisecond)
	t.Cleanup(store.Close)
	return NewApp(store, eng, p, 0), store
}

func TestReceive(t *testing.T) {
	eng := &fakeEngine{receive: func(_ context.Context, progress chan<- transfer.Progress) error {
		progress <- transfer.Progress{Done: 0, Total: 4}
		progress <- transfer.Progress{Done: 2, Total: 4}
		progress <- transfer.Progress{Done: 4, Total: 4}
		return nil
	}}
	p := &fakePicker{dir: "/home/me/downloads", ok: true}
	app, store := newTestApp(t, eng, p)

	require.NoError(t, app.Receive(context.Background(), "  xyz999\n"))
	assert.Equal(t, []receiveCall{{ticket: "xyz999", dir: "/home/me/downloads"}}, eng.calls)
	assert.Equal(t, picker.Directory, p.last.Kind)

	snap := store.Snapshot()
	assert.Equal(t, session.Receiving, snap.Role, "role is held through the grace delay")
	assert.Equal(t, transferProgress(4, 4), snap.Progress)

	require.Eventually(t, func() bool {
		return store.Snapshot().Role == session.Idle
	}, time.Second, 5*time.Millisecond)
	assert.False(t, store.Snapshot().TransferActive)

	assert.Equal(t, receiverEvent.ReceiveStartedMsg{Dir: "/home/me/downloads"}, <-app.UIMessages())
	assert.Equal(t, receiverEvent.ReceiveCompleteMsg{Dir: "/home/me/downloads"}, <-app.UIMessages())
}

func TestReceive_BackToBackDuringGrace(t *testing.T) {
	eng := &fakeEngine{receive: func(_ context.Context, progress chan<- transfer.Progress) error {
		progress <- transfer.Progress{Done: 4, Total: 4}
		return nil
	}}
	store := session.NewStore(time.Minute)
	t.Cleanup(store.Close)
	app := NewApp(store, eng, &fakePicker{dir: "/tmp", ok: true}, 0)

	require.NoError(t, app.Receive(context.Background(), "first"))
	first := store.Snapshot()
	require.Equal(t, session.Receiving, first.Role)
	require.True(t, first.Completing)

	require.NoError(t, app.Receive(context.Background(), "second"))
	assert.Equal(t, 2, eng.callCount())
	assert.Greater(t, store.Snapshot().Generation, first.Generation)
}

func transferProgress(done, total int64) session.Progress {
	return session.Progress{Done: done, Total: total}
}

func TestReceive_EmptyTicket(t *testing.T) {
	eng := &fakeEngine{}
	p := &fakePicker{dir: "/tmp", ok: true}
	app, store := newTestApp(t, eng, p)
	before := store.Snapshot()

	assert.ErrorIs(t, app.Receive(context.Background(), ""), ErrEmptyTicket)
	assert.ErrorIs(t, app.Receive(context.Background(), " \t\n"), ErrEmptyTicket)
	assert.Zero(t, eng.callCount())
	assert.Equal(t, before, store.Snapshot())
}

func TestReceive_PickerCancelled(t *testing.T) {
	eng := &fakeEngine{}
	app, store := newTestApp(t, eng, &fakePicker{})
	before := store.Snapshot()

	require.NoError(t, app.Receive(context.Background(), "xyz999"))
	assert.Zero(t, eng.callCount())
	assert.Equal(t, before, store.Snapshot())
}

func TestReceive_EngineFailure(t *testing.T) {
	expired := errors.New("ticket expired")
	eng := &fakeEngine{receive: func(context.Context, chan<- transfer.Progress) error {
		return expired
	}}
	app, store := newTestApp(t, eng, &fakePicker{dir: "/home/me/downloads", ok: true})
	before := store.Snapshot()

	err := app.Receive(context.Background(), "xyz999")
	assert.ErrorIs(t, err, expired)

	snap := store.Snapshot()
	assert.Equal(t, session.Idle, snap.Role)
	assert.False(t, snap.TransferActive)
	assert.Equal(t, before.Progress, snap.Progress)
	assert.Equal(t, before.Generation+1, snap.Generation)
}

func TestReceive_RejectedWhileSharing(t *testing.T) {
	eng := &fakeEngine{}
	app, store := newTestApp(t, eng, &fakePicker{dir: "/tmp", ok: true})
	require.NoError(t, store.SetPath("/tmp/report.pdf"))
	_, err := store.BeginSession(session.Sending)
	require.NoError(t, err)

	assert.ErrorIs(t, app.Receive(context.Background(), "xyz999"), session.ErrBusy)
	assert.Zero(t, eng.callCount())
	assert.Equal(t, session.Sending, store.Snapshot().Role)
}

func TestReceive_FinishWithoutTerminalSample(t *testing.T) {
	eng := &fakeEngine{receive: func(_ context.Context, progress chan<- transfer.Progress) error {
		progress <- transfer.Progress{Done: 1, Total: 2}
		return nil
	}}
	app, store := newTestApp(t, eng, &fakePicker{dir: "/tmp", ok: true})

	require.NoError(t, app.Receive(context.Background(), "xyz999"))
	require.Eventually(t, func() bool {
		snap := store.Snapshot()
		return snap.Role == session.Idle && !snap.TransferActive
	}, time.Second, 5*time.Millisecond)
}

func TestRun_RejectsOverlappingReceive(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	eng := &fakeEngine{receive: func(ctx context.Context, _ chan<- transfer.Progress) error {
		started <- struct{}{}
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}}
	app, _ := newTestApp(t, eng, &fakePicker{dir: "/tmp", ok: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- app.Run(ctx)
	}()

	app.AppEvents() <- receiverEvent.ReceiveEvent{Ticket: "first"}
	<-started
	assert.IsType(t, receiverEvent.ReceiveStartedMsg{}, <-app.UIMessages())

	app.AppEvents() <- receiverEvent.ReceiveEvent{Ticket: "second"}
	select {
	case msg := <-app.UIMessages():
		errMsg, ok := msg.(appevents.ErrorMsg)
		require.True(t, ok, "got %T", msg)
		assert.Contains(t, errMsg.Err.Error(), "already in progress")
	case <-time.After(time.Second):
		t.Fatal("overlapping receive was not rejected")
	}
	assert.Equal(t, 1, eng.callCount())

	close(release)
	assert.IsType(t, receiverEvent.ReceiveCompleteMsg{}, <-app.UIMessages())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
