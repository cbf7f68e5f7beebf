package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rescp17/ticketShare/internal/app"
	appevents "github.com/rescp17/ticketShare/internal/app_events"
	receiverEvent "github.com/rescp17/ticketShare/internal/app_events/receiver"
	senderEvent "github.com/rescp17/ticketShare/internal/app_events/sender"
	"github.com/rescp17/ticketShare/internal/session"
	"github.com/rescp17/ticketShare/pkg/pathPicker"
	"github.com/rescp17/ticketShare/pkg/picker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	ui     chan tea.Msg
	events chan appevents.AppEvent
}

func newFakeController() *fakeController {
	return &fakeController{
		ui:     make(chan tea.Msg, 4),
		events: make(chan appevents.AppEvent, 4),
	}
}

func (f *fakeController) UIMessages() <-chan tea.Msg { return f.ui }
func (f *fakeController) AppEvents() chan<- appevents.AppEvent { return f.events }

func newTestModel(t *testing.T) (model, *fakeController, *fakeController) {
	t.Helper()
	snd, rcv := newFakeController(), newFakeController()
	return InitialModel(snd, rcv, app.NewPromptManager(), nil), snd, rcv
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	updated, ok := next.(model)
	require.True(t, ok)
	return updated, cmd
}

func withSnapshot(t *testing.T, m model, snap session.Snapshot) model {
	t.Helper()
	m, _ = update(t, m, snapshotMsg{snap: snap})
	return m
}

// runCmd executes a dispatch command and returns the event it delivered.
func runCmd(t *testing.T, cmd tea.Cmd, ctrl *fakeController) appevents.AppEvent {
	t.Helper()
	require.NotNil(t, cmd)
	cmd()
	select {
	case ev := <-ctrl.events:
		return ev
	default:
		t.Fatal("no event was dispatched")
		return nil
	}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		name     string
		progress session.Progress
		filled   int
		text     string
	}{
		{"default", session.Progress{Done: 0, Total: session.DefaultTotal}, 0, "0.0%"},
		{"half", session.Progress{Done: 512, Total: 1024}, 5, "50.0%"},
		{"complete", session.Progress{Done: 1024, Total: 1024}, 10, "100.0%"},
		{"overshoot is capped", session.Progress{Done: 4096, Total: 1024}, 10, "100.0%"},
		{"zero total", session.Progress{Done: 5, Total: 0}, 0, "0.0%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := renderBar(tt.progress, 10)
			assert.Equal(t, tt.filled, strings.Count(bar, "█"))
			assert.Equal(t, 10-tt.filled, strings.Count(bar, "░"))
			assert.Contains(t, bar, tt.text)
		})
	}
}

func TestView_Liveness(t *testing.T) {
	m, _, _ := newTestModel(t)
	assert.Contains(t, m.View(), "Disconnected")

	m = withSnapshot(t, m, session.Snapshot{SelectedPath: "/tmp/report.pdf", Role: session.Sending, Connected: true, Ticket: "ts1abc"})
	view := m.View()
	assert.NotContains(t, view, "Disconnected")
	assert.Contains(t, view, "ts1abc")
	assert.Contains(t, view, "report.pdf")
}

func TestShareKeys(t *testing.T) {
	m, snd, _ := newTestModel(t)

	_, cmd := update(t, m, keyRunes("s"))
	assert.Nil(t, cmd, "nothing to share without a selection")

	m = withSnapshot(t, m, session.Snapshot{SelectedPath: "/tmp/report.pdf"})
	m, cmd = update(t, m, keyRunes("s"))
	assert.IsType(t, senderEvent.ShareFileEvent{}, runCmd(t, cmd, snd))
	assert.True(t, m.share.pending)

	_, cmd = update(t, m, keyRunes("s"))
	assert.Nil(t, cmd, "share is not sent twice")

	_, cmd = update(t, m, keyRunes("o"))
	assert.IsType(t, senderEvent.BrowseEvent{}, runCmd(t, cmd, snd))

	_, cmd = update(t, m, keyRunes("x"))
	assert.IsType(t, senderEvent.ClearPathEvent{}, runCmd(t, cmd, snd))
}

func TestDrop(t *testing.T) {
	m, snd, _ := newTestModel(t)
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("'/tmp/a b.txt' /tmp/c.txt"), Paste: true})
	ev := runCmd(t, cmd, snd)
	assert.Equal(t, senderEvent.PathDroppedEvent{Paths: []string{"/tmp/a b.txt", "/tmp/c.txt"}}, ev)
}

func TestDisconnect(t *testing.T) {
	m, snd, _ := newTestModel(t)

	m = withSnapshot(t, m, session.Snapshot{SelectedPath: "/tmp/report.pdf"})
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	assert.Equal(t, senderEvent.DisconnectEvent{}, runCmd(t, cmd, snd), "a disconnect while idle still clears the selection")
	_, cmd = update(t, m, tea.MouseMsg{X: 1, Y: 0, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	assert.Equal(t, senderEvent.DisconnectEvent{}, runCmd(t, cmd, snd))

	m = withSnapshot(t, m, session.Snapshot{SelectedPath: "/tmp/a", Role: session.Sending, Connected: true})
	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	assert.IsType(t, senderEvent.DisconnectEvent{}, runCmd(t, cmd, snd))

	_, cmd = update(t, m, tea.MouseMsg{X: 1, Y: 0, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	assert.IsType(t, senderEvent.DisconnectEvent{}, runCmd(t, cmd, snd))
}

func TestCopyTicket(t *testing.T) {
	m, snd, _ := newTestModel(t)
	m = withSnapshot(t, m, session.Snapshot{SelectedPath: "/tmp/a", Role: session.Sending, Connected: true, Ticket: "ts1abc"})

	_, cmd := update(t, m, keyRunes("c"))
	assert.IsType(t, senderEvent.CopyTicketEvent{}, runCmd(t, cmd, snd))

	m, cmd = update(t, m, appMsg{from: fromSender, msg: senderEvent.TicketCopiedMsg{}})
	require.NotNil(t, cmd)
	assert.True(t, m.share.copied)
	assert.Contains(t, m.View(), "Copied!")

	m, _ = update(t, m, copiedExpiredMsg{seq: m.share.copiedSeq - 1})
	assert.True(t, m.share.copied, "an older timer does not hide a newer confirmation")
	m, _ = update(t, m, copiedExpiredMsg{seq: m.share.copiedSeq})
	assert.False(t, m.share.copied)
}

func TestReceiveInput(t *testing.T) {
	m, _, rcv := newTestModel(t)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, focusReceive, m.focus)
	m, _ = update(t, m, keyRunes("ts1xyz"))
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, receiverEvent.ReceiveEvent{Ticket: "ts1xyz"}, runCmd(t, cmd, rcv))

	m, _ = update(t, m, appMsg{from: fromReceiver, msg: receiverEvent.ReceiveStartedMsg{Dir: "/tmp/in"}})
	assert.True(t, m.receive.pending)
	assert.Contains(t, m.View(), "Receiving into")

	m, _ = update(t, m, appMsg{from: fromReceiver, msg: receiverEvent.ReceiveCompleteMsg{Dir: "/tmp/in"}})
	assert.False(t, m.receive.pending)
	assert.Empty(t, m.input.Value())
	assert.Contains(t, m.View(), "Saved to /tmp/in")
}

func TestErrorMessage(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = withSnapshot(t, m, session.Snapshot{SelectedPath: "/tmp/a"})
	m, _ = update(t, m, keyRunes("s"))
	require.True(t, m.share.pending)

	m, _ = update(t, m, appMsg{from: fromSender, msg: appevents.ErrorMsg{Err: errors.New("Share failed: no route")}})
	assert.False(t, m.share.pending)
	assert.Contains(t, m.View(), "Share failed: no route")
}

func TestProgressShownForActiveRole(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = withSnapshot(t, m, session.Snapshot{
		SelectedPath:   "/tmp/a",
		Role:           session.Sending,
		Connected:      true,
		Progress:       session.Progress{Done: 50, Total: 200},
		TransferActive: true,
	})
	assert.Contains(t, m.shareView(), "25.0%")
	assert.NotContains(t, m.receiveView(), "25.0%")
}

func TestPromptRoundTrip(t *testing.T) {
	m, _, _ := newTestModel(t)

	type answer struct {
		path string
		ok   bool
	}
	answers := make(chan answer, 1)
	prompts := m.prompts
	go func() {
		path, ok, _ := prompts.SelectPath(context.Background(), picker.DirectoryConstraints())
		answers <- answer{path, ok}
	}()

	var req tea.Msg
	select {
	case req = <-prompts.Requests():
	case <-time.After(time.Second):
		t.Fatal("no prompt request")
	}
	m, _ = update(t, m, req)
	require.NotNil(t, m.prompt)
	assert.Contains(t, m.View(), "Select a destination folder")

	m, _ = update(t, m, pathPicker.SelectedMsg{Path: "/tmp/in"})
	assert.Nil(t, m.prompt)
	select {
	case a := <-answers:
		assert.Equal(t, answer{"/tmp/in", true}, a)
	case <-time.After(time.Second):
		t.Fatal("prompt was not resolved")
	}
}
