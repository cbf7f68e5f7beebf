// Package ui is the interactive front end. It renders session snapshots and
// forwards user actions to the send and receive controllers.
package ui

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rescp17/ticketShare/internal/app"
	appevents "github.com/rescp17/ticketShare/internal/app_events"
	senderEvent "github.com/rescp17/ticketShare/internal/app_events/sender"
	"github.com/rescp17/ticketShare/internal/session"
	"github.com/rescp17/ticketShare/internal/style"
	"github.com/rescp17/ticketShare/pkg/pathPicker"
)

// AppController is the side of a flow controller the TUI talks to.
type AppController interface {
	UIMessages() <-chan tea.Msg
	AppEvents() chan<- appevents.AppEvent
}

type focus int

const (
	focusShare focus = iota
	focusReceive
)

type source int

const (
	fromSender source = iota
	fromReceiver
)

// appMsg tags a controller message with the controller that sent it, so the
// matching listener can be re-armed.
type appMsg struct {
	from source
	msg  tea.Msg
}

type snapshotMsg struct {
	snap session.Snapshot
}

// KeyMap holds the bindings shared by both panels.
type KeyMap struct {
	Quit        key.Binding
	SwitchFocus key.Binding
	Disconnect  key.Binding
	Browse      key.Binding
	Clear       key.Binding
	Share       key.Binding
	Copy        key.Binding
	Receive     key.Binding
}

var DefaultKeyMap = KeyMap{
	Quit:        key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	SwitchFocus: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch panel")),
	Disconnect:  key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "disconnect")),
	Browse:      key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "browse")),
	Clear:       key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear")),
	Share:       key.NewBinding(key.WithKeys("s", "enter"), key.WithHelp("s", "share")),
	Copy:        key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy ticket")),
	Receive:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "receive")),
}

type model struct {
	sender    AppController
	receiver  AppController
	prompts   *app.PromptManager
	snapshots <-chan session.Snapshot

	snap    session.Snapshot
	focus   focus
	keys    KeyMap
	spinner spinner.Model
	input   textinput.Model
	width   int
	height  int

	prompt   *pathPicker.Model
	promptID uint64

	share   shareState
	receive receiveState

	status string
	err    error
}

// InitialModel wires the TUI to both controllers. snapshots usually comes from
// session.Store.Subscribe.
func InitialModel(sender, receiver AppController, prompts *app.PromptManager, snapshots <-chan session.Snapshot) model {
	ti := textinput.New()
	ti.Placeholder = "paste a ticket"
	ti.CharLimit = 2048
	ti.Width = 60
	ti.PromptStyle = style.HighlightFontStyle

	return model{
		sender:    sender,
		receiver:  receiver,
		prompts:   prompts,
		snapshots: snapshots,
		keys:      DefaultKeyMap,
		spinner:   style.NewSpinner(),
		input:     ti,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.listenForSnapshots(),
		m.listenForAppMessages(fromSender),
		m.listenForAppMessages(fromReceiver),
		m.listenForPrompts(),
	)
}

// listenForAppMessages is a command that listens for messages from an app controller.
func (m model) listenForAppMessages(from source) tea.Cmd {
	ctrl := m.controller(from)
	if ctrl == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ctrl.UIMessages()
		if !ok {
			return nil
		}
		return appMsg{from: from, msg: msg}
	}
}

func (m model) listenForSnapshots() tea.Cmd {
	if m.snapshots == nil {
		return nil
	}
	return func() tea.Msg {
		snap, ok := <-m.snapshots
		if !ok {
			return nil
		}
		return snapshotMsg{snap: snap}
	}
}

func (m model) listenForPrompts() tea.Cmd {
	if m.prompts == nil {
		return nil
	}
	return func() tea.Msg {
		return <-m.prompts.Requests()
	}
}

func (m model) controller(from source) AppController {
	if from == fromSender {
		return m.sender
	}
	return m.receiver
}

// dispatch hands an event to a controller without blocking the update loop.
func dispatch(ctrl AppController, event appevents.AppEvent) tea.Cmd {
	if ctrl == nil {
		return nil
	}
	return func() tea.Msg {
		ctrl.AppEvents() <- event
		return nil
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if m.prompt != nil {
			p, cmd := m.prompt.Update(msg)
			m.prompt = &p
			return m, cmd
		}
		return m, nil

	case snapshotMsg:
		m.snap = msg.snap
		return m, m.listenForSnapshots()

	case appMsg:
		cmd := m.handleAppMessage(msg)
		return m, tea.Batch(cmd, m.listenForAppMessages(msg.from))

	case app.PromptRequestMsg:
		m.openPrompt(msg)
		return m, tea.Batch(m.prompt.Init(), m.listenForPrompts())

	case pathPicker.SelectedMsg:
		m.closePrompt(msg.Path, true)
		return m, nil

	case pathPicker.CancelledMsg:
		m.closePrompt("", false)
		return m, nil

	case copiedExpiredMsg:
		if msg.seq == m.share.copiedSeq {
			m.share.copied = false
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		if isIndicatorClick(msg) {
			cmd := m.disconnect()
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		if m.prompt != nil {
			p, cmd := m.prompt.Update(msg)
			m.prompt = &p
			return m, cmd
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *model) handleAppMessage(msg appMsg) tea.Cmd {
	switch inner := msg.msg.(type) {
	case appevents.ErrorMsg:
		m.err = inner.Err
		m.status = ""
		if msg.from == fromSender {
			m.share.pending = false
		} else {
			m.receive.pending = false
		}
		return nil
	case appevents.StatusMsg:
		m.status = inner.Text
		return nil
	}
	if msg.from == fromSender {
		return m.handleSenderMessage(msg.msg)
	}
	return m.handleReceiverMessage(msg.msg)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Disconnect):
		cmd := m.disconnect()
		return m, cmd
	case key.Matches(msg, m.keys.SwitchFocus):
		if m.focus == focusShare {
			m.focus = focusReceive
			cmd := m.input.Focus()
			return m, cmd
		}
		m.focus = focusShare
		m.input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	if m.focus == focusShare {
		cmd = m.updateShare(msg)
	} else {
		cmd = m.updateReceive(msg)
	}
	return m, cmd
}

// disconnect always reaches the controller; a disconnect while idle still drops the selection.
func (m *model) disconnect() tea.Cmd {
	m.err = nil
	m.share.pending = false
	return dispatch(m.sender, senderEvent.DisconnectEvent{})
}

func (m *model) openPrompt(req app.PromptRequestMsg) {
	start, err := os.Getwd()
	if err != nil {
		slog.Warn("Could not get working directory", "error", err)
	}
	p := pathPicker.New(req.Constraints, start)
	p, _ = p.Update(tea.WindowSizeMsg{Width: m.width, Height: m.height})
	m.prompt = &p
	m.promptID = req.ID
}

func (m *model) closePrompt(path string, ok bool) {
	if m.prompt == nil {
		return
	}
	if !m.prompts.Resolve(m.promptID, path, ok) {
		slog.Debug("prompt answered after it was withdrawn", "id", m.promptID)
	}
	m.prompt = nil
}

func (m model) View() string {
	if m.prompt != nil {
		return m.prompt.View()
	}

	var s strings.Builder
	s.WriteString(m.headerView() + "\n\n")
	s.WriteString(m.panel(focusShare, m.shareView()) + "\n")
	s.WriteString(m.panel(focusReceive, m.receiveView()) + "\n")

	switch {
	case m.err != nil:
		s.WriteString(style.ErrorStyle.Render("Error: "+m.err.Error()) + "\n")
	case m.status != "":
		s.WriteString(m.status + "\n")
	}
	s.WriteString(style.HelpStyle.Render(fmt.Sprintf("%s %s • %s %s • %s %s",
		m.keys.SwitchFocus.Help().Key, m.keys.SwitchFocus.Help().Desc,
		m.keys.Disconnect.Help().Key, m.keys.Disconnect.Help().Desc,
		m.keys.Quit.Help().Key, m.keys.Quit.Help().Desc)))
	return s.String()
}

// headerView starts with the liveness indicator so that a click on the first
// cells of the screen hits it.
func (m model) headerView() string {
	indicator := style.DisconnectedStyle.String()
	if m.snap.Liveness() == session.Connected {
		indicator = style.ConnectedStyle.String()
	}
	return fmt.Sprintf("%s %s  %s", indicator, m.snap.Liveness(), style.TitleStyle.Render("ticketshare"))
}

func (m model) panel(f focus, content string) string {
	width := max(m.width-2, 40)
	if m.focus == f {
		return style.FocusedStyle.Width(width).Render(content)
	}
	return style.BaseStyle.Width(width).Render(content)
}

// indicatorWidth covers the dot and the word next to it.
const indicatorWidth = 14

func isIndicatorClick(msg tea.MouseMsg) bool {
	return msg.Action == tea.MouseActionPress &&
		msg.Button == tea.MouseButtonLeft &&
		msg.Y == 0 && msg.X < indicatorWidth
}
