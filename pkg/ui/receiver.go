package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	receiverEvent "github.com/rescp17/ticketShare/internal/app_events/receiver"
	"github.com/rescp17/ticketShare/internal/session"
	"github.com/rescp17/ticketShare/internal/style"
)

type receiveState struct {
	pending bool
	dir     string
}

func (m *model) updateReceive(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Receive) && !msg.Paste {
		m.err = nil
		return dispatch(m.receiver, receiverEvent.ReceiveEvent{Ticket: m.input.Value()})
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *model) handleReceiverMessage(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case receiverEvent.ReceiveStartedMsg:
		m.receive.pending = true
		m.receive.dir = msg.Dir
		m.status = ""
	case receiverEvent.ReceiveCompleteMsg:
		m.receive.pending = false
		m.input.Reset()
		m.status = style.SuccessStyle.Render("Saved to " + msg.Dir)
	}
	return nil
}

func (m model) receiveView() string {
	var s strings.Builder
	s.WriteString(style.TitleStyle.Render("Receive") + "\n")
	s.WriteString(m.input.View() + "\n")
	s.WriteString(actions(action{m.keys.Receive, m.snap.CanReceive() && !m.receive.pending}) + "\n")

	if m.receive.pending {
		s.WriteString(m.spinner.View() + " Receiving into " + style.HighlightFontStyle.Render(m.receive.dir) + "\n")
	}
	if m.snap.Role == session.Receiving && m.snap.TransferActive {
		s.WriteString(renderBar(m.snap.Progress, barWidth) + "\n")
	}
	return strings.TrimRight(s.String(), "\n")
}
