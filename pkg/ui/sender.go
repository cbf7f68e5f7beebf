package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	senderEvent "github.com/rescp17/ticketShare/internal/app_events/sender"
	"github.com/rescp17/ticketShare/internal/session"
	"github.com/rescp17/ticketShare/internal/style"
	"github.com/rescp17/ticketShare/internal/util"
	"github.com/rescp17/ticketShare/pkg/picker"
)

const copiedDisplay = 2 * time.Second

// shareState is the part of the share panel that is not in the session store.
type shareState struct {
	pending   bool // waiting for the engine to hand out a ticket
	copied    bool
	copiedSeq int
}

type copiedExpiredMsg struct {
	seq int
}

func (m *model) updateShare(msg tea.KeyMsg) tea.Cmd {
	if msg.Paste {
		// terminals deliver dropped files as a paste
		return dispatch(m.sender, senderEvent.PathDroppedEvent{Paths: picker.ParseDropped(string(msg.Runes))})
	}

	switch {
	case key.Matches(msg, m.keys.Browse):
		if m.snap.Connected || m.snap.Role == session.Receiving {
			return nil
		}
		return dispatch(m.sender, senderEvent.BrowseEvent{})
	case key.Matches(msg, m.keys.Clear):
		return dispatch(m.sender, senderEvent.ClearPathEvent{})
	case key.Matches(msg, m.keys.Share):
		if !m.snap.CanShare() || m.share.pending {
			return nil
		}
		m.share.pending = true
		m.err = nil
		return dispatch(m.sender, senderEvent.ShareFileEvent{})
	case key.Matches(msg, m.keys.Copy):
		if m.snap.Ticket == "" {
			return nil
		}
		return dispatch(m.sender, senderEvent.CopyTicketEvent{})
	}
	return nil
}

func (m *model) handleSenderMessage(msg tea.Msg) tea.Cmd {
	switch msg.(type) {
	case senderEvent.TicketIssuedMsg:
		m.share.pending = false
		m.status = "Share is up. Send the ticket to the receiver."
	case senderEvent.DisconnectedMsg:
		m.share.pending = false
		m.share.copied = false
		m.status = "Disconnected"
	case senderEvent.TicketCopiedMsg:
		m.share.copied = true
		m.share.copiedSeq++
		seq := m.share.copiedSeq
		return tea.Tick(copiedDisplay, func(time.Time) tea.Msg {
			return copiedExpiredMsg{seq: seq}
		})
	}
	return nil
}

func (m model) shareView() string {
	var s strings.Builder
	s.WriteString(style.TitleStyle.Render("Share") + "\n")

	path := m.snap.SelectedPath
	if path == "" {
		s.WriteString("File:   " + style.DisabledStyle.Render("none selected (browse, or drop a file here)") + "\n")
	} else {
		s.WriteString("File:   " + style.HighlightFontStyle.Render(util.TruncateMiddle(path, 60)) + "\n")
	}

	locked := m.snap.Connected || m.snap.Role == session.Receiving
	s.WriteString(actions(
		action{m.keys.Browse, !locked},
		action{m.keys.Clear, path != "" && !locked},
		action{m.keys.Share, m.snap.CanShare() && !m.share.pending},
	) + "\n")

	if m.share.pending {
		s.WriteString(m.spinner.View() + " Starting share...\n")
	}

	if m.snap.Ticket != "" {
		s.WriteString("Ticket: " + util.TruncateMiddle(m.snap.Ticket, 60) + "\n")
		copyLine := actions(action{m.keys.Copy, true})
		if m.share.copied {
			copyLine += "  " + style.SuccessStyle.Render("Copied!")
		}
		s.WriteString(copyLine + "\n")
	}

	if m.snap.Role == session.Sending && m.snap.TransferActive {
		s.WriteString(renderBar(m.snap.Progress, barWidth) + "\n")
	}
	return strings.TrimRight(s.String(), "\n")
}

type action struct {
	binding key.Binding
	enabled bool
}

func actions(list ...action) string {
	parts := make([]string, 0, len(list))
	for _, a := range list {
		label := "[" + a.binding.Help().Key + "] " + a.binding.Help().Desc
		if a.enabled {
			parts = append(parts, label)
		} else {
			parts = append(parts, style.DisabledStyle.Render(label))
		}
	}
	return strings.Join(parts, "  ")
}
