package app

import (
	"context"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rescp17/ticketShare/pkg/picker"
)

// PromptRequestMsg asks the TUI to show a path prompt. The answer goes back through
// PromptManager.Resolve with the same ID.
type PromptRequestMsg struct {
	ID          uint64
	Constraints picker.Constraints
}

type promptResult struct {
	path string
	ok   bool
}

type prompt struct {
	id     uint64
	result chan promptResult
}

// PromptManager lets the flow controllers ask the TUI for a path. It implements
// picker.Source. Only one prompt is outstanding; a newer prompt cancels the older one.
type PromptManager struct {
	mu       sync.Mutex
	nextID   uint64
	pending  *prompt
	requests chan tea.Msg
}

func NewPromptManager() *PromptManager {
	return &PromptManager{
		requests: make(chan tea.Msg, 1),
	}
}

// Requests is read by the TUI.
func (m *PromptManager) Requests() <-chan tea.Msg {
	return m.requests
}

var _ picker.Source = (*PromptManager)(nil)

func (m *PromptManager) SelectPath(ctx context.Context, c picker.Constraints) (string, bool, error) {
	m.mu.Lock()
	if m.pending != nil {
		slog.Debug("replacing outstanding prompt", "id", m.pending.id)
		m.pending.result <- promptResult{}
	}
	m.nextID++
	p := &prompt{id: m.nextID, result: make(chan promptResult, 1)}
	m.pending = p
	m.mu.Unlock()

	select {
	case m.requests <- PromptRequestMsg{ID: p.id, Constraints: c}:
	case r := <-p.result:
		return r.path, r.ok, nil
	case <-ctx.Done():
		m.forget(p)
		return "", false, ctx.Err()
	}

	select {
	case r := <-p.result:
		return r.path, r.ok, nil
	case <-ctx.Done():
		m.forget(p)
		return "", false, ctx.Err()
	}
}

// Resolve answers prompt id. It reports false when the prompt is no longer outstanding.
func (m *PromptManager) Resolve(id uint64, path string, ok bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil || m.pending.id != id {
		return false
	}
	m.pending.result <- promptResult{path: path, ok: ok && path != ""}
	m.pending = nil
	return true
}

func (m *PromptManager) forget(p *prompt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == p {
		m.pending = nil
	}
}
