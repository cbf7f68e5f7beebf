// Package pathPicker is a terminal browser that returns a single file or directory.
package pathPicker

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rescp17/ticketShare/internal/style"
	"github.com/rescp17/ticketShare/internal/util"
	"github.com/rescp17/ticketShare/pkg/picker"
)

type mode int

const (
	modeBrowse mode = iota
	modeInput
)

// SelectedMsg carries the chosen absolute path.
type SelectedMsg struct {
	Path string
}

// CancelledMsg is sent when the user leaves the picker without choosing.
type CancelledMsg struct{}

// --- Key Map ---
type KeyMap struct {
	Up          key.Binding
	Down        key.Binding
	Left        key.Binding // Page up
	Right       key.Binding // Page down
	Open        key.Binding
	Parent      key.Binding
	Select      key.Binding
	SelectHere  key.Binding
	ToggleInput key.Binding
	Cancel      key.Binding
}

var DefaultKeyMap = KeyMap{
	Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
	Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
	Left:        key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "page up")),
	Right:       key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "page down")),
	Open:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
	Parent:      key.NewBinding(key.WithKeys("backspace"), key.WithHelp("backspace", "parent")),
	Select:      key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select")),
	SelectHere:  key.NewBinding(key.WithKeys("."), key.WithHelp(".", "select this folder")),
	ToggleInput: key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "input path")),
	Cancel:      key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "cancel")),
}

type entry struct {
	name     string
	isDir    bool
	size     int64
	modTime  time.Time
	mime     string
	accepted bool
}

// --- Model ---
type Model struct {
	constraints picker.Constraints
	path        string
	items       []entry
	cursor      int
	offset      int // For scrolling
	height      int // For viewport height
	keys        KeyMap
	mode        mode
	input       textinput.Model
	err         error
}

// New opens the picker in start. If start cannot be read the picker begins in input mode.
func New(c picker.Constraints, start string) Model {
	ti := textinput.New()
	ti.Placeholder = "/path/to/folder"
	ti.CharLimit = 512
	ti.Width = 80
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))

	m := Model{
		constraints: c,
		keys:        DefaultKeyMap,
		input:       ti,
	}
	if err := m.SetPath(start); err != nil {
		m.err = err
		m.mode = modeInput
		m.input.Focus()
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Path is the directory being browsed.
func (m Model) Path() string {
	return m.path
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Cancel) {
			if m.mode == modeInput && m.path != "" {
				// back to the loaded directory
				m.mode = modeBrowse
				m.input.Blur()
				m.input.Reset()
				m.err = nil
				return m, nil
			}
			return m, func() tea.Msg { return CancelledMsg{} }
		}

		switch m.mode {
		case modeBrowse:
			return m.updateBrowse(msg)
		case modeInput:
			return m.updateInput(msg)
		}
	}
	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleInput):
		m.mode = modeInput
		m.input.Focus()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
			if m.cursor < m.offset {
				m.offset--
			}
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
			if m.cursor >= m.offset+m.visibleItems() {
				m.offset++
			}
		}

	case key.Matches(msg, m.keys.Right): // Page down
		if len(m.items) == 0 {
			break
		}
		visible := m.visibleItems()
		m.cursor = min(m.cursor+visible, len(m.items)-1)
		m.offset = max(0, min(m.offset+visible, len(m.items)-visible))
		if m.cursor >= m.offset+visible {
			m.offset = m.cursor - visible + 1
		}

	case key.Matches(msg, m.keys.Left): // Page up
		visible := m.visibleItems()
		m.cursor = max(m.cursor-visible, 0)
		m.offset = max(m.offset-visible, 0)
		if m.cursor < m.offset {
			m.offset = m.cursor
		}

	case key.Matches(msg, m.keys.Parent):
		parent := filepath.Dir(m.path)
		if parent != m.path {
			m.setPathOrError(parent)
		}

	case key.Matches(msg, m.keys.Open):
		item, ok := m.current()
		if !ok {
			return m, nil
		}
		if item.isDir {
			m.setPathOrError(filepath.Join(m.path, item.name))
			return m, nil
		}
		return m.choose(item)

	case key.Matches(msg, m.keys.Select):
		if item, ok := m.current(); ok {
			return m.choose(item)
		}

	case key.Matches(msg, m.keys.SelectHere):
		if m.constraints.Kind == picker.Directory {
			return m, selected(m.path)
		}
	}
	return m, nil
}

func (m Model) choose(item entry) (Model, tea.Cmd) {
	if !item.accepted {
		m.err = fmt.Errorf("%s is not an accepted %s", item.name, m.constraints.Kind)
		return m, nil
	}
	m.err = nil
	return m, selected(filepath.Join(m.path, item.name))
}

func selected(path string) tea.Cmd {
	return func() tea.Msg { return SelectedMsg{Path: path} }
}

func (m Model) updateInput(msg tea.KeyMsg) (Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Open) {
		path := util.ExpandHome(strings.TrimSpace(m.input.Value()))
		if !filepath.IsAbs(path) && m.path != "" {
			path = filepath.Join(m.path, path)
		}
		if err := m.SetPath(path); err != nil {
			m.err = err
			return m, nil
		}
		m.input.Blur()
		m.input.Reset()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) setPathOrError(path string) {
	if err := m.SetPath(path); err != nil {
		m.err = err
	}
}

func (m Model) current() (entry, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return entry{}, false
	}
	return m.items[m.cursor], true
}

// SetPath loads the directory at path and switches to browsing it.
func (m *Model) SetPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	exists, isDir, err := util.CheckDirectory(absPath)
	if err != nil {
		return fmt.Errorf("could not stat %s: %w", absPath, err)
	}
	if !exists {
		return fmt.Errorf("path does not exist: %s", absPath)
	}
	if !isDir {
		return fmt.Errorf("path is not a directory: %s", absPath)
	}
	items, err := m.readDir(absPath)
	if err != nil {
		return fmt.Errorf("could not read directory: %w", err)
	}

	m.path = absPath
	m.items = items
	m.cursor = 0
	m.offset = 0
	m.err = nil
	m.mode = modeBrowse
	return nil
}

// readDir lists dir with folders first.
func (m *Model) readDir(dir string) ([]entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	items := make([]entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		full := filepath.Join(dir, de.Name())
		e := entry{name: de.Name(), isDir: de.IsDir()}
		if info, err := de.Info(); err == nil {
			e.size = info.Size()
			e.modTime = info.ModTime()
		}
		if !e.isDir {
			if mime, err := mimetype.DetectFile(full); err == nil {
				e.mime = mime.String()
			}
		}
		if e.isDir == (m.constraints.Kind == picker.Directory) {
			e.accepted = m.constraints.Accepts(full)
		}
		items = append(items, e)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].isDir != items[j].isDir {
			return items[i].isDir
		}
		return items[i].name < items[j].name
	})
	return items, nil
}

func (m Model) View() string {
	var s strings.Builder

	title := m.constraints.Title
	if title == "" {
		title = "Select a " + m.constraints.Kind.String()
	}
	s.WriteString(style.TitleStyle.Render(title) + "\n")
	s.WriteString(m.helpView() + "\n\n")

	if m.mode == modeInput {
		s.WriteString(m.input.View() + "\n")
	}
	if m.err != nil {
		s.WriteString(style.ErrorStyle.Render(m.err.Error()) + "\n")
	}
	if m.path == "" {
		return s.String()
	}
	s.WriteString(fmt.Sprintf("Browsing: %s\n\n", m.path))

	nameWidth := 36
	timeWidth := 20
	sizeWidth := 12
	typeWidth := 30

	s.WriteString(
		style.HeaderStyle.Render(util.PadRight("", 2)) +
			style.HeaderStyle.Render(util.PadRight("Name", nameWidth)) + " " +
			style.HeaderStyle.Render(util.PadRight("Last Modified", timeWidth)) + " " +
			style.HeaderStyle.Render(util.PadRight("Size", sizeWidth)) + " " +
			style.HeaderStyle.Render(util.PadRight("Type", typeWidth)) + "\n",
	)

	if len(m.items) == 0 {
		s.WriteString(style.DisabledStyle.Render("  (empty)") + "\n")
		return s.String()
	}

	visible := m.visibleItems()
	start := max(m.offset, 0)
	end := min(start+visible, len(m.items))
	for i := start; i < end; i++ {
		item := m.items[i]
		if i == m.cursor {
			s.WriteString(style.CursorStyle.String())
		} else {
			s.WriteString(style.NoCursorStyle.String())
		}

		name := item.name
		size := util.FormatSize(item.size)
		if item.isDir {
			name += "/"
			size = "<DIR>"
		}
		row := util.PadRight(name, nameWidth) + " " +
			util.PadRight(item.modTime.Format("2006-01-02 15:04:05"), timeWidth) + " " +
			util.PadRight(size, sizeWidth) + " " +
			util.PadRight(item.mime, typeWidth)

		switch {
		case item.isDir && !item.accepted:
			// folders can always be opened
			s.WriteString(style.DirStyle.Render(row))
		case !item.accepted:
			s.WriteString(style.DisabledStyle.Render(row))
		case item.isDir:
			s.WriteString(style.DirStyle.Bold(true).Render(row))
		default:
			s.WriteString(style.FileStyle.Render(row))
		}
		s.WriteString("\n")
	}

	if len(m.items) > visible {
		s.WriteString(fmt.Sprintf("\n... %d/%d ...\n", m.cursor+1, len(m.items)))
	}
	return s.String()
}

func (m Model) helpView() string {
	bindings := []key.Binding{m.keys.Open, m.keys.Parent, m.keys.Select}
	if m.constraints.Kind == picker.Directory {
		bindings = append(bindings, m.keys.SelectHere)
	}
	bindings = append(bindings, m.keys.ToggleInput, m.keys.Cancel)

	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		parts = append(parts, fmt.Sprintf("'%s' %s", b.Help().Key, b.Help().Desc))
	}
	return style.HelpStyle.Render(strings.Join(parts, " • "))
}

func (m Model) visibleItems() int {
	headerHeight := 7
	if m.err != nil {
		headerHeight++
	}
	if m.mode == modeInput {
		headerHeight++
	}
	visible := m.height - headerHeight
	if visible < 1 {
		visible = 10
	}
	return visible
}
