package ui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chatlens/internal/config"
	"chatlens/internal/conv"
	"chatlens/internal/export"
	"chatlens/internal/store"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const backendTimeout = 10 * time.Second

type Model struct {
	cfg      config.AppConfig
	store    *store.Store
	exporter *export.Exporter

	list     list.Model
	viewport viewport.Model
	help     help.Model
	spinner  spinner.Model
	filter   textinput.Model
	rename   textinput.Model
	keys     keyMap

	width  int
	height int

	loading     bool
	filterMode  bool
	filterQuery string
	renaming    bool
	focusOnList bool

	conversations []conv.Conversation
	selectedID    string
	thread        []conv.Message

	// threadGen tags thread fetches and their tick chain with the selection
	// they were issued for. Bumping it on selection change cancels the old
	// chain and makes late responses for a superseded session discardable.
	threadGen int

	rendering   bool
	renderNonce int

	status string
	err    error
}

type indexTickMsg struct{}
type threadTickMsg struct{ gen int }
type conversationsMsg struct {
	conversations []conv.Conversation
	err           error
}
type threadMsg struct {
	sessionID string
	gen       int
	msgs      []conv.Message
	err       error
}
type renameMsg struct {
	sessionID string
	name      string
	err       error
}
type exportMsg struct {
	path string
	err  error
}
type copyMsg struct{ err error }
type renderMsg struct {
	sessionID string
	rendered  string
	nonce     int
}

type convItem struct {
	c conv.Conversation
}

func (i convItem) Title() string { return i.c.DisplayName }

func (i convItem) Description() string {
	return conv.FormatTime(i.c.CreatedAt) + " | " + shorten(i.c.SessionID, 24)
}

func (i convItem) FilterValue() string {
	return strings.ToLower(i.c.DisplayName + " " + i.c.SessionID)
}

func NewModel(cfg config.AppConfig, st *store.Store, exp *export.Exporter) Model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 40, 20)
	l.Title = "Conversations"
	l.SetShowFilter(false)
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()

	vp := viewport.New(60, 20)
	vp.SetContent("Loading conversations...")

	h := help.New()
	h.ShowAll = false

	sp := spinner.New()
	sp.Spinner = spinner.Points

	fi := textinput.New()
	fi.Placeholder = "Filter conversations..."
	fi.Prompt = "/ "
	fi.CharLimit = 128

	ri := textinput.New()
	ri.Placeholder = "New name"
	ri.Prompt = "rename: "
	ri.CharLimit = 120

	return Model{
		cfg:      cfg,
		store:    st,
		exporter: exp,
		list:     l,
		viewport: vp,
		help:     h,
		spinner:  sp,
		filter:   fi,
		rename:   ri,
		keys:     defaultKeys(),

		loading:     true,
		focusOnList: true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.conversationsCmd(), indexTickCmd())
}

func indexTickCmd() tea.Cmd {
	return tea.Tick(config.IndexRefreshInterval, func(time.Time) tea.Msg {
		return indexTickMsg{}
	})
}

func threadTickCmd(gen int) tea.Cmd {
	return tea.Tick(config.ThreadRefreshInterval, func(time.Time) tea.Msg {
		return threadTickMsg{gen: gen}
	})
}

func (m Model) conversationsCmd() tea.Cmd {
	st := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
		defer cancel()
		rows, err := st.ListRows(ctx)
		if err != nil {
			return conversationsMsg{err: err}
		}
		return conversationsMsg{conversations: conv.BuildIndex(rows)}
	}
}

func (m Model) threadCmd(sessionID string, gen int) tea.Cmd {
	if sessionID == "" {
		return nil
	}
	st := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
		defer cancel()
		rows, err := st.SessionRows(ctx, sessionID)
		if err != nil {
			return threadMsg{sessionID: sessionID, gen: gen, err: err}
		}
		return threadMsg{sessionID: sessionID, gen: gen, msgs: conv.BuildThread(rows)}
	}
}

func (m Model) renameCmd(sessionID, name string) tea.Cmd {
	st := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
		defer cancel()
		err := st.RenameSession(ctx, sessionID, name)
		return renameMsg{sessionID: sessionID, name: name, err: err}
	}
}

func (m Model) exportCmd() tea.Cmd {
	c, ok := m.selectedConversation()
	if !ok {
		return nil
	}
	msgs := m.thread
	exp := m.exporter
	return func() tea.Msg {
		path, err := exp.Export(c, msgs, time.Now())
		return exportMsg{path: path, err: err}
	}
}

func (m Model) copyCmd() tea.Cmd {
	c, ok := m.selectedConversation()
	if !ok {
		return nil
	}
	md := export.BuildConversationMarkdown(c, m.thread, time.Now().UTC())
	return func() tea.Msg {
		return copyMsg{err: clipboard.WriteAll(md)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		cmds = append(cmds, m.renderThreadCmd())

	case indexTickMsg:
		cmds = append(cmds, m.conversationsCmd(), indexTickCmd())

	case threadTickMsg:
		if msg.gen != m.threadGen || m.selectedID == "" {
			break
		}
		cmds = append(cmds, m.threadCmd(m.selectedID, m.threadGen), threadTickCmd(m.threadGen))

	case conversationsMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			m.status = "Conversation refresh failed"
			slog.Error("conversation refresh failed", "err", msg.err)
			break
		}
		m.err = nil
		if changed := m.applyConversations(msg.conversations); changed {
			cmds = append(cmds, m.selectionChanged()...)
		}

	case threadMsg:
		// A response for a superseded selection must never overwrite the
		// current thread.
		if msg.gen != m.threadGen || msg.sessionID != m.selectedID {
			break
		}
		if msg.err != nil {
			m.err = msg.err
			m.status = "Thread load failed"
			slog.Error("thread load failed", "session", msg.sessionID, "err", msg.err)
			break
		}
		m.err = nil
		if conv.ThreadsEqual(m.thread, msg.msgs) {
			break
		}
		m.thread = msg.msgs
		cmds = append(cmds, m.renderThreadCmd())

	case renameMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = "Rename failed: " + msg.err.Error()
			slog.Error("rename failed", "session", msg.sessionID, "err", msg.err)
			break
		}
		m.err = nil
		m.applyRename(msg.sessionID, msg.name)
		m.status = "Renamed to " + msg.name

	case exportMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = "Export failed: " + msg.err.Error()
		} else {
			m.status = "Exported: " + msg.path
		}

	case copyMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = "Could not copy: " + msg.err.Error()
		} else {
			m.status = "Copied conversation to clipboard"
		}

	case renderMsg:
		if msg.nonce != m.renderNonce {
			break
		}
		m.rendering = false
		if msg.sessionID == m.selectedID {
			m.viewport.SetContent(msg.rendered)
			m.viewport.GotoBottom()
		}

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.loading {
		var spin tea.Cmd
		m.spinner, spin = m.spinner.Update(msg)
		cmds = append(cmds, spin)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if m.renaming {
		switch msg.String() {
		case "esc":
			m.cancelRename()
			return m, nil
		case "enter":
			return m.submitRename()
		}
		var cmd tea.Cmd
		m.rename, cmd = m.rename.Update(msg)
		return m, cmd
	}

	if m.filterMode {
		switch msg.String() {
		case "esc":
			m.filterMode = false
			m.filterQuery = ""
			m.filter.SetValue("")
			m.filter.Blur()
			if changed := m.applyConversations(m.conversations); changed {
				cmds = append(cmds, m.selectionChanged()...)
			}
			return m, tea.Batch(cmds...)
		case "enter":
			m.filterMode = false
			m.filter.Blur()
			return m, nil
		}
		before := strings.TrimSpace(m.filter.Value())
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		cmds = append(cmds, cmd)
		after := strings.TrimSpace(m.filter.Value())
		if after != before {
			m.filterQuery = after
			if changed := m.applyConversations(m.conversations); changed {
				cmds = append(cmds, m.selectionChanged()...)
			}
		}
		return m, tea.Batch(cmds...)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Filter):
		m.filterMode = true
		m.filter.SetValue(m.filterQuery)
		m.filter.CursorEnd()
		m.filter.Focus()
		return m, nil
	case key.Matches(msg, m.keys.Rename):
		m.startRename()
		return m, nil
	case key.Matches(msg, m.keys.Tab):
		m.focusOnList = !m.focusOnList
		return m, nil
	case key.Matches(msg, m.keys.FocusLeft):
		m.focusOnList = true
		return m, nil
	case key.Matches(msg, m.keys.FocusRight):
		m.focusOnList = false
		return m, nil
	case key.Matches(msg, m.keys.PageUp):
		if !m.focusOnList {
			m.viewport.HalfViewUp()
		}
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		if !m.focusOnList {
			m.viewport.HalfViewDown()
		}
		return m, nil
	case key.Matches(msg, m.keys.Esc):
		if m.filterQuery != "" {
			m.filterQuery = ""
			m.filter.SetValue("")
			if changed := m.applyConversations(m.conversations); changed {
				cmds = append(cmds, m.selectionChanged()...)
			}
		}
		return m, tea.Batch(cmds...)
	case key.Matches(msg, m.keys.Export):
		if cmd := m.exportCmd(); cmd != nil {
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	case key.Matches(msg, m.keys.Copy):
		if cmd := m.copyCmd(); cmd != nil {
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	if m.focusOnList {
		prev := m.selectedID
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		cmds = append(cmds, cmd)
		if id := m.currentSelectedID(); id != prev {
			m.selectedID = id
			cmds = append(cmds, m.selectionChanged()...)
		}
	} else {
		switch msg.String() {
		case "up", "k":
			m.viewport.LineUp(1)
		case "down", "j":
			m.viewport.LineDown(1)
		}
	}

	return m, tea.Batch(cmds...)
}

// selectionChanged resets thread state for the current selection and
// starts a fresh fetch chain. The generation bump cancels any chain that
// was polling the previous selection.
func (m *Model) selectionChanged() []tea.Cmd {
	m.threadGen++
	m.thread = nil
	if m.selectedID == "" {
		m.viewport.SetContent("No conversation selected")
		return nil
	}
	m.viewport.SetContent("Loading thread...")
	return []tea.Cmd{
		m.threadCmd(m.selectedID, m.threadGen),
		threadTickCmd(m.threadGen),
	}
}

// applyConversations replaces the list contents wholesale from the latest
// index, honoring the active filter, and re-selects the previously
// selected session when it is still visible. It reports whether the
// selection moved to a different session.
func (m *Model) applyConversations(in []conv.Conversation) bool {
	m.conversations = in
	visible := conv.FilterConversations(in, m.filterQuery)

	items := make([]list.Item, 0, len(visible))
	for _, c := range visible {
		items = append(items, convItem{c: c})
	}
	m.list.SetItems(items)

	prev := m.selectedID
	if len(visible) == 0 {
		m.selectedID = ""
		if strings.TrimSpace(m.filterQuery) != "" {
			m.viewport.SetContent("No conversations matched your filter.")
		} else {
			m.viewport.SetContent("No conversations found.")
		}
		return prev != ""
	}

	selectIdx := 0
	for idx, c := range visible {
		if c.SessionID == prev {
			selectIdx = idx
			break
		}
	}
	m.list.Select(selectIdx)
	m.selectedID = visible[selectIdx].SessionID
	return m.selectedID != prev
}

func (m *Model) currentSelectedID() string {
	item, ok := m.list.SelectedItem().(convItem)
	if !ok {
		return ""
	}
	return item.c.SessionID
}

func (m Model) selectedConversation() (conv.Conversation, bool) {
	if m.selectedID == "" {
		return conv.Conversation{}, false
	}
	for _, c := range m.conversations {
		if c.SessionID == m.selectedID {
			return c, true
		}
	}
	return conv.Conversation{}, false
}

func (m *Model) startRename() {
	if m.selectedID == "" || m.renaming {
		return
	}
	c, ok := m.selectedConversation()
	if !ok {
		return
	}
	m.renaming = true
	m.rename.SetValue(c.DisplayName)
	m.rename.CursorEnd()
	m.rename.Focus()
}

func (m *Model) cancelRename() {
	m.renaming = false
	m.rename.SetValue("")
	m.rename.Blur()
}

// submitRename ends the edit. A blank draft is a cancel: nothing is
// persisted and the shown name stays as it was. The new name is not
// applied locally until the store confirms the update.
func (m Model) submitRename() (tea.Model, tea.Cmd) {
	name := strings.TrimSpace(m.rename.Value())
	sessionID := m.selectedID
	m.cancelRename()
	if name == "" || sessionID == "" {
		return m, nil
	}
	return m, m.renameCmd(sessionID, name)
}

// applyRename reflects a confirmed rename into the in-memory index and
// the list without waiting for the next poll. The next index refresh will
// carry the same name back from the store.
func (m *Model) applyRename(sessionID, name string) {
	for i := range m.conversations {
		if m.conversations[i].SessionID == sessionID {
			m.conversations[i].DisplayName = name
			break
		}
	}
	m.applyConversations(m.conversations)
}

func (m *Model) renderThreadCmd() tea.Cmd {
	if m.selectedID == "" {
		return nil
	}
	if m.thread == nil {
		m.viewport.SetContent("Loading thread...")
		return nil
	}

	m.rendering = true
	m.renderNonce++
	nonce := m.renderNonce
	sessionID := m.selectedID
	msgs := m.thread
	wrap := m.viewport.Width - 2
	if wrap < 20 {
		wrap = 20
	}

	return func() tea.Msg {
		md := export.BuildThreadMarkdown(msgs)
		if strings.TrimSpace(md) == "" {
			md = "_No messages in this conversation yet._"
		}

		rendered := md
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(config.DefaultGlamourStyle),
			glamour.WithWordWrap(wrap),
		)
		if err == nil {
			if out, renderErr := r.Render(md); renderErr == nil {
				rendered = out
			}
		}
		return renderMsg{sessionID: sessionID, rendered: rendered, nonce: nonce}
	}
}

func (m *Model) resize() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	left, right := m.paneWidths()

	bodyHeight := m.height - 2
	if bodyHeight < 8 {
		bodyHeight = 8
	}

	m.list.SetSize(left-2, bodyHeight-2)
	m.viewport.Width = right - 2
	m.viewport.Height = bodyHeight - 2
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Starting..."
	}

	status := m.statusLine()
	left, right := m.paneWidths()
	leftPane := panelStyle(m.focusOnList).Width(left).Height(m.height - 2).Render(m.list.View())
	rightPane := panelStyle(!m.focusOnList).Width(right).Height(m.height - 2).Render(m.viewport.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)

	helpView := m.help.View(m.keys)
	switch {
	case m.renaming:
		helpView = m.rename.View() + "  (enter to save, esc to cancel)"
	case m.filterMode:
		helpView = m.filter.View() + "  " + helpView
	case m.filterQuery != "":
		helpView = "filter: " + m.filterQuery + "  " + helpView
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		status,
		body,
		helpView,
	)
}

func (m Model) statusLine() string {
	status := ""
	if m.loading {
		status = m.spinner.View() + " loading..."
	}
	if c, ok := m.selectedConversation(); ok {
		status = fmt.Sprintf(
			"%s  session=%s  messages=%d  last=%s",
			c.DisplayName,
			shorten(c.SessionID, 18),
			len(m.thread),
			conv.FormatTime(c.CreatedAt),
		)
	}
	if m.filterQuery != "" || m.filterMode {
		status += "  [filter]"
	}
	if m.renaming {
		status += "  [renaming]"
	}
	if m.rendering {
		status += "  [rendering]"
	}
	if strings.TrimSpace(m.status) != "" {
		status += "  " + shorten(strings.TrimSpace(m.status), 80)
	}
	if m.err != nil {
		status += "  err=" + m.err.Error()
	}
	return statusStyle.Render(status)
}

func (m *Model) paneWidths() (int, int) {
	left := m.width / 3
	if left < 32 {
		left = 32
	}
	if left > m.width-32 {
		left = m.width - 32
	}
	if left < 20 {
		left = 20
	}
	right := m.width - left - 1
	if right < 20 {
		right = 20
	}
	return left, right
}

func shorten(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

var statusStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("252")).
	Background(lipgloss.Color("24")).
	Padding(0, 1)

func panelStyle(active bool) lipgloss.Style {
	border := lipgloss.NormalBorder()
	if active {
		return lipgloss.NewStyle().
			Border(border, true).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)
	}
	return lipgloss.NewStyle().
		Border(border, true).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)
}

type keyMap struct {
	Up         key.Binding
	Down       key.Binding
	FocusLeft  key.Binding
	FocusRight key.Binding
	Tab        key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	Filter     key.Binding
	Rename     key.Binding
	Export     key.Binding
	Copy       key.Binding
	Esc        key.Binding
	Quit       key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		FocusLeft: key.NewBinding(
			key.WithKeys("left"),
			key.WithHelp("←", "focus list"),
		),
		FocusRight: key.NewBinding(
			key.WithKeys("right"),
			key.WithHelp("→", "focus thread"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "toggle focus"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "b"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "f"),
			key.WithHelp("pgdn", "page down"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		Rename: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rename"),
		),
		Export: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "export markdown"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy markdown"),
		),
		Esc: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Tab, k.Filter, k.Rename, k.Export, k.Copy, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.FocusLeft, k.FocusRight, k.Tab},
		{k.PageUp, k.PageDown, k.Filter, k.Esc},
		{k.Rename, k.Export, k.Copy, k.Quit},
	}
}
