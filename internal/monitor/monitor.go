// Package monitor renders a live terminal dashboard for an arena run. It
// subscribes to the dashboard bus and shows run status, a leaderboard and a
// scrolling action log; it never touches the arena itself, so a run behaves
// the same with or without a monitor attached.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"

	"github.com/lox/holdem-arena/internal/arena"
	"github.com/lox/holdem-arena/internal/dashboard"
)

const (
	maxLogLines        = 500
	maxLeaderboardRows = 12
	errorTail          = 3
)

// Model is the Bubble Tea model for the spectator dashboard.
type Model struct {
	logger *log.Logger

	sub    *dashboard.Subscription
	events <-chan dashboard.Event

	logViewport viewport.Model

	status    arena.Status
	points    map[string]dashboard.WinRatePoint
	actionLog []string
	errs      []string

	width       int
	height      int
	initialized bool
	quitting    bool
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the logger used for dashboard diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(m *Model) {
		m.logger = logger
	}
}

// New subscribes to the bus and builds a model pre-populated with the
// retained events, so a monitor attached mid-run starts with history.
func New(bus *dashboard.Bus, opts ...Option) *Model {
	vp := viewport.New(10, 5)
	vp.SetContent("")

	sub := bus.Subscribe()
	m := &Model{
		logger:      log.New(io.Discard),
		sub:         sub,
		events:      sub.C,
		logViewport: vp,
		points:      map[string]dashboard.WinRatePoint{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithPrefix("monitor")

	for _, ev := range sub.Initial {
		m.apply(ev)
	}
	return m
}

// eventMsg carries one bus event into the update loop.
type eventMsg dashboard.Event

// streamClosedMsg signals that the subscription channel was closed.
type streamClosedMsg struct{}

// waitForEvent blocks on the subscription until the next event arrives.
func waitForEvent(events <-chan dashboard.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

// Init starts the event pump.
func (m *Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

// Update handles messages in the dashboard.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m.apply(dashboard.Event(msg))
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		if !m.quitting {
			m.appendLog(InfoStyle.Render("event stream closed"))
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.logger.Debug("resized", "width", msg.Width, "height", msg.Height)
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			m.sub.Close()
			return m, tea.Sequence(tea.ClearScreen, tea.Quit)
		case "up", "k":
			m.logViewport.ScrollUp(1)
		case "down", "j":
			m.logViewport.ScrollDown(1)
		case "pgup", "b":
			m.logViewport.HalfPageUp()
		case "pgdown", "f":
			m.logViewport.HalfPageDown()
		case "home":
			m.logViewport.GotoTop()
		case "end":
			m.logViewport.GotoBottom()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.logViewport, cmd = m.logViewport.Update(msg)
	return m, cmd
}

// apply folds one bus event into the display state.
func (m *Model) apply(ev dashboard.Event) {
	switch p := ev.Payload.(type) {
	case dashboard.ActionEntry:
		m.appendLog(formatAction(p))
	case dashboard.WinRatePoint:
		m.points[p.PlayerID] = p
	case arena.Status:
		m.status = p
	case dashboard.ErrorEntry:
		line := formatError(p)
		m.errs = append(m.errs, line)
		if len(m.errs) > errorTail {
			m.errs = m.errs[len(m.errs)-errorTail:]
		}
		m.appendLog(ErrorStyle.Render(line))
	}
}

// appendLog adds a line to the action log and keeps the newest entry visible.
func (m *Model) appendLog(line string) {
	m.actionLog = append(m.actionLog, line)
	if len(m.actionLog) > maxLogLines {
		m.actionLog = m.actionLog[len(m.actionLog)-maxLogLines:]
	}

	m.logViewport.SetContent(strings.Join(m.actionLog, "\n"))

	// Only call GotoBottom once the viewport has valid dimensions
	if m.logViewport.Height > 0 && m.logViewport.Width > 0 {
		m.logViewport.GotoBottom()
	}
}

// View renders the dashboard.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	// Don't render until we have valid dimensions
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	title := HeaderStyle.Render(" HOLD'EM ARENA ")
	header := lipgloss.JoinVertical(lipgloss.Left, title, m.renderStatusLine())
	headerHeight := lipgloss.Height(header)

	footer := InfoStyle.Render("q: quit | up/down: scroll | pgup/pgdn: page | home/end: jump")
	footerHeight := lipgloss.Height(footer)

	// Sidebar pane (right side, grows to fit the leaderboard)
	sidebarContent := m.renderSidebar()
	calculatedSidebarWidth := 34
	if w := lipgloss.Width(sidebarContent); w > calculatedSidebarWidth {
		calculatedSidebarWidth = w
	}

	calculatedBodyHeight := m.height - headerHeight - footerHeight - 2 // Account for pane borders

	// Ensure pane dimensions are valid (minimum 1x1)
	if calculatedSidebarWidth < 1 {
		calculatedSidebarWidth = 1
	}
	if calculatedBodyHeight < 1 {
		calculatedBodyHeight = 1
	}

	sidebarStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(calculatedSidebarWidth).
		Height(calculatedBodyHeight)
	sidebarPane := sidebarStyle.Render(sidebarContent)

	// Log pane (left, fills the remaining width)
	calculatedLogWidth := m.width - calculatedSidebarWidth - 4 // Account for border x 2 and sidebar
	if calculatedLogWidth < 1 {
		calculatedLogWidth = 1
	}

	m.logViewport.Width = calculatedLogWidth
	m.logViewport.Height = calculatedBodyHeight
	m.logViewport.SetContent(strings.Join(m.actionLog, "\n"))

	// On first proper sizing, jump to the newest entries
	if !m.initialized && calculatedLogWidth > 1 && calculatedBodyHeight > 1 {
		m.logViewport.GotoBottom()
		m.initialized = true
	}

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#04B575")).
		Width(calculatedLogWidth).
		Height(calculatedBodyHeight)
	logPane := logStyle.Render(m.logViewport.View())

	body := lipgloss.JoinHorizontal(lipgloss.Top, logPane, sidebarPane)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

// renderStatusLine summarises the run state under the title bar.
func (m *Model) renderStatusLine() string {
	var state string
	switch {
	case m.status.Running:
		state = RunningStyle.Render("RUNNING")
	case m.status.CompletionReason != "":
		state = FinishedStyle.Render("FINISHED " + m.status.CompletionReason)
	default:
		state = InfoStyle.Render("IDLE")
	}

	parts := []string{
		state,
		fmt.Sprintf("hands %d/%d", m.status.HandsCompleted, m.status.MaxHands),
		fmt.Sprintf("players %d", m.status.Players),
	}
	if m.status.HandsPerSecond > 0 {
		parts = append(parts, fmt.Sprintf("%.1f hands/s", m.status.HandsPerSecond))
	}
	return strings.Join(parts, "  |  ")
}

// renderSidebar builds the leaderboard, table list and error tail.
func (m *Model) renderSidebar() string {
	var content strings.Builder

	content.WriteString(TitleStyle.Render("Leaderboard"))
	content.WriteString("\n")

	rows := m.standings()
	if len(rows) == 0 {
		content.WriteString(InfoStyle.Render("waiting for hands..."))
		content.WriteString("\n")
	}
	for i, p := range rows {
		if i == maxLeaderboardRows {
			break
		}
		net := fmt.Sprintf("%+d", p.NetChips)
		if p.NetChips >= 0 {
			net = ProfitStyle.Render(net)
		} else {
			net = LossStyle.Render(net)
		}
		content.WriteString(fmt.Sprintf("%-12s %4d  %5.1f%%  %s\n",
			truncate(p.PlayerName, 12), p.Hands, p.WinRate*100, net))
	}

	if len(m.status.Tables) > 0 {
		content.WriteString("\n")
		content.WriteString(TitleStyle.Render("Tables"))
		content.WriteString("\n")
		for _, t := range m.status.Tables {
			content.WriteString(fmt.Sprintf("%s #%d %s (%d players)\n",
				t.TableID, t.HandNumber, t.Phase, t.Players))
		}
	}

	if len(m.errs) > 0 {
		content.WriteString("\n")
		content.WriteString(ErrorStyle.Render("Errors"))
		content.WriteString("\n")
		for _, e := range m.errs {
			content.WriteString(ErrorStyle.Render(e))
			content.WriteString("\n")
		}
	}

	return strings.TrimRight(content.String(), "\n")
}

// standings sorts the latest per-player points by net chips, best first.
func (m *Model) standings() []dashboard.WinRatePoint {
	rows := make([]dashboard.WinRatePoint, 0, len(m.points))
	for _, p := range m.points {
		rows = append(rows, p)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].NetChips != rows[j].NetChips {
			return rows[i].NetChips > rows[j].NetChips
		}
		return rows[i].PlayerName < rows[j].PlayerName
	})
	return rows
}

func formatAction(e dashboard.ActionEntry) string {
	var b strings.Builder
	b.WriteString(InfoStyle.Render(fmt.Sprintf("%s #%d", e.TableID, e.HandNumber)))
	b.WriteString(fmt.Sprintf(" %s ", e.PlayerName))
	b.WriteString(ActionStyle.Render(e.Action))
	if e.Amount > 0 {
		b.WriteString(AmountStyle.Render(fmt.Sprintf(" %d", e.Amount)))
	}
	b.WriteString(InfoStyle.Render(fmt.Sprintf(" | pot %d | %s", e.PotTotal, e.Phase)))
	if e.TimedOut {
		b.WriteString(" ")
		b.WriteString(ErrorStyle.Render("(timeout)"))
	}
	return b.String()
}

func formatError(e dashboard.ErrorEntry) string {
	if e.TableID != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Source, e.TableID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Source, e.Message)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// Run drives the dashboard in the current terminal until the user quits or
// ctx is cancelled. Colors degrade to the profile the terminal reports.
func Run(ctx context.Context, bus *dashboard.Bus, opts ...Option) error {
	out := termenv.NewOutput(os.Stdout)
	lipgloss.SetColorProfile(out.ColorProfile())

	program := tea.NewProgram(New(bus, opts...),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithOutput(out),
	)
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run dashboard: %w", err)
	}
	return nil
}
