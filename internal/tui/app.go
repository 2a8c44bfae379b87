// internal/tui/app.go
//
// The watch dashboard. It follows The Elm Architecture like any bubbletea
// program: the App holds every piece of state, Update folds messages into it,
// and View renders it. Snapshots come from the filesystem, so the dashboard
// can watch a pipeline running in another process.

package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/The-Spiral/internal/config"
	"github.com/kingrea/The-Spiral/internal/records"
	"github.com/kingrea/The-Spiral/internal/stage"
	"github.com/kingrea/The-Spiral/internal/status"
)

const boardRefreshInterval = 3 * time.Second

type snapshotMsg struct {
	snap   status.Snapshot
	params config.Params
	err    error
	// ticked marks refreshes from the board timer, which re-arm it.
	ticked bool
}

// changeMsg arrives when a watched partition changed on disk.
type changeMsg struct{}

// AppOption customizes App construction for tests.
type AppOption func(*App)

// WithClock overrides the time source.
func WithClock(now func() time.Time) AppOption {
	return func(a *App) {
		if now != nil {
			a.now = now
		}
	}
}

// WithChanges feeds filesystem change notifications into the dashboard.
func WithChanges(changes <-chan struct{}) AppOption {
	return func(a *App) { a.changes = changes }
}

// App is the dashboard model.
type App struct {
	loader  stage.Loader
	now     func() time.Time
	changes <-chan struct{}

	snap       status.Snapshot
	journalLog string
	loaded     bool
	boardErr   string
	statusMsg  string
	partitions table.Model

	width  int
	height int
}

// NewApp builds a dashboard reading from loader.
func NewApp(loader stage.Loader, opts ...AppOption) *App {
	columns := []table.Column{
		{Title: "Partition", Width: 18},
		{Title: "Files", Width: 7},
		{Title: "Path", Width: 40},
	}
	t := table.New(table.WithColumns(columns), table.WithHeight(len(config.Default().Partitions())+1))
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#FFFFFF")).Bold(false)
	t.SetStyles(styles)

	app := &App{
		loader:     loader,
		now:        time.Now,
		partitions: t,
		statusMsg:  "q quit · r refresh",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	return app
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.fetchSnapshot(), a.scheduleRefresh(), a.waitForChange())
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case snapshotMsg:
		if msg.err != nil {
			a.boardErr = msg.err.Error()
		} else {
			a.boardErr = ""
			a.loaded = true
			a.snap = msg.snap
			a.journalLog = filepath.Base(msg.params.Paths.Journal)
			a.partitions.SetRows(partitionRows(msg.snap))
		}
		if msg.ticked {
			return a, a.scheduleRefresh()
		}
		return a, nil

	case changeMsg:
		return a, tea.Batch(a.fetchSnapshot(), a.waitForChange())

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return a, tea.Quit
		case "r":
			a.statusMsg = "Refreshing..."
			return a, a.fetchSnapshot()
		}
	}
	var cmd tea.Cmd
	a.partitions, cmd = a.partitions.Update(msg)
	return a, cmd
}

// View renders the dashboard.
func (a *App) View() string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		MarginBottom(1).
		Render("◎ SPIRAL")
	if !a.loaded && a.boardErr == "" {
		return header + "\nLoading..."
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1)
	left := box.Render(lipgloss.JoinVertical(lipgloss.Left,
		a.renderControls(),
		"",
		a.partitions.View(),
	))
	right := box.Render(a.renderRecords())
	body := left
	if a.width == 0 || a.width >= lipgloss.Width(left)+lipgloss.Width(right) {
		body = lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left, left, right)
	}

	sections := []string{header, body}
	if logPanel := a.renderJournal(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	footer := a.statusMsg
	if a.boardErr != "" {
		footer = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Render("⚠ " + a.boardErr)
	}
	sections = append(sections, lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		MarginTop(1).
		Render(footer))
	return strings.Join(sections, "\n")
}

func (a *App) renderControls() string {
	s := a.snap
	gen := fmt.Sprintf("Generation %d", s.Generation)
	if s.MaxGenerations > 0 {
		gen = fmt.Sprintf("Generation %d/%d", s.Generation, s.MaxGenerations)
	}
	c := s.Controls
	lines := []string{
		lipgloss.NewStyle().Bold(true).Render(gen),
		fmt.Sprintf("Bias %.4f  %s", c.ComplexityBias, biasBar(c.ComplexityBias, 20)),
		fmt.Sprintf("Chaos %.4f · Delete %.4f · Obscure %.4f", c.ChaosIntensity, c.DeletionChance, c.ObscurityChance),
		fmt.Sprintf("Decay window %s", (time.Duration(c.DecayWindowSeconds) * time.Second).String()),
	}
	if c.AdaptiveScaling {
		lines = append(lines, "Adaptive scaling on")
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderRecords() string {
	s := a.snap
	head := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	lines := []string{
		head.Render("EXPERIMENTS"),
		fmt.Sprintf("%d results · %d sandboxes", s.Results, s.Sandboxes),
	}
	if r := s.LatestResult; r != nil {
		lines = append(lines,
			fmt.Sprintf("Latest: %s %s", r.Artifact, statusStyle(r.Status).Render(string(r.Status))),
			fmt.Sprintf("  %s ago", since(a.now(), r.Timestamp)))
		if r.Error != "" {
			lines = append(lines, "  "+truncate(r.Error, 48))
		}
	} else {
		lines = append(lines, "Latest: none")
	}
	lines = append(lines, "", head.Render("CHAOS"), fmt.Sprintf("%d events", s.ChaosEvents))
	if e := s.LatestChaos; e != nil {
		lines = append(lines,
			fmt.Sprintf("Latest: %s", e.Kind),
			fmt.Sprintf("  → %s", e.Target))
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderJournal() string {
	if len(a.snap.Journal) == 0 {
		return ""
	}
	name := a.journalLog
	if name == "" || name == "." {
		name = "journal"
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s", name))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(a.snap.Journal, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}

func (a *App) fetchSnapshot() tea.Cmd {
	return func() tea.Msg { return a.buildSnapshot() }
}

func (a *App) scheduleRefresh() tea.Cmd {
	return tea.Tick(boardRefreshInterval, func(time.Time) tea.Msg {
		msg := a.buildSnapshot()
		msg.ticked = true
		return msg
	})
}

func (a *App) waitForChange() tea.Cmd {
	if a.changes == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-a.changes; !ok {
			return nil
		}
		return changeMsg{}
	}
}

func (a *App) buildSnapshot() snapshotMsg {
	p, err := a.loader.Load()
	if err != nil {
		return snapshotMsg{err: err}
	}
	return snapshotMsg{snap: status.Collect(p, a.now()), params: p}
}

// Run shows the dashboard until the user quits or ctx is cancelled.
func Run(ctx context.Context, loader stage.Loader) error {
	p, err := loader.Load()
	if err != nil {
		return err
	}
	var opts []AppOption
	watcher, err := NewWatcher(watchedDirs(p))
	if err == nil {
		defer watcher.Close()
		go watcher.Run(ctx)
		opts = append(opts, WithChanges(watcher.Changes()))
	}
	program := tea.NewProgram(NewApp(loader, opts...), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func watchedDirs(p config.Params) []string {
	var dirs []string
	for _, np := range p.Partitions() {
		dirs = append(dirs, np.Dir)
	}
	return append(dirs, p.Paths.Results, p.Paths.ChaosLog, filepath.Dir(p.Paths.Journal))
}

func partitionRows(s status.Snapshot) []table.Row {
	rows := make([]table.Row, 0, len(s.Partitions))
	for _, pc := range s.Partitions {
		count := fmt.Sprintf("%d", pc.Count)
		if pc.Err != "" {
			count = "?"
		}
		rows = append(rows, table.Row{pc.Name, count, pc.Dir})
	}
	return rows
}

func biasBar(v float64, width int) string {
	filled := int(v*float64(width) + 0.5)
	filled = max(0, min(width, filled))
	return "[" + strings.Repeat("█", filled) + strings.Repeat("·", width-filled) + "]"
}

func statusStyle(s records.Status) lipgloss.Style {
	switch {
	case s == records.StatusSuccess:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	case s.Failed():
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	default:
		return lipgloss.NewStyle()
	}
}

func since(now, then time.Time) string {
	if then.IsZero() {
		return "?"
	}
	return now.Sub(then).Truncate(time.Second).String()
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
