package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer draws a bubbletea progress bar.
type TUIRenderer struct {
	mu        sync.Mutex
	cfg       Config
	program   *tea.Program
	model     *progressModel
	tracker   *ProgressTracker
	cancel    context.CancelFunc
	started   bool
	completed bool
	done      chan struct{}
}

// NewTUIRenderer creates a TUI renderer. It fails when the output is not
// a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	tracker := NewProgressTracker()
	model := newProgressModel(tracker, cfg.Title)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	ctx, r.cancel = context.WithCancel(ctx)
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}

	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := r.tracker.Stats()
	if event.Stage != stats.Stage || event.Total != stats.Total {
		r.tracker.SetStage(event.Stage, event.Total)
	}
	r.tracker.Update(event.Current, event.CurrentFile)

	if r.program != nil {
		r.program.Send(progressUpdateMsg(event))
	}
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.AddError(event)
	if r.program != nil {
		r.program.Send(errorMsg(event))
	}
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program != nil {
		r.program.Send(completeMsg(stats))
		r.completed = true
	}
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	program, completed := r.program, r.completed
	r.mu.Unlock()

	if program == nil {
		return nil
	}
	if !completed {
		program.Quit()
	}
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		// Unresponsive program; do not hang the CLI on exit.
	}
	if r.cancel != nil {
		r.cancel()
	}
	return nil
}

type progressUpdateMsg ProgressEvent
type errorMsg ErrorEvent
type completeMsg CompletionStats
type tickMsg time.Time

// progressModel is the bubbletea model of one operation.
type progressModel struct {
	tracker     *ProgressTracker
	title       string
	width       int
	quitting    bool
	complete    bool
	stats       CompletionStats
	failures    []ErrorEvent
	spinner     spinner.Model
	progressBar progress.Model
	styles      Styles
}

func newProgressModel(tracker *ProgressTracker, title string) *progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	p := progress.New(
		progress.WithSolidFill(ColorLime),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &progressModel{
		tracker:     tracker,
		title:       title,
		spinner:     s,
		progressBar: p,
		styles:      DefaultStyles(),
		width:       80,
	}
}

// Init implements tea.Model.
func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = max(msg.Width-30, 20)

	case errorMsg:
		m.failures = append(m.failures, ErrorEvent(msg))

	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit

	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *progressModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete {
		return m.renderComplete()
	}

	stats := m.tracker.Stats()
	lines := []string{m.styles.Header.Render(m.title)}

	if stats.Total == 0 {
		lines = append(lines, fmt.Sprintf("%s %s...", m.spinner.View(), stats.Stage))
	} else {
		bar := m.progressBar.ViewAs(stats.Progress)
		pct := m.styles.Active.Render(fmt.Sprintf("%3.0f%%", stats.Progress*100))
		count := m.styles.Label.Render(fmt.Sprintf("%d/%d %s", stats.Current, stats.Total, stats.Stage.Unit()))
		lines = append(lines, fmt.Sprintf("%s %s  %s  %s", m.spinner.View(), bar, pct, count))
	}

	var meta []string
	if stats.AvgSpeed > 0 {
		meta = append(meta, m.styles.Speed.Render(fmt.Sprintf("%.1f %s/s", stats.AvgSpeed, stats.Stage.Unit())))
	}
	if stats.ETA > 0 {
		meta = append(meta, m.styles.Label.Render("ETA "+formatDuration(stats.ETA)))
	}
	if stats.ErrorCount > 0 {
		meta = append(meta, m.styles.Error.Render(fmt.Sprintf("✗ %d failed", stats.ErrorCount)))
	}
	if len(meta) > 0 {
		lines = append(lines, strings.Join(meta, m.styles.Dim.Render("  •  ")))
	}

	if stats.CurrentFile != "" {
		lines = append(lines, m.styles.Dim.Render(truncateFilePath(stats.CurrentFile, m.width-2)))
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m *progressModel) renderComplete() string {
	var lines []string
	lines = append(lines, m.styles.Success.Render(fmt.Sprintf("✓ %s %d %s in %s",
		summaryVerb(m.stats.Stage), m.stats.Items, m.stats.Stage.Unit(), formatDuration(m.stats.Duration))))

	for _, f := range m.failures {
		name := f.File
		if name == "" {
			name = "-"
		}
		lines = append(lines, m.styles.Error.Render(fmt.Sprintf("✗ %s: %v", filepath.Base(name), f.Err)))
	}
	if m.stats.Warnings > 0 {
		lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", m.stats.Warnings)))
	}
	return strings.Join(lines, "\n") + "\n"
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// truncateFilePath shortens a path to maxLen, keeping the file name.
func truncateFilePath(path string, maxLen int) string {
	if path == "" || len(path) <= maxLen {
		return path
	}
	if maxLen < 4 {
		return "..."
	}

	dir, file := filepath.Split(path)
	if dir == "" || len(file)+4 > maxLen {
		return "..." + path[len(path)-maxLen+3:]
	}
	remaining := maxLen - len(file) - 3
	return "..." + dir[len(dir)-remaining:] + file
}

var _ Renderer = (*TUIRenderer)(nil)
