package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/rowloader/internal/loader"
	"github.com/raphaelgruber/rowloader/internal/metrics"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const refreshInterval = 100 * time.Millisecond

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// progressEnabled reports whether cmd should render the live view.
func progressEnabled(cmd *cobra.Command) bool {
	f := cmd.Flags().Lookup("progress")
	if f == nil || f.Value.String() != "true" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// tickMsg triggers reading the loader's counters.
type tickMsg time.Time

// loaderSource is what the progress view reads from.
type loaderSource interface {
	Collector() *metrics.Collector
	Submitted() int64
	Finished() bool
}

// progressModel is the bubbletea model for a running load.
type progressModel struct {
	loader    loaderSource
	cancel    context.CancelFunc
	snapshot  metrics.Snapshot
	submitted int64
	progress  progress.Model
	theme     Theme
	done      bool
	stopping  bool
}

func newProgressModel(l loaderSource, cancel context.CancelFunc) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)
	return progressModel{
		loader:   l,
		cancel:   cancel,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command (start polling).
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// stop reading; the view stays up until the retry drain is over
			if !m.stopping && m.cancel != nil {
				m.cancel()
			}
			m.stopping = true
			return m, nil
		}

	case tickMsg:
		m = m.refresh()
		if m.done {
			return m, tea.Quit
		}
		return m, tickCmd()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m progressModel) refresh() progressModel {
	// read Finished first so the final snapshot includes every retry
	m.done = m.loader.Finished()
	m.snapshot = m.loader.Collector().Snapshot()
	m.submitted = m.loader.Submitted()
	return m
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	s := m.snapshot
	var pct float64
	if m.submitted > 0 {
		pct = float64(s.Resolved()) / float64(m.submitted)
	}

	state := "loading"
	if m.stopping {
		state = "stopping"
	}
	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", state))
	bar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d rows written", s.Success, m.submitted)

	line2 := fmt.Sprintf("failed %d  retried %d  dropped %d  malformed %d",
		s.Failure, s.RetrySucceeded, s.RetryDropped, s.Malformed)
	if s.Failure > 0 || s.RetryDropped > 0 {
		line2 = m.theme.errorStyle().Render(line2)
	}

	hint := m.theme.hintStyle().Render("Press Ctrl+C to stop reading (pending writes still finish)")
	if m.stopping {
		hint = m.theme.hintStyle().Render("Finishing in-flight writes and retries...")
	}

	return fmt.Sprintf("%s %s %s\n%s\n%s\n", status, bar, counts, line2, hint)
}

func (m progressModel) finalView() string {
	s := m.snapshot
	if s.RetryDropped > 0 {
		return m.theme.errorStyle().Render(
			fmt.Sprintf("✗ Finished with %d dropped rows (%d/%d delivered)\n", s.RetryDropped, s.Delivered(), m.submitted))
	}
	return m.theme.completedStyle().Render(
		fmt.Sprintf("✓ Finished: %d/%d delivered\n", s.Delivered(), m.submitted))
}

// tickCmd returns a command that sends a tick after the refresh interval.
func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunLoadProgress shows live counters for l until it finishes.
// Ctrl+C calls cancel, which stops ingestion; the view keeps running until
// the load is finished.
func RunLoadProgress(l *loader.Loader, cancel context.CancelFunc) error {
	p := tea.NewProgram(newProgressModel(l, cancel))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}
	return nil
}
