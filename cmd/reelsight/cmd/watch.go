package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

var watchCmd = &cobra.Command{
	Use:   "watch <job-id>",
	Short: "Follow an analysis until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

var watchInterval time.Duration

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "Polling interval")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client := newAPIClient(apiBaseURL())
	id := core.JobID(args[0])
	fetch := func() (core.ProgressView, error) {
		return client.Get(ctx, id)
	}

	final, err := tea.NewProgram(newWatchModel(id, fetch, watchInterval),
		tea.WithContext(ctx),
		tea.WithOutput(cmd.ErrOrStderr()),
	).Run()
	if err != nil {
		return err
	}
	m := final.(watchModel)
	if m.err != nil {
		return m.err
	}
	if m.view.Status.IsTerminal() {
		return finish(cmd, m.view)
	}
	return nil
}

type viewMsg struct {
	view core.ProgressView
	err  error
}

type pollMsg struct{}

// watchModel polls one job and renders its progress.
type watchModel struct {
	id       core.JobID
	fetch    func() (core.ProgressView, error)
	interval time.Duration

	spinner spinner.Model
	bar     progress.Model
	view    core.ProgressView
	err     error
	loaded  bool
}

var (
	watchTitle = lipgloss.NewStyle().Bold(true)
	watchDim   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	watchState = map[core.ProviderState]lipgloss.Style{
		core.ProviderStateRunning:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		core.ProviderStateComplete: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		core.ProviderStateFailed:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

func newWatchModel(id core.JobID, fetch func() (core.ProgressView, error), interval time.Duration) watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	if interval <= 0 {
		interval = time.Second
	}
	return watchModel{
		id:       id,
		fetch:    fetch,
		interval: interval,
		spinner:  sp,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll())
}

func (m watchModel) poll() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		view, err := fetch()
		return viewMsg{view: view, err: err}
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case viewMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.view, m.loaded = msg.view, true
		if m.view.Status.IsTerminal() {
			return m, tea.Quit
		}
		return m, tea.Tick(m.interval, func(time.Time) tea.Msg { return pollMsg{} })
	case pollMsg:
		return m, m.poll()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n", m.err)
	}
	if !m.loaded {
		return fmt.Sprintf("%s loading %s\n", m.spinner.View(), m.id)
	}
	var b strings.Builder
	title := m.view.Name
	if title == "" {
		title = string(m.view.JobID)
	}
	indicator := m.spinner.View()
	if m.view.Status.IsTerminal() {
		indicator = "•"
	}
	fmt.Fprintf(&b, "%s %s  %s\n\n", indicator, watchTitle.Render(title), watchDim.Render(string(m.view.Status)))
	fmt.Fprintf(&b, "  %s  %s\n", m.bar.ViewAs(float64(m.view.ProgressPercent)/100), m.view.StageName)
	if m.view.Message != "" {
		fmt.Fprintf(&b, "  %s\n", watchDim.Render(m.view.Message))
	}
	b.WriteString("\n")

	names := make([]string, 0, len(m.view.Providers))
	for p := range m.view.Providers {
		names = append(names, string(p))
	}
	sort.Strings(names)
	for _, name := range names {
		state := m.view.Providers[core.ProviderName(name)]
		style, ok := watchState[state]
		if !ok {
			style = watchDim
		}
		fmt.Fprintf(&b, "  %-10s %s\n", name, style.Render(string(state)))
	}
	if !m.view.Status.IsTerminal() {
		b.WriteString(watchDim.Render("\n  q to stop watching") + "\n")
	}
	return b.String()
}
