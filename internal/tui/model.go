package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hradec/comfyui-direct-model-downloader/internal/button"
	"github.com/hradec/comfyui-direct-model-downloader/internal/executor"
	"github.com/hradec/comfyui-direct-model-downloader/internal/scan"
	"github.com/hradec/comfyui-direct-model-downloader/internal/status"
	"github.com/hradec/comfyui-direct-model-downloader/internal/tui/components"
	"github.com/hradec/comfyui-direct-model-downloader/internal/tui/styles"
)

const refreshInterval = 100 * time.Millisecond

// row binds one discovered entry to the state machine behind its
// control. The consumer goroutine mutates the machine; the view only
// ever reads snapshots.
type row struct {
	entry   scan.Entry
	machine *button.Machine
}

type (
	tickMsg  struct{}
	entryMsg scan.Entry
)

// Model is the main TUI application model.
type Model struct {
	download    downloadAction
	machineOpts []button.Option

	rows     []row
	selected int

	help help.Model
	keys keyMap

	width, height int
	frame         int
}

// downloadAction issues one download request against the given machine.
// It blocks until the terminal state, so it runs on its own goroutine.
type downloadAction func(req executor.Request, m *button.Machine)

// NewModel creates a new TUI model. machineOpts configure the state
// machine behind every discovered entry's control.
func NewModel(download downloadAction, machineOpts ...button.Option) *Model {
	return &Model{
		download:    download,
		machineOpts: machineOpts,
		help:        help.New(),
		keys:        newKeyMap(),
	}
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg{}
	})
}

// Update handles incoming messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width

	case entryMsg:
		m.rows = append(m.rows, row{
			entry:   scan.Entry(msg),
			machine: button.New("Download", m.machineOpts...),
		})

	case tickMsg:
		m.frame++

		return m, tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
			return tickMsg{}
		})

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.selected > 0 {
				m.selected--
			}
		case key.Matches(msg, m.keys.Down):
			if m.selected < len(m.rows)-1 {
				m.selected++
			}
		case key.Matches(msg, m.keys.Download):
			m.startSelected(false)
		case key.Matches(msg, m.keys.Overwrite):
			m.startSelected(true)
		}
	}

	return m, nil
}

// startSelected launches a download for the selected row. The machine's
// trigger gate suppresses duplicate activations while one is running.
func (m *Model) startSelected(overwrite bool) {
	if len(m.rows) == 0 || m.selected >= len(m.rows) {
		return
	}

	r := m.rows[m.selected]
	if !r.machine.Trigger() {
		return
	}

	req := r.entry.Request()
	req.Overwrite = overwrite

	go m.download(req, r.machine)
}

// View renders the TUI.
func (m *Model) View() string {
	header := m.renderHeader()
	footer := styles.FooterStyle.Width(m.width).Render(m.help.View(m.keys))

	remainingHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if remainingHeight < 0 {
		remainingHeight = 0
	}

	rows := make([]components.RowData, len(m.rows))
	for i, r := range m.rows {
		rows[i] = components.RowData{
			Name:      r.entry.DisplayName(),
			Directory: r.entry.Directory,
			Snapshot:  r.machine.Snapshot(),
		}
	}

	mainContent := components.RenderModelList(rows, m.selected, m.width, remainingHeight, m.frame)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		mainContent,
		footer,
	)
}

func (m *Model) renderHeader() string {
	title := "Direct Model Downloader"
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(styles.Crust).
		Background(styles.Pink).
		Padding(0, 1).
		Width(m.width).
		Align(lipgloss.Center)
	header := headerStyle.Render(title)

	downloading := 0
	done := 0
	failed := 0

	for _, r := range m.rows {
		switch r.machine.Snapshot().Status {
		case status.Loading:
			downloading++
		case status.Success, status.Exists:
			done++
		case status.Failed:
			failed++
		}
	}

	statsText := fmt.Sprintf(
		"Models: %d | Downloading: %d | Done: %d | Failed: %d",
		len(m.rows), downloading, done, failed,
	)

	statsStyle := lipgloss.NewStyle().
		Foreground(styles.Text).
		Background(styles.Surface0).
		Padding(0, 1).
		Width(m.width).
		Align(lipgloss.Center)
	stats := statsStyle.Render(statsText)

	return lipgloss.JoinVertical(lipgloss.Top, header, stats)
}
