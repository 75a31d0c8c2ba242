package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/hradec/comfyui-direct-model-downloader/internal/button"
	"github.com/hradec/comfyui-direct-model-downloader/internal/tui/styles"
)

// RowData pairs an entry's identity with its control snapshot for
// rendering.
type RowData struct {
	Name      string
	Directory string
	Snapshot  button.Snapshot
}

func RenderModelList(rows []RowData, selected, width, height, frame int) string {
	if len(rows) == 0 {
		return renderEmptyView(width, height)
	}

	if height <= 0 {
		return lipgloss.NewStyle().Width(width).Height(height).Render("")
	}

	var rendered []string

	itemHeight := 4

	visibleCount := height / itemHeight

	start := selected - (visibleCount / 2)
	if start < 0 {
		start = 0
	}

	end := start + visibleCount
	if end > len(rows) {
		end = len(rows)

		start = end - visibleCount
		if start < 0 {
			start = 0
		}
	}

	for i := start; i < end; i++ {
		item := ModelRow(rows[i].Name, rows[i].Directory, rows[i].Snapshot, width, frame, i == selected)
		rendered = append(rendered, item)
	}

	listContent := lipgloss.JoinVertical(lipgloss.Left, rendered...)

	return lipgloss.NewStyle().Width(width).Height(height).Render(listContent)
}

// renderEmptyView displays instructions when the manifest had no entries.
func renderEmptyView(width, height int) string {
	title := lipgloss.NewStyle().Foreground(styles.Text).Italic(true).Render("Direct Model Downloader")
	instruction := lipgloss.NewStyle().Foreground(styles.Subtext0).Render("No models discovered. Check the manifest and press 'q' to quit.")

	content := lipgloss.JoinVertical(lipgloss.Center, title, "", instruction)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}
