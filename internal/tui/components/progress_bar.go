package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hradec/comfyui-direct-model-downloader/internal/status"
	"github.com/hradec/comfyui-direct-model-downloader/internal/tui/styles"
)

// ProgressBar returns a styled progress bar.
func ProgressBar(width int, percent float64, s status.Status) string {
	if width <= 0 {
		return ""
	}

	if percent < 0 {
		percent = 0
	}

	if percent > 1.0 {
		percent = 1.0
	}

	filledWidth := int(float64(width) * percent)
	emptyWidth := width - filledWidth

	filledStr := strings.Repeat("█", filledWidth)
	emptyStr := strings.Repeat("░", emptyWidth)

	var filledStyle lipgloss.Style

	switch s {
	case status.Loading:
		filledStyle = lipgloss.NewStyle().Foreground(styles.Teal)
	case status.Success:
		filledStyle = lipgloss.NewStyle().Foreground(styles.Green)
	case status.Exists:
		filledStyle = lipgloss.NewStyle().Foreground(styles.Mauve)
	case status.Failed:
		filledStyle = lipgloss.NewStyle().Foreground(styles.Red)
	default:
		filledStyle = lipgloss.NewStyle().Foreground(styles.Yellow)
	}

	return filledStyle.Render(filledStr) + styles.ProgressBarEmptyStyle.Render(emptyStr)
}

// IndeterminateBar renders a sweeping bar for transfers whose total
// size is unknown. frame advances the sweep position.
func IndeterminateBar(width, frame int) string {
	if width <= 0 {
		return ""
	}

	const sweep = 6

	pos := frame % width

	bar := make([]rune, 0, width)
	for i := 0; i < width; i++ {
		distance := (i - pos + width) % width
		if distance < sweep {
			bar = append(bar, '█')
		} else {
			bar = append(bar, '░')
		}
	}

	filled := lipgloss.NewStyle().Foreground(styles.Teal)

	return filled.Render(string(bar))
}
