package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hradec/comfyui-direct-model-downloader/internal/button"
	"github.com/hradec/comfyui-direct-model-downloader/internal/status"
	"github.com/hradec/comfyui-direct-model-downloader/internal/tui/styles"
)

// ModelRow renders a single model entry from a control snapshot. It is
// a pure projection: all state lives in the snapshot, none in the row.
func ModelRow(name, directory string, snap button.Snapshot, width, frame int, selected bool) string {
	maxNameLen := 34
	if len(name) > maxNameLen {
		name = name[:maxNameLen-3] + "..."
	}

	statusLabel := StatusLabel(snap)
	percent := percentLabel(snap)

	nameWidth := maxNameLen
	statusWidth := lipgloss.Width(statusLabel)

	percentStyle := lipgloss.NewStyle().Width(10).Align(lipgloss.Right)
	formattedPercent := percentStyle.Render(percent)

	remainingSpace := width - nameWidth - statusWidth - lipgloss.Width(formattedPercent) - 3
	if remainingSpace < 2 {
		remainingSpace = 2
	}

	padding := strings.Repeat(" ", remainingSpace)

	line1 := fmt.Sprintf("%-*s %s%s%s", nameWidth, name, statusLabel, padding, formattedPercent)

	barWidth := width - 2
	if barWidth < 10 {
		barWidth = 10
	}

	var bar string
	if snap.Indeterminate && snap.Status == status.Loading {
		bar = IndeterminateBar(barWidth, frame)
	} else {
		bar = ProgressBar(barWidth, snap.Ratio, snap.Status)
	}

	line2 := styles.ListItemStyle.Render(bar)

	line3 := styles.ListItemStyle.Faint(true).Render(detailLine(directory, snap))

	item := lipgloss.JoinVertical(lipgloss.Left, line1, line2, line3)
	if selected {
		return styles.SelectedItemStyle.Width(width).Render(item)
	}

	return styles.ListItemStyle.Width(width).Render(item)
}

// StatusLabel maps a snapshot to its styled status text.
func StatusLabel(snap button.Snapshot) string {
	switch snap.Status {
	case status.Loading:
		return styles.StatusLoading.Render("● downloading")
	case status.Success:
		return styles.StatusSuccess.Render("✔ downloaded")
	case status.Exists:
		return styles.StatusExists.Render("✔ exists")
	case status.Failed:
		return styles.StatusFailed.Render("✖ failed")
	default:
		return styles.StatusIdle.Render("○ " + strings.ToLower(snap.Label))
	}
}

func percentLabel(snap button.Snapshot) string {
	if snap.Indeterminate && snap.Status == status.Loading {
		return FormatSize(snap.Downloaded)
	}

	return fmt.Sprintf("%.1f%%", snap.Ratio*100)
}

func detailLine(directory string, snap button.Snapshot) string {
	switch snap.Status {
	case status.Failed:
		return snap.Message
	case status.Success, status.Exists:
		return snap.Path
	case status.Loading:
		if snap.Total > 0 {
			return fmt.Sprintf("%s  %s / %s", directory, FormatSize(snap.Downloaded), FormatSize(snap.Total))
		}

		return fmt.Sprintf("%s  %s", directory, FormatSize(snap.Downloaded))
	default:
		return directory
	}
}

// FormatSize converts bytes into a human-readable string.
func FormatSize(bytes int64) string {
	const unit = 1000
	if bytes < 0 {
		return "Unknown"
	}

	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	d := float64(bytes)
	exp := 0

	for d >= unit {
		d /= unit
		exp++
	}

	prefixes := "kMGTPE"

	idx := exp - 1
	if idx >= len(prefixes) {
		idx = len(prefixes) - 1
	}

	return fmt.Sprintf("%.1f %cB", d, prefixes[idx])
}
