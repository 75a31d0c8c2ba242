package components_test

import (
	"strings"
	"testing"

	"github.com/hradec/comfyui-direct-model-downloader/internal/status"
	"github.com/hradec/comfyui-direct-model-downloader/internal/tui/components"
)

func TestProgressBar(t *testing.T) {
	testCases := []struct {
		name           string
		width          int
		percent        float64
		status         status.Status
		expectedFilled int
		expectedEmpty  int
	}{
		{
			name:           "0 percent",
			width:          20,
			percent:        0.0,
			status:         status.Loading,
			expectedFilled: 0,
			expectedEmpty:  20,
		},
		{
			name:           "50 percent",
			width:          20,
			percent:        0.5,
			status:         status.Loading,
			expectedFilled: 10,
			expectedEmpty:  10,
		},
		{
			name:           "100 percent",
			width:          20,
			percent:        1.0,
			status:         status.Success,
			expectedFilled: 20,
			expectedEmpty:  0,
		},
		{
			name:           "Negative percent (clamps to 0)",
			width:          10,
			percent:        -0.5,
			status:         status.Failed,
			expectedFilled: 0,
			expectedEmpty:  10,
		},
		{
			name:           "Over 100 percent (clamps to 1.0)",
			width:          10,
			percent:        1.5,
			status:         status.Exists,
			expectedFilled: 10,
			expectedEmpty:  0,
		},
		{
			name:           "Zero width",
			width:          0,
			percent:        0.5,
			status:         status.Idle,
			expectedFilled: 0,
			expectedEmpty:  0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			output := components.ProgressBar(tc.width, tc.percent, tc.status)

			gotFilled := strings.Count(output, "█")
			gotEmpty := strings.Count(output, "░")

			if gotFilled != tc.expectedFilled {
				t.Errorf("expected %d filled characters, but got %d", tc.expectedFilled, gotFilled)
			}
			if gotEmpty != tc.expectedEmpty {
				t.Errorf("expected %d empty characters, but got %d", tc.expectedEmpty, gotEmpty)
			}
		})
	}
}

func TestIndeterminateBar(t *testing.T) {
	width := 30

	first := components.IndeterminateBar(width, 0)
	later := components.IndeterminateBar(width, 7)

	if first == later {
		t.Error("expected the sweep to move between frames")
	}

	total := strings.Count(first, "█") + strings.Count(first, "░")
	if total != width {
		t.Errorf("expected %d bar characters, but got %d", width, total)
	}

	if components.IndeterminateBar(0, 3) != "" {
		t.Error("expected empty string for zero width")
	}
}
