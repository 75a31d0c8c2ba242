package button_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hradec/comfyui-direct-model-downloader/internal/button"
	"github.com/hradec/comfyui-direct-model-downloader/internal/event"
	"github.com/hradec/comfyui-direct-model-downloader/internal/status"
)

func int64Ptr(v int64) *int64 {
	return &v
}

func TestTrigger(t *testing.T) {
	m := button.New("Download")

	snap := m.Snapshot()
	assert.Equal(t, status.Idle, snap.Status)
	assert.Equal(t, "Download", snap.Label)
	assert.False(t, snap.Disabled)

	require.True(t, m.Trigger())

	snap = m.Snapshot()
	assert.Equal(t, status.Loading, snap.Status)
	assert.True(t, snap.Disabled)
	assert.Zero(t, snap.Ratio)

	assert.False(t, m.Trigger(), "loading control must not re-trigger")
}

func TestTrigger_BlockedAfterSuccess(t *testing.T) {
	m := button.New("Download")

	require.True(t, m.Trigger())
	m.OnCompleted("/models/a.bin")

	assert.False(t, m.Trigger())
	assert.True(t, m.Snapshot().Disabled)
}

func TestHappyPath(t *testing.T) {
	m := button.New("Download", button.WithRenderInterval(time.Nanosecond))

	require.True(t, m.Trigger())

	m.Apply(event.Start(int64Ptr(1000), "/models/checkpoints/model.safetensors"))

	snap := m.Snapshot()
	assert.Equal(t, status.Loading, snap.Status)
	assert.False(t, snap.Indeterminate)
	assert.Equal(t, int64(1000), snap.Total)

	m.Apply(event.Progress(400, int64Ptr(1000)))
	assert.InDelta(t, 0.4, m.Snapshot().Ratio, 1e-9)

	m.Apply(event.Progress(1000, int64Ptr(1000)))
	assert.InDelta(t, 1.0, m.Snapshot().Ratio, 1e-9)

	m.Apply(event.Completed("/models/checkpoints/model.safetensors", 1000))

	snap = m.Snapshot()
	assert.Equal(t, status.Success, snap.Status)
	assert.Equal(t, "/models/checkpoints/model.safetensors", snap.Path)
	assert.InDelta(t, 1.0, snap.Ratio, 1e-9)
}

func TestIndeterminate(t *testing.T) {
	m := button.New("Download")

	require.True(t, m.Trigger())
	m.Apply(event.Start(nil, "/models/a.bin"))

	snap := m.Snapshot()
	assert.True(t, snap.Indeterminate)
	assert.Zero(t, snap.Total)

	m.Apply(event.Progress(4096, nil))
	snap = m.Snapshot()
	assert.True(t, snap.Indeterminate, "indeterminate must persist while total is unknown")
	assert.Equal(t, int64(4096), snap.Downloaded)
}

func TestProgress_MonotonicGuard(t *testing.T) {
	m := button.New("Download", button.WithRenderInterval(time.Nanosecond))

	require.True(t, m.Trigger())
	m.Apply(event.Start(int64Ptr(100), "/m/a.bin"))

	m.Apply(event.Progress(60, int64Ptr(100)))
	m.Apply(event.Progress(40, int64Ptr(100)))

	assert.Equal(t, int64(60), m.Snapshot().Downloaded, "regressions are dropped")
}

func TestProgress_ThrottleSkipsIntermediateRenders(t *testing.T) {
	m := button.New("Download", button.WithRenderInterval(time.Hour))

	require.True(t, m.Trigger())
	m.Apply(event.Start(int64Ptr(1000), "/m/a.bin"))

	m.Apply(event.Progress(100, int64Ptr(1000)))
	first := m.Snapshot().Ratio
	assert.InDelta(t, 0.1, first, 1e-9, "first update renders immediately")

	m.Apply(event.Progress(500, int64Ptr(1000)))
	assert.InDelta(t, first, m.Snapshot().Ratio, 1e-9, "intermediate update is throttled")
	assert.Equal(t, int64(500), m.Snapshot().Downloaded, "state still advances under throttle")

	m.Apply(event.Progress(1000, int64Ptr(1000)))
	assert.InDelta(t, 1.0, m.Snapshot().Ratio, 1e-9, "final update bypasses the throttle")
}

func TestError_AutoResetsToIdle(t *testing.T) {
	m := button.New("Download", button.WithResetDelay(30*time.Millisecond))

	require.True(t, m.Trigger())
	m.Apply(event.Error("connection reset"))

	snap := m.Snapshot()
	assert.Equal(t, status.Failed, snap.Status)
	assert.Equal(t, "connection reset", snap.Message)
	assert.False(t, snap.Disabled, "an errored control stays clickable for retry")

	assert.Eventually(t, func() bool {
		return m.Snapshot().Status == status.Idle
	}, time.Second, 5*time.Millisecond)

	snap = m.Snapshot()
	assert.Empty(t, snap.Message)
	assert.Equal(t, "Download", snap.Label, "original affordance is restored")
	assert.True(t, m.Trigger(), "retry is possible after reset")
}

func TestTriggerDuringErrorCancelsReset(t *testing.T) {
	m := button.New("Download", button.WithResetDelay(20*time.Millisecond))

	require.True(t, m.Trigger())
	m.Apply(event.Error("boom"))

	require.True(t, m.Trigger(), "error state is directly retriable")

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, status.Loading, m.Snapshot().Status, "pending reset must not clobber the new request")
}

func TestExists(t *testing.T) {
	m := button.New("Download")

	require.True(t, m.Trigger())
	m.OnExists("/models/a.bin")

	snap := m.Snapshot()
	assert.Equal(t, status.Exists, snap.Status)
	assert.Equal(t, "/models/a.bin", snap.Path)
	assert.True(t, snap.Disabled)
}

func TestEventsIgnoredOutsideLoading(t *testing.T) {
	m := button.New("Download")

	m.Apply(event.Progress(10, int64Ptr(100)))
	assert.Equal(t, status.Idle, m.Snapshot().Status)
	assert.Zero(t, m.Snapshot().Downloaded)

	require.True(t, m.Trigger())
	m.Apply(event.Completed("/m/a.bin", 100))

	m.Apply(event.Error("late error after terminal"))
	assert.Equal(t, status.Success, m.Snapshot().Status, "no state change after a terminal event")
}
