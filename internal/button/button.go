package button

import (
	"sync"
	"time"

	"github.com/hradec/comfyui-direct-model-downloader/internal/event"
	"github.com/hradec/comfyui-direct-model-downloader/internal/status"
)

const (
	defaultResetDelay     = 3500 * time.Millisecond
	defaultRenderInterval = 120 * time.Millisecond
)

// Snapshot is an immutable view of the machine for rendering. The
// visual layer projects it to widget attributes; it never mutates state.
type Snapshot struct {
	Status        status.Status
	Label         string
	Message       string
	Path          string
	Ratio         float64
	Indeterminate bool
	Disabled      bool
	Downloaded    int64
	Total         int64 // 0 when unknown
}

type Option func(*Machine)

// WithResetDelay overrides how long an error stays visible before the
// control returns to idle.
func WithResetDelay(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.resetDelay = d
		}
	}
}

// WithRenderInterval overrides the minimum wall time between visible
// progress updates.
func WithRenderInterval(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.renderInterval = d
		}
	}
}

// Machine is the per-request state machine behind one download control:
// idle -> loading -> {success | exists | error}, error -> idle after a
// fixed delay. It is safe for concurrent use; the consumer goroutine
// mutates it while the UI snapshots it.
type Machine struct {
	mu sync.Mutex

	label   string
	state   status.Status
	message string
	path    string

	downloaded int64
	total      *int64

	ratio         float64
	visibleRatio  float64
	indeterminate bool
	lastRender    time.Time

	resetDelay     time.Duration
	renderInterval time.Duration
	resetTimer     *time.Timer
}

// New creates an idle machine. label is the affordance restored after
// an error resets.
func New(label string, opts ...Option) *Machine {
	m := &Machine{
		label:          label,
		state:          status.Idle,
		resetDelay:     defaultResetDelay,
		renderInterval: defaultRenderInterval,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Trigger moves the machine into loading. Only an idle or errored
// control can be activated; it reports whether the request may be
// issued, which is how duplicate in-flight clicks are suppressed.
func (m *Machine) Trigger() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != status.Idle && m.state != status.Failed {
		return false
	}

	if m.resetTimer != nil {
		m.resetTimer.Stop()
		m.resetTimer = nil
	}

	m.state = status.Loading
	m.message = ""
	m.downloaded = 0
	m.total = nil
	m.ratio = 0
	m.visibleRatio = 0
	m.indeterminate = false
	m.lastRender = time.Time{}

	return true
}

// Apply dispatches one stream event into the machine.
func (m *Machine) Apply(ev event.Event) {
	switch ev.Kind {
	case event.KindStart:
		m.OnStart(ev.Total, ev.Path)
	case event.KindProgress:
		m.OnProgress(ev.Downloaded, ev.Total)
	case event.KindCompleted:
		m.OnCompleted(ev.Path)
	case event.KindError:
		m.OnError(ev.Message)
	}
}

func (m *Machine) OnStart(total *int64, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != status.Loading {
		return
	}

	m.total = total
	m.path = path
	m.indeterminate = total == nil
}

// OnProgress folds a progress event in. Downloaded is contractually
// non-decreasing; regressions are dropped rather than rendered. Visible
// updates are throttled to the render interval, except the final update
// that reaches the total, which always lands immediately.
func (m *Machine) OnProgress(downloaded int64, total *int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != status.Loading || downloaded < m.downloaded {
		return
	}

	m.downloaded = downloaded

	if total != nil {
		m.total = total
	}

	m.indeterminate = m.total == nil

	if m.total != nil && *m.total > 0 {
		m.ratio = float64(downloaded) / float64(*m.total)
		if m.ratio > 1 {
			m.ratio = 1
		}
	}

	now := time.Now()
	final := m.total != nil && downloaded >= *m.total

	if final || m.lastRender.IsZero() || now.Sub(m.lastRender) >= m.renderInterval {
		m.visibleRatio = m.ratio
		m.lastRender = now
	}
}

func (m *Machine) OnCompleted(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != status.Loading {
		return
	}

	m.state = status.Success
	m.path = path
	m.ratio = 1
	m.visibleRatio = 1
	m.indeterminate = false
}

func (m *Machine) OnExists(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != status.Loading {
		return
	}

	m.state = status.Exists
	m.path = path
	m.ratio = 1
	m.visibleRatio = 1
	m.indeterminate = false
}

// OnError records the failure and schedules the automatic return to
// idle that restores the original affordance for a retry.
func (m *Machine) OnError(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != status.Loading {
		return
	}

	m.state = status.Failed
	m.message = message

	m.resetTimer = time.AfterFunc(m.resetDelay, m.reset)
}

func (m *Machine) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != status.Failed {
		return
	}

	m.state = status.Idle
	m.message = ""
	m.downloaded = 0
	m.total = nil
	m.ratio = 0
	m.visibleRatio = 0
	m.indeterminate = false
	m.resetTimer = nil
}

// Snapshot returns the current visible state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total int64
	if m.total != nil {
		total = *m.total
	}

	return Snapshot{
		Status:        m.state,
		Label:         m.label,
		Message:       m.message,
		Path:          m.path,
		Ratio:         m.visibleRatio,
		Indeterminate: m.indeterminate,
		Disabled:      m.state == status.Loading || m.state == status.Success || m.state == status.Exists,
		Downloaded:    m.downloaded,
		Total:         total,
	}
}
