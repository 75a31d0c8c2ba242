package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hradec/comfyui-direct-model-downloader/internal/button"
	"github.com/hradec/comfyui-direct-model-downloader/internal/event"
	"github.com/hradec/comfyui-direct-model-downloader/internal/executor"
	"github.com/hradec/comfyui-direct-model-downloader/internal/logger"
	httpPkg "github.com/hradec/comfyui-direct-model-downloader/pkg/http"
)

var (
	// ErrInterrupted is surfaced when the stream closes without a
	// terminal event. Its text is shown to the user as-is.
	ErrInterrupted = errors.New("Download interrupted")
	// ErrStalled is surfaced when the stream stops producing bytes.
	ErrStalled = errors.New("Download stalled")

	ErrMalformedResponse = errors.New("malformed response")
	ErrProtocol          = errors.New("unexpected response status")
)

const (
	defaultStallTimeout = 30 * time.Second
	defaultReadSize     = 4096

	maxSyncBodySize = 1 << 20
)

type Option func(*Consumer)

// WithStallTimeout overrides how long the consumer waits between
// network reads before declaring the stream stalled. Zero disables the
// guard.
func WithStallTimeout(d time.Duration) Option {
	return func(c *Consumer) {
		c.stallTimeout = d
	}
}

func WithReadSize(n int) Option {
	return func(c *Consumer) {
		if n > 0 {
			c.readSize = n
		}
	}
}

// Consumer issues download requests and drives a button state machine
// from the response: either a single JSON object (synchronous outcome)
// or an incrementally parsed JSONL event stream.
type Consumer struct {
	client       *httpPkg.Client
	endpoint     string
	stallTimeout time.Duration
	readSize     int
}

func New(client *httpPkg.Client, endpoint string, opts ...Option) *Consumer {
	c := &Consumer{
		client:       client,
		endpoint:     endpoint,
		stallTimeout: defaultStallTimeout,
		readSize:     defaultReadSize,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Download runs one request to its terminal state, mutating m along the
// way. The machine must already be in loading (Trigger returned true).
// The returned error covers transport and protocol failures on the
// consumer side; a server-reported error event is reflected in the
// machine only.
func (c *Consumer) Download(ctx context.Context, req executor.Request, m *button.Machine) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var stalled atomic.Bool

	var stallGuard *time.Timer

	if c.stallTimeout > 0 {
		stallGuard = time.AfterFunc(c.stallTimeout, func() {
			stalled.Store(true)
			cancel()
		})
		defer stallGuard.Stop()
	}

	resp, err := c.client.PostJSON(ctx, c.endpoint, req)
	if err != nil {
		m.OnError(err.Error())
		return err
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warnf("Failed to close response body: %v", err)
		}
	}()

	if !strings.Contains(resp.Header.Get("Content-Type"), "jsonl") {
		return c.consumeSync(resp, m)
	}

	return c.consumeStream(resp.Body, m, stallGuard, &stalled, cancel)
}

// consumeSync handles a single-object JSON response: the executor's
// already-exists short-circuit, or a failure before streaming started.
func (c *Consumer) consumeSync(resp *http.Response, m *button.Machine) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSyncBodySize))
	if err != nil {
		m.OnError(err.Error())
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error string `json:"error"`
		}

		message := http.StatusText(resp.StatusCode)
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			message = errResp.Error
		}

		m.OnError(message)

		return fmt.Errorf("%w: %s", httpPkg.ClassifyHTTPError(resp.StatusCode), message)
	}

	var sync struct {
		Status string `json:"status"`
		Path   string `json:"path"`
	}

	if err := json.Unmarshal(body, &sync); err != nil {
		m.OnError(ErrMalformedResponse.Error())
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	switch sync.Status {
	case "exists":
		m.OnExists(sync.Path)
	case "downloaded":
		m.OnCompleted(sync.Path)
	default:
		err := fmt.Errorf("%w: %q", ErrProtocol, sync.Status)
		m.OnError(err.Error())

		return err
	}

	return nil
}

// consumeStream incrementally parses the JSONL event stream. Network
// reads do not align with event boundaries, so raw bytes go through a
// line buffer that carries partial lines across reads. Unparseable
// lines are logged and skipped; a stream that closes without a terminal
// event is an interruption.
func (c *Consumer) consumeStream(body io.Reader, m *button.Machine, stallGuard *time.Timer, stalled *atomic.Bool, cancel context.CancelFunc) error {
	var lb event.LineBuffer

	buf := make([]byte, c.readSize)

	for {
		n, readErr := body.Read(buf)

		if stallGuard != nil {
			stallGuard.Reset(c.stallTimeout)
		}

		if n > 0 {
			for _, line := range lb.Feed(buf[:n]) {
				if done := c.dispatch(line, m); done {
					// Terminal event received: nothing further will be
					// processed, release the connection early.
					cancel()
					return nil
				}
			}
		}

		if readErr != nil {
			if tail := lb.Flush(); tail != nil {
				if done := c.dispatch(tail, m); done {
					return nil
				}
			}

			if stalled.Load() {
				m.OnError(ErrStalled.Error())
				return ErrStalled
			}

			if !errors.Is(readErr, io.EOF) {
				logger.Warnf("Event stream read failed: %v", readErr)
			}

			m.OnError(ErrInterrupted.Error())

			return ErrInterrupted
		}
	}
}

// dispatch parses one line and applies it, reporting whether it was a
// terminal event.
func (c *Consumer) dispatch(line []byte, m *button.Machine) bool {
	var ev event.Event
	if err := json.Unmarshal(line, &ev); err != nil {
		logger.Warnf("Skipping unparseable stream line %q: %v", line, err)
		return false
	}

	m.Apply(ev)

	return ev.Terminal()
}
