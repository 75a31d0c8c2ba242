package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/hradec/comfyui-direct-model-downloader/internal/event"
	"github.com/hradec/comfyui-direct-model-downloader/internal/logger"
	"github.com/hradec/comfyui-direct-model-downloader/internal/registry"
	httpPkg "github.com/hradec/comfyui-direct-model-downloader/pkg/http"
)

var (
	ErrMissingParameters = errors.New("missing required parameters")
	ErrInFlight          = errors.New("download already in progress")
	ErrInsufficientSpace = errors.New("insufficient disk space")
	ErrTruncatedTransfer = errors.New("remote stream ended before the declared size")

	ErrDirectoryCreateFailed = errors.New("directory create failed")
	ErrFileCreateFailed      = errors.New("file create failed")
	ErrFileWriteFailed       = errors.New("file write failed")
)

const defaultChunkSize = 1024 * 1024

// Request describes one model download. Immutable once issued.
type Request struct {
	URL         string `json:"url"`
	Directory   string `json:"directory"`
	Filename    string `json:"filename"`
	Destination string `json:"destination,omitempty"`
	Overwrite   bool   `json:"overwrite,omitempty"`
}

// EmitFunc delivers one progress event to the caller. Returning an
// error aborts the transfer (the peer has gone away).
type EmitFunc func(event.Event) error

type Option func(*Executor)

func WithChunkSize(size int64) Option {
	return func(e *Executor) {
		if size > 0 {
			e.chunkSize = size
		}
	}
}

// Executor performs streamed model downloads. Each request is
// independent; the only shared state is the in-flight path set used to
// reject duplicate writers for the same destination.
type Executor struct {
	client    *httpPkg.Client
	registry  *registry.Registry
	chunkSize int64

	mu       sync.Mutex
	inflight map[string]struct{}
}

func New(client *httpPkg.Client, reg *registry.Registry, opts ...Option) *Executor {
	e := &Executor{
		client:    client,
		registry:  reg,
		chunkSize: defaultChunkSize,
		inflight:  make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Check validates the request and resolves the absolute target path.
// It reports whether the target already exists so callers can
// short-circuit without touching the network.
func (e *Executor) Check(req Request) (string, bool, error) {
	if strings.TrimSpace(req.URL) == "" || req.Directory == "" || req.Filename == "" {
		return "", false, ErrMissingParameters
	}

	path, err := e.registry.Resolve(req.Directory, req.Destination, req.Filename)
	if err != nil {
		return "", false, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return path, false, nil
		}

		return "", false, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	return path, !info.IsDir(), nil
}

// Acquire claims exclusive ownership of a target path for the duration
// of one transfer. The returned release func must be called exactly once.
func (e *Executor) Acquire(path string) (func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, busy := e.inflight[path]; busy {
		return nil, fmt.Errorf("%w: %s", ErrInFlight, path)
	}

	e.inflight[path] = struct{}{}

	return func() {
		e.mu.Lock()
		delete(e.inflight, path)
		e.mu.Unlock()
	}, nil
}

// Run fetches url into path, emitting start/progress events as bytes
// land on disk and exactly one terminal event. A partially written file
// is removed before the error event is emitted, so a truncated file can
// never be mistaken for a finished download. The caller must hold the
// path via Acquire.
func (e *Executor) Run(ctx context.Context, url, path string, emit EmitFunc) (int64, error) {
	resp, err := e.client.Get(ctx, url)
	if err != nil {
		fetchErr := fmt.Errorf("failed to fetch %s: %w", url, err)
		logger.Errorf("Failed to download model from %s: %v", url, err)

		return 0, e.fail(emit, fetchErr)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warnf("Failed to close response body for %s: %v", url, err)
		}
	}()

	total := httpPkg.ContentLength(resp)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, e.fail(emit, fmt.Errorf("%w: %w", ErrDirectoryCreateFailed, err))
	}

	if err := checkFreeSpace(filepath.Dir(path), total); err != nil {
		return 0, e.fail(emit, err)
	}

	if err := emit(event.Start(total, path)); err != nil {
		return 0, err
	}

	downloaded, err := e.transfer(ctx, resp.Body, path, total, emit)
	if err != nil {
		e.removePartial(path)
		logger.Errorf("Failed to download model from %s: %v", url, err)

		return downloaded, e.fail(emit, err)
	}

	if err := emit(event.Completed(path, downloaded)); err != nil {
		return downloaded, err
	}

	logger.Infof("Saved %s (%d bytes)", path, downloaded)

	return downloaded, nil
}

// transfer copies body to path chunk by chunk, emitting a progress
// event after every chunk so partial files always reflect true progress.
func (e *Executor) transfer(ctx context.Context, body io.Reader, path string, total *int64, emit EmitFunc) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFileCreateFailed, err)
	}

	var downloaded int64

	buf := make([]byte, e.chunkSize)

	for {
		select {
		case <-ctx.Done():
			file.Close()
			return downloaded, ctx.Err()
		default:
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := file.Write(buf[:n]); writeErr != nil {
				file.Close()
				return downloaded, fmt.Errorf("%w: %w", ErrFileWriteFailed, writeErr)
			}

			downloaded += int64(n)

			if err := emit(event.Progress(downloaded, total)); err != nil {
				file.Close()
				return downloaded, err
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}

			file.Close()

			return downloaded, fmt.Errorf("failed to read remote stream: %w", readErr)
		}
	}

	if total != nil && downloaded < *total {
		file.Close()
		return downloaded, fmt.Errorf("%w: got %d of %d bytes", ErrTruncatedTransfer, downloaded, *total)
	}

	if err := file.Close(); err != nil {
		return downloaded, fmt.Errorf("%w: %w", ErrFileWriteFailed, err)
	}

	return downloaded, nil
}

// fail emits the terminal error event and returns the original error.
// Cleanup must already have happened; the event is the last thing the
// peer sees.
func (e *Executor) fail(emit EmitFunc, cause error) error {
	if err := emit(event.Error(cause.Error())); err != nil {
		logger.Warnf("Failed to emit error event: %v", err)
	}

	return cause
}

func (e *Executor) removePartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warnf("Failed to remove partial file %s: %v", path, err)
	}
}

// checkFreeSpace rejects a transfer whose declared size exceeds the
// free space on the destination volume. Best effort: an unreadable
// mount is logged, not fatal.
func checkFreeSpace(dir string, total *int64) error {
	if total == nil {
		return nil
	}

	usage, err := disk.Usage(dir)
	if err != nil {
		logger.Warnf("Failed to read disk usage for %s: %v", dir, err)
		return nil
	}

	if usage.Free < uint64(*total) {
		return fmt.Errorf("%w: need %d bytes, %d free", ErrInsufficientSpace, *total, usage.Free)
	}

	return nil
}
