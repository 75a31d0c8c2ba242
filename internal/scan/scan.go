package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/hradec/comfyui-direct-model-downloader/internal/executor"
	"github.com/hradec/comfyui-direct-model-downloader/internal/logger"
)

var ErrNoEntries = errors.New("no downloadable entries found")

// Entry is one discovered model candidate: everything needed to issue
// a download request, plus an optional display label.
type Entry struct {
	Label       string `json:"label,omitempty"`
	URL         string `json:"url"`
	Directory   string `json:"directory"`
	Filename    string `json:"filename"`
	Destination string `json:"destination,omitempty"`
}

// Request converts the entry into the executor's request shape.
func (e Entry) Request() executor.Request {
	return executor.Request{
		URL:         e.URL,
		Directory:   e.Directory,
		Filename:    e.Filename,
		Destination: e.Destination,
	}
}

// DisplayName is what the UI shows for the entry.
func (e Entry) DisplayName() string {
	if e.Label != "" {
		return e.Label
	}

	return e.Filename
}

func (e Entry) valid() bool {
	return e.URL != "" && e.Directory != "" && e.Filename != ""
}

// Source delivers discovered entries over a channel. The channel is
// closed once the source is exhausted or the context is canceled, so a
// consumer can simply range over it.
type Source interface {
	Subscribe(ctx context.Context) (<-chan Entry, error)
}

// ManifestSource reads entries from a JSON manifest file: an array of
// objects with url, directory, filename and optional label and
// destination fields.
type ManifestSource struct {
	path string
}

func NewManifestSource(path string) *ManifestSource {
	return &ManifestSource{path: path}
}

func (s *ManifestSource) Subscribe(ctx context.Context) (<-chan Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", s.path, err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", s.path, err)
	}

	valid := entries[:0]

	for _, e := range entries {
		if !e.valid() {
			logger.Warnf("Skipping incomplete manifest entry %+v", e)
			continue
		}

		valid = append(valid, e)
	}

	if len(valid) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoEntries, s.path)
	}

	ch := make(chan Entry)

	go func() {
		defer close(ch)

		for _, e := range valid {
			select {
			case ch <- e:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}
