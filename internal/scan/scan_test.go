package scan_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hradec/comfyui-direct-model-downloader/internal/scan"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func collect(t *testing.T, ch <-chan scan.Entry) []scan.Entry {
	t.Helper()

	var entries []scan.Entry

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return entries
			}

			entries = append(entries, e)
		case <-time.After(5 * time.Second):
			t.Fatal("source never closed its channel")
		}
	}
}

func TestManifestSource(t *testing.T) {
	path := writeManifest(t, `[
		{"label": "SDXL base", "url": "https://remote/sd_xl_base.safetensors", "directory": "checkpoints", "filename": "sd_xl_base.safetensors"},
		{"url": "https://remote/detail.safetensors", "directory": "loras", "filename": "detail.safetensors", "destination": "/models/loras/quality"}
	]`)

	ch, err := scan.NewManifestSource(path).Subscribe(context.Background())
	require.NoError(t, err)

	entries := collect(t, ch)
	require.Len(t, entries, 2)

	assert.Equal(t, "SDXL base", entries[0].DisplayName())
	assert.Equal(t, "detail.safetensors", entries[1].DisplayName(), "label falls back to filename")

	req := entries[1].Request()
	assert.Equal(t, "https://remote/detail.safetensors", req.URL)
	assert.Equal(t, "loras", req.Directory)
	assert.Equal(t, "/models/loras/quality", req.Destination)
}

func TestManifestSource_SkipsIncompleteEntries(t *testing.T) {
	path := writeManifest(t, `[
		{"url": "https://remote/a.bin"},
		{"url": "https://remote/b.bin", "directory": "vae", "filename": "b.bin"}
	]`)

	ch, err := scan.NewManifestSource(path).Subscribe(context.Background())
	require.NoError(t, err)

	entries := collect(t, ch)
	require.Len(t, entries, 1)
	assert.Equal(t, "b.bin", entries[0].Filename)
}

func TestManifestSource_Failures(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{
			name: "missing file",
			path: filepath.Join(t.TempDir(), "nope.json"),
		},
		{
			name: "invalid json",
			path: writeManifest(t, `{not json`),
		},
		{
			name: "no usable entries",
			path: writeManifest(t, `[{"label": "incomplete"}]`),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := scan.NewManifestSource(tc.path).Subscribe(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestManifestSource_CancelStopsDelivery(t *testing.T) {
	path := writeManifest(t, `[
		{"url": "https://remote/a.bin", "directory": "vae", "filename": "a.bin"},
		{"url": "https://remote/b.bin", "directory": "vae", "filename": "b.bin"}
	]`)

	ctx, cancel := context.WithCancel(context.Background())

	ch, err := scan.NewManifestSource(path).Subscribe(ctx)
	require.NoError(t, err)

	cancel()

	// The channel must close even though nothing drains it.
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}
