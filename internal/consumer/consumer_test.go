package consumer_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hradec/comfyui-direct-model-downloader/internal/button"
	"github.com/hradec/comfyui-direct-model-downloader/internal/consumer"
	"github.com/hradec/comfyui-direct-model-downloader/internal/event"
	"github.com/hradec/comfyui-direct-model-downloader/internal/executor"
	"github.com/hradec/comfyui-direct-model-downloader/internal/status"
	httpPkg "github.com/hradec/comfyui-direct-model-downloader/pkg/http"
)

func int64Ptr(v int64) *int64 {
	return &v
}

func streamHandler(t *testing.T, fn func(w http.ResponseWriter, flush func())) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)

		w.Header().Set("Content-Type", event.ContentType)
		w.WriteHeader(http.StatusOK)

		fn(w, flusher.Flush)
	}
}

func writeEvent(t *testing.T, w http.ResponseWriter, ev event.Event) {
	t.Helper()

	encoded, err := event.Encode(ev)
	require.NoError(t, err)

	_, err = w.Write(encoded)
	require.NoError(t, err)
}

func triggeredMachine(t *testing.T, opts ...button.Option) *button.Machine {
	t.Helper()

	m := button.New("Download", opts...)
	require.True(t, m.Trigger())

	return m
}

func TestDownload_StreamToSuccess(t *testing.T) {
	server := httptest.NewServer(streamHandler(t, func(w http.ResponseWriter, flush func()) {
		writeEvent(t, w, event.Start(int64Ptr(1000), "/models/checkpoints/model.safetensors"))
		flush()

		for _, downloaded := range []int64{250, 500, 750, 1000} {
			writeEvent(t, w, event.Progress(downloaded, int64Ptr(1000)))
			flush()
		}

		writeEvent(t, w, event.Completed("/models/checkpoints/model.safetensors", 1000))
	}))
	defer server.Close()

	m := triggeredMachine(t, button.WithRenderInterval(time.Nanosecond))
	c := consumer.New(httpPkg.NewClient(), server.URL)

	err := c.Download(context.Background(), executor.Request{
		URL:       "https://remote/model.safetensors",
		Directory: "checkpoints",
		Filename:  "model.safetensors",
	}, m)
	require.NoError(t, err)

	snap := m.Snapshot()
	assert.Equal(t, status.Success, snap.Status)
	assert.Equal(t, "/models/checkpoints/model.safetensors", snap.Path)
	assert.InDelta(t, 1.0, snap.Ratio, 1e-9)
}

func TestDownload_EventSplitAcrossWrites(t *testing.T) {
	// One event arrives in three network reads; the line buffer must
	// reassemble it before parsing.
	line := `{"status":"progress","downloaded":512,"total":1024}` + "\n"

	server := httptest.NewServer(streamHandler(t, func(w http.ResponseWriter, flush func()) {
		writeEvent(t, w, event.Start(int64Ptr(1024), "/models/a.bin"))
		flush()

		for _, fragment := range []string{line[:10], line[10:30], line[30:]} {
			_, err := fmt.Fprint(w, fragment)
			require.NoError(t, err)
			flush()
		}

		writeEvent(t, w, event.Completed("/models/a.bin", 1024))
	}))
	defer server.Close()

	m := triggeredMachine(t, button.WithRenderInterval(time.Nanosecond))
	c := consumer.New(httpPkg.NewClient(), server.URL)

	err := c.Download(context.Background(), executor.Request{URL: "https://remote/a.bin", Directory: "checkpoints", Filename: "a.bin"}, m)
	require.NoError(t, err)

	snap := m.Snapshot()
	assert.Equal(t, status.Success, snap.Status)
	assert.Equal(t, int64(1024), snap.Downloaded)
}

func TestDownload_StreamErrorEvent(t *testing.T) {
	server := httptest.NewServer(streamHandler(t, func(w http.ResponseWriter, flush func()) {
		writeEvent(t, w, event.Start(int64Ptr(1000), "/models/a.bin"))
		flush()
		writeEvent(t, w, event.Error("connection reset by peer"))
	}))
	defer server.Close()

	m := triggeredMachine(t)
	c := consumer.New(httpPkg.NewClient(), server.URL)

	err := c.Download(context.Background(), executor.Request{URL: "https://remote/a.bin", Directory: "checkpoints", Filename: "a.bin"}, m)
	require.NoError(t, err, "a server-reported failure is carried in the state machine, not the return value")

	snap := m.Snapshot()
	assert.Equal(t, status.Failed, snap.Status)
	assert.Equal(t, "connection reset by peer", snap.Message)
}

func TestDownload_MalformedLinesSkipped(t *testing.T) {
	server := httptest.NewServer(streamHandler(t, func(w http.ResponseWriter, flush func()) {
		writeEvent(t, w, event.Start(int64Ptr(100), "/models/a.bin"))
		_, err := fmt.Fprint(w, "this is not json\n")
		require.NoError(t, err)
		flush()
		writeEvent(t, w, event.Completed("/models/a.bin", 100))
	}))
	defer server.Close()

	m := triggeredMachine(t)
	c := consumer.New(httpPkg.NewClient(), server.URL)

	err := c.Download(context.Background(), executor.Request{URL: "https://remote/a.bin", Directory: "checkpoints", Filename: "a.bin"}, m)
	require.NoError(t, err)

	assert.Equal(t, status.Success, m.Snapshot().Status)
}

func TestDownload_TruncatedStream(t *testing.T) {
	server := httptest.NewServer(streamHandler(t, func(w http.ResponseWriter, flush func()) {
		writeEvent(t, w, event.Start(int64Ptr(1000), "/models/a.bin"))
		writeEvent(t, w, event.Progress(400, int64Ptr(1000)))
		// Handler returns without a terminal event: the connection
		// closes mid-stream.
	}))
	defer server.Close()

	m := triggeredMachine(t, button.WithRenderInterval(time.Nanosecond))
	c := consumer.New(httpPkg.NewClient(), server.URL)

	err := c.Download(context.Background(), executor.Request{URL: "https://remote/a.bin", Directory: "checkpoints", Filename: "a.bin"}, m)
	require.ErrorIs(t, err, consumer.ErrInterrupted)

	snap := m.Snapshot()
	assert.Equal(t, status.Failed, snap.Status)
	assert.Equal(t, "Download interrupted", snap.Message)
}

func TestDownload_Stall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)

		w.Header().Set("Content-Type", event.ContentType)
		w.WriteHeader(http.StatusOK)

		writeEvent(t, w, event.Start(int64Ptr(1000), "/models/a.bin"))
		flusher.Flush()

		// Never produce another byte until the client gives up.
		<-r.Context().Done()
	}))
	defer server.Close()

	m := triggeredMachine(t)
	c := consumer.New(httpPkg.NewClient(), server.URL, consumer.WithStallTimeout(100*time.Millisecond))

	done := make(chan error, 1)
	go func() {
		done <- c.Download(context.Background(), executor.Request{URL: "https://remote/a.bin", Directory: "checkpoints", Filename: "a.bin"}, m)
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, consumer.ErrStalled)
	case <-time.After(5 * time.Second):
		t.Fatal("stalled stream was never abandoned")
	}

	snap := m.Snapshot()
	assert.Equal(t, status.Failed, snap.Status)
	assert.Equal(t, "Download stalled", snap.Message)
}

func TestDownload_ExistsShortCircuit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "exists", "path": "/models/checkpoints/model.safetensors"})
	}))
	defer server.Close()

	m := triggeredMachine(t)
	c := consumer.New(httpPkg.NewClient(), server.URL)

	err := c.Download(context.Background(), executor.Request{URL: "https://remote/model.safetensors", Directory: "checkpoints", Filename: "model.safetensors"}, m)
	require.NoError(t, err)

	snap := m.Snapshot()
	assert.Equal(t, status.Exists, snap.Status)
	assert.Equal(t, "/models/checkpoints/model.safetensors", snap.Path)
}

func TestDownload_ServerRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "unknown directory: unet"})
	}))
	defer server.Close()

	m := triggeredMachine(t)
	c := consumer.New(httpPkg.NewClient(), server.URL)

	err := c.Download(context.Background(), executor.Request{URL: "https://remote/a.bin", Directory: "unet", Filename: "a.bin"}, m)
	require.Error(t, err)

	snap := m.Snapshot()
	assert.Equal(t, status.Failed, snap.Status)
	assert.Equal(t, "unknown directory: unet", snap.Message)
}

func TestDownload_UnknownSyncStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "paused"})
	}))
	defer server.Close()

	m := triggeredMachine(t)
	c := consumer.New(httpPkg.NewClient(), server.URL)

	err := c.Download(context.Background(), executor.Request{URL: "https://remote/a.bin", Directory: "checkpoints", Filename: "a.bin"}, m)
	require.ErrorIs(t, err, consumer.ErrProtocol)
	assert.Equal(t, status.Failed, m.Snapshot().Status)
}

func TestDownload_ConnectionRefused(t *testing.T) {
	m := triggeredMachine(t)
	c := consumer.New(httpPkg.NewClient(), "http://127.0.0.1:1/internal/download_model")

	err := c.Download(context.Background(), executor.Request{URL: "https://remote/a.bin", Directory: "checkpoints", Filename: "a.bin"}, m)
	require.Error(t, err)
	assert.Equal(t, status.Failed, m.Snapshot().Status)
}
