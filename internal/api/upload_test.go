package api_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chanjing-ai/chanjing-sdk/internal/api"
)

// newUploadMock wires the three-step upload flow (slot, PUT, sync poll)
// into a single mock server that grants upload slots pointing back at
// itself, and counts the requests it receives. fileStatus controls the
// file_detail answer and putStatus the PUT response.
func newUploadMock(t *testing.T, fileStatus int, putStatus int) (*api.Client, *atomic.Int64) {
	t.Helper()

	requests := &atomic.Int64{}

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/open/v1/common/create_upload_url", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		require.Equal(t, http.MethodGet, r.Method)
		require.NotEmpty(t, r.URL.Query().Get("service"))
		require.NotEmpty(t, r.URL.Query().Get("name"))

		writeEnvelope(w, 0, "", map[string]string{
			"sign_url":  server.URL + "/put-here",
			"file_id":   "file-1",
			"full_path": server.URL + "/files/file-1",
			"mime_type": "audio/wav",
		})
	})

	mux.HandleFunc("/put-here", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		require.Equal(t, http.MethodPut, r.Method)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NotEmpty(t, body)

		w.WriteHeader(putStatus)
	})

	mux.HandleFunc("/open/v1/common/file_detail", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		require.Equal(t, "file-1", r.URL.Query().Get("id"))

		writeEnvelope(w, 0, "", map[string]int{"status": fileStatus})
	})

	return createTestClient(t, server.URL), requests
}

func writeTestFile(t *testing.T, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	return path
}

func TestUploadHappyPath(t *testing.T) {
	t.Parallel()

	client, _ := newUploadMock(t, 1, http.StatusOK)
	uploader := api.NewUploader(client, createTestLogger(t))

	path := writeTestFile(t, "clip.wav", []byte("audio bytes"))

	var lastPercent int

	handle, err := uploader.Upload(
		context.Background(),
		path,
		"prompt_audio",
		func(percent int, _ string) { lastPercent = percent },
	)
	require.NoError(t, err)

	assert.Equal(t, "file-1", handle.FileID)
	assert.Contains(t, handle.URL, "/files/file-1")
	assert.Len(t, handle.ContentHash, 64)
	assert.Equal(t, 100, lastPercent)
}

func TestUploadReusesIdenticalContent(t *testing.T) {
	t.Parallel()

	client, requests := newUploadMock(t, 1, http.StatusOK)
	uploader := api.NewUploader(client, createTestLogger(t))

	path := writeTestFile(t, "clip.wav", []byte("audio bytes"))

	first, err := uploader.Upload(context.Background(), path, "prompt_audio", nil)
	require.NoError(t, err)

	requestsAfterFirst := requests.Load()

	// Same bytes under a different name reuse the handle without any
	// further requests.
	copyPath := writeTestFile(t, "copy.wav", []byte("audio bytes"))

	second, err := uploader.Upload(context.Background(), copyPath, "prompt_audio", nil)
	require.NoError(t, err)

	assert.Equal(t, first.FileID, second.FileID)
	assert.Equal(t, requestsAfterFirst, requests.Load())
}

func TestUploadDistinctServicesDoNotShareHandles(t *testing.T) {
	t.Parallel()

	client, requests := newUploadMock(t, 1, http.StatusOK)
	uploader := api.NewUploader(client, createTestLogger(t))

	path := writeTestFile(t, "clip.wav", []byte("audio bytes"))

	_, err := uploader.Upload(context.Background(), path, "prompt_audio", nil)
	require.NoError(t, err)

	requestsAfterFirst := requests.Load()

	_, err = uploader.Upload(context.Background(), path, "lip_sync_audio", nil)
	require.NoError(t, err)

	assert.Greater(t, requests.Load(), requestsAfterFirst)
}

func TestUploadRejectedBySafetyCheck(t *testing.T) {
	t.Parallel()

	client, _ := newUploadMock(t, 98, http.StatusOK)
	uploader := api.NewUploader(client, createTestLogger(t))

	path := writeTestFile(t, "clip.wav", []byte("audio bytes"))

	_, err := uploader.Upload(context.Background(), path, "prompt_audio", nil)

	require.ErrorIs(t, err, api.ErrUpload)
	assert.Contains(t, err.Error(), "safety")
}

func TestUploadSyncDeadline(t *testing.T) {
	t.Parallel()

	// Status 0 never becomes ready, so the sync deadline has to fire.
	client, _ := newUploadMock(t, 0, http.StatusOK)
	uploader := api.NewUploader(client, createTestLogger(t))

	path := writeTestFile(t, "clip.wav", []byte("audio bytes"))

	_, err := uploader.Upload(context.Background(), path, "prompt_audio", nil)

	require.ErrorIs(t, err, api.ErrUpload)
	assert.Contains(t, err.Error(), "not synced")
}

func TestUploadPutFailure(t *testing.T) {
	t.Parallel()

	client, _ := newUploadMock(t, 1, http.StatusForbidden)
	uploader := api.NewUploader(client, createTestLogger(t))

	path := writeTestFile(t, "clip.wav", []byte("audio bytes"))

	_, err := uploader.Upload(context.Background(), path, "prompt_audio", nil)

	require.ErrorIs(t, err, api.ErrUpload)
}

func TestUploadMissingFile(t *testing.T) {
	t.Parallel()

	client, _ := newUploadMock(t, 1, http.StatusOK)
	uploader := api.NewUploader(client, createTestLogger(t))

	_, err := uploader.Upload(
		context.Background(),
		filepath.Join(t.TempDir(), "absent.wav"),
		"prompt_audio",
		nil,
	)

	require.ErrorIs(t, err, api.ErrUpload)
}

func TestFormatSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "512.0 B", api.FormatSize(512))
	assert.Equal(t, "1.0 KB", api.FormatSize(1024))
	assert.Equal(t, "1.5 MB", api.FormatSize(1536*1024))
}
