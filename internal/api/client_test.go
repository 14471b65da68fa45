// Package api_test tests the signed transport against mock platform servers.
package api_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chanjing-ai/chanjing-sdk/internal/api"
	"github.com/chanjing-ai/chanjing-sdk/internal/auth"
)

const (
	testAppID     = "test-app"
	testSecretKey = "test-secret"
)

// createTestLogger creates a logger writing into the test's temp directory.
func createTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	lg, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = lg.Close() })

	return lg
}

// fastOptions returns Options tuned so tests never wait on rate limits or
// retry backoff.
func fastOptions(baseURL string) api.Options {
	return api.Options{
		BaseURL:       baseURL,
		RetryInterval: time.Millisecond,
		Intervals: map[string]time.Duration{
			api.RateLipSync:    time.Millisecond,
			api.RateVoiceClone: time.Millisecond,
			api.RateTTS:        time.Millisecond,
			api.RateDefault:    time.Millisecond,
		},
		FileSyncInterval: time.Millisecond,
		FileSyncDeadline: 250 * time.Millisecond,
	}
}

// createTestClient wires a Client against the given mock server URL.
func createTestClient(t *testing.T, baseURL string) *api.Client {
	t.Helper()

	signer := auth.NewSigner(auth.Credentials{
		AppID:     testAppID,
		SecretKey: testSecretKey,
	})

	return api.New(signer, fastOptions(baseURL), createTestLogger(t))
}

// createMockServer creates a platform mock routing by request path.
func createMockServer(
	t *testing.T,
	responses map[string]func(w http.ResponseWriter, r *http.Request),
) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(
		http.HandlerFunc(
			func(responseWriter http.ResponseWriter, request *http.Request) {
				handler, exists := responses[request.URL.Path]
				if !exists {
					t.Errorf("Unexpected request path: %s", request.URL.Path)
					responseWriter.WriteHeader(http.StatusNotFound)

					return
				}

				handler(responseWriter, request)
			},
		),
	)

	t.Cleanup(server.Close)

	return server
}

// writeEnvelope writes a platform business envelope around data.
func writeEnvelope(w http.ResponseWriter, code int, msg string, data any) {
	payload, _ := json.Marshal(data)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code": code,
		"msg":  msg,
		"data": json.RawMessage(payload),
	})
}

func TestDoJSONReturnsEnvelopeData(t *testing.T) {
	t.Parallel()

	server := createMockServer(t, map[string]func(w http.ResponseWriter, r *http.Request){
		"/open/v1/ping": func(w http.ResponseWriter, _ *http.Request) {
			writeEnvelope(w, 0, "", map[string]string{"value": "pong"})
		},
	})

	client := createTestClient(t, server.URL)

	raw, err := client.DoJSON(
		context.Background(),
		http.MethodGet,
		"/open/v1/ping",
		nil,
		nil,
		api.RateDefault,
	)
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "pong", decoded["value"])
}

func TestDoJSONSignsEveryRequest(t *testing.T) {
	t.Parallel()

	server := createMockServer(t, map[string]func(w http.ResponseWriter, r *http.Request){
		"/open/v1/create_audio_task": func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)

			timestamp := r.Header.Get("X-Timestamp")
			nonce := r.Header.Get("X-Nonce")
			require.Equal(t, testAppID, r.Header.Get("X-App-Id"))
			require.NotEmpty(t, timestamp)
			require.NotEmpty(t, nonce)

			bodyDigest := sha256.Sum256(body)
			canonical := fmt.Sprintf(
				"%s\n%s\n%s\n%s\n%s",
				r.Method,
				r.URL.Path,
				timestamp,
				nonce,
				hex.EncodeToString(bodyDigest[:]),
			)
			mac := hmac.New(sha256.New, []byte(testSecretKey))
			mac.Write([]byte(canonical))

			require.Equal(
				t,
				hex.EncodeToString(mac.Sum(nil)),
				r.Header.Get("X-Signature"),
			)
			require.Equal(t, "application/json", r.Header.Get("Content-Type"))

			writeEnvelope(w, 0, "", map[string]string{"id": "task-1"})
		},
	})

	client := createTestClient(t, server.URL)

	_, err := client.DoJSON(
		context.Background(),
		http.MethodPost,
		"/open/v1/create_audio_task",
		nil,
		map[string]string{"text": "hello"},
		api.RateTTS,
	)
	require.NoError(t, err)
}

func TestDoJSONBusinessErrorIsRemote(t *testing.T) {
	t.Parallel()

	server := createMockServer(t, map[string]func(w http.ResponseWriter, r *http.Request){
		"/open/v1/ping": func(w http.ResponseWriter, _ *http.Request) {
			writeEnvelope(w, 20001, "internal platform error", nil)
		},
	})

	client := createTestClient(t, server.URL)

	_, err := client.DoJSON(
		context.Background(),
		http.MethodGet,
		"/open/v1/ping",
		nil,
		nil,
		api.RateDefault,
	)

	require.ErrorIs(t, err, api.ErrRemote)
	assert.Contains(t, err.Error(), "internal platform error")
}

func TestDoJSONAuthCodeIsConfiguration(t *testing.T) {
	t.Parallel()

	server := createMockServer(t, map[string]func(w http.ResponseWriter, r *http.Request){
		"/open/v1/ping": func(w http.ResponseWriter, _ *http.Request) {
			writeEnvelope(w, 10400, "invalid signature", nil)
		},
	})

	client := createTestClient(t, server.URL)

	_, err := client.DoJSON(
		context.Background(),
		http.MethodGet,
		"/open/v1/ping",
		nil,
		nil,
		api.RateDefault,
	)

	require.ErrorIs(t, err, api.ErrConfiguration)
}

func TestDoJSONBillingMessageIsAnnotated(t *testing.T) {
	t.Parallel()

	server := createMockServer(t, map[string]func(w http.ResponseWriter, r *http.Request){
		"/open/v1/ping": func(w http.ResponseWriter, _ *http.Request) {
			writeEnvelope(w, 30001, "余额不足", nil)
		},
	})

	client := createTestClient(t, server.URL)

	_, err := client.DoJSON(
		context.Background(),
		http.MethodGet,
		"/open/v1/ping",
		nil,
		nil,
		api.RateDefault,
	)

	require.ErrorIs(t, err, api.ErrRemote)
	assert.Contains(t, err.Error(), "余额不足")
}

func TestDoJSONHTTPStatusMapping(t *testing.T) {
	t.Parallel()

	server := createMockServer(t, map[string]func(w http.ResponseWriter, r *http.Request){
		"/bad-request": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		},
		"/unauthorized": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		},
		"/server-error": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
	})

	client := createTestClient(t, server.URL)
	ctx := context.Background()

	_, err := client.DoJSON(ctx, http.MethodGet, "/bad-request", nil, nil, api.RateDefault)
	require.ErrorIs(t, err, api.ErrValidation)

	_, err = client.DoJSON(ctx, http.MethodGet, "/unauthorized", nil, nil, api.RateDefault)
	require.ErrorIs(t, err, api.ErrConfiguration)

	_, err = client.DoJSON(ctx, http.MethodGet, "/server-error", nil, nil, api.RateDefault)
	require.ErrorIs(t, err, api.ErrRemote)
}

func TestDoJSONUnreachableServerIsTransport(t *testing.T) {
	t.Parallel()

	server := createMockServer(t, map[string]func(w http.ResponseWriter, r *http.Request){})
	baseURL := server.URL
	server.Close()

	client := createTestClient(t, baseURL)

	_, err := client.DoJSON(
		context.Background(),
		http.MethodGet,
		"/open/v1/ping",
		nil,
		nil,
		api.RateDefault,
	)

	require.ErrorIs(t, err, api.ErrTransport)
}

func TestDoJSONRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	attempts := 0

	server := createMockServer(t, map[string]func(w http.ResponseWriter, r *http.Request){
		"/open/v1/ping": func(w http.ResponseWriter, _ *http.Request) {
			attempts++
			if attempts == 1 {
				// Truncate the connection so the client sees a
				// transport failure on the first attempt.
				hj, ok := w.(http.Hijacker)
				require.True(t, ok)

				conn, _, err := hj.Hijack()
				require.NoError(t, err)
				_ = conn.Close()

				return
			}

			writeEnvelope(w, 0, "", map[string]string{"value": "pong"})
		},
	})

	client := createTestClient(t, server.URL)

	_, err := client.DoJSON(
		context.Background(),
		http.MethodGet,
		"/open/v1/ping",
		nil,
		nil,
		api.RateDefault,
	)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestBillingHint(t *testing.T) {
	t.Parallel()

	assert.NotEmpty(t, api.BillingHint("操作失败: 蝉豆不足"))
	assert.NotEmpty(t, api.BillingHint("账户余额不足, 请充值"))
	assert.Empty(t, api.BillingHint("task not found"))
}
