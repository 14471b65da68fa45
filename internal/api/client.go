// Package api implements the signed HTTP transport for the Chanjing
// platform: request signing, bounded retries with backoff, per-family rate
// limiting, file upload and artifact download.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/chanjing-ai/chanjing-sdk/internal/auth"
)

// DefaultBaseURL is the production platform endpoint.
const DefaultBaseURL = "https://open-api.chanjing.cc"

// HTTP headers and content types.
const (
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"
	contentTypeBinary = "application/octet-stream"
)

// Rate-limit families. The platform throttles job creation per family, so
// requests in the same family keep a minimum spacing between them.
const (
	RateLipSync    = "lip_sync"
	RateVoiceClone = "voice_clone"
	RateTTS        = "tts"
	RateDefault    = "default"
)

// Default minimum spacing per family, matching the platform's limits.
var defaultIntervals = map[string]time.Duration{
	RateLipSync:    6 * time.Second,
	RateVoiceClone: 6 * time.Second,
	RateTTS:        500 * time.Millisecond,
	RateDefault:    time.Second,
}

// Business codes the platform uses for authentication failures.
const (
	codeAuthInvalid = 10400
	codeAuthExpired = 10401
)

// Defaults applied by New.
const (
	defaultTimeout         = 30 * time.Second
	defaultTransferTimeout = 5 * time.Minute
	defaultMaxRetries      = 3
	defaultRetryInterval   = 500 * time.Millisecond
	maxRetryInterval       = 5 * time.Second
	defaultSyncInterval    = 3 * time.Second
	defaultSyncDeadline    = 90 * time.Second
	errBodyLimit           = 200
)

// File and directory permissions.
const (
	filePermissions = 0o600
	dirPermissions  = 0o750
)

// Options configures a Client. Zero values select production defaults.
type Options struct {
	// BaseURL overrides the production platform endpoint.
	BaseURL string
	// Timeout bounds individual JSON requests.
	Timeout time.Duration
	// TransferTimeout bounds file uploads and artifact downloads.
	TransferTimeout time.Duration
	// MaxRetries bounds retry attempts after a transient network failure.
	MaxRetries int
	// RetryInterval is the initial backoff between retry attempts.
	RetryInterval time.Duration
	// Intervals overrides the per-family minimum request spacing.
	Intervals map[string]time.Duration
	// FileSyncInterval and FileSyncDeadline bound the wait for an
	// uploaded file to become usable on the platform.
	FileSyncInterval time.Duration
	FileSyncDeadline time.Duration
}

func (o Options) withDefaults() Options {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}

	o.BaseURL = strings.TrimRight(o.BaseURL, "/")

	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}

	if o.TransferTimeout <= 0 {
		o.TransferTimeout = defaultTransferTimeout
	}

	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}

	if o.RetryInterval <= 0 {
		o.RetryInterval = defaultRetryInterval
	}

	if o.FileSyncInterval <= 0 {
		o.FileSyncInterval = defaultSyncInterval
	}

	if o.FileSyncDeadline <= 0 {
		o.FileSyncDeadline = defaultSyncDeadline
	}

	return o
}

// Client issues signed requests to the platform and decodes its business
// envelope. It is safe for concurrent use.
type Client struct {
	httpClient     *http.Client
	transferClient *http.Client
	baseURL        string
	signer         *auth.Signer
	limiters       map[string]*rate.Limiter
	opts           Options
	log            *logger.Logger
}

// New creates a Client that signs every request with signer.
func New(signer *auth.Signer, opts Options, log *logger.Logger) *Client {
	opts = opts.withDefaults()

	limiters := make(map[string]*rate.Limiter, len(defaultIntervals))

	for family, interval := range defaultIntervals {
		if override, ok := opts.Intervals[family]; ok && override > 0 {
			interval = override
		}

		limiters[family] = rate.NewLimiter(rate.Every(interval), 1)
	}

	return &Client{
		httpClient:     &http.Client{Timeout: opts.Timeout},
		transferClient: &http.Client{Timeout: opts.TransferTimeout},
		baseURL:        opts.BaseURL,
		signer:         signer,
		limiters:       limiters,
		opts:           opts,
		log:            log,
	}
}

// envelope is the platform's business response wrapper.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// DoJSON sends a signed JSON request, honoring the family's rate limit and
// retrying transient network failures with backoff, and returns the raw
// data field of the platform envelope.
func (c *Client) DoJSON(
	ctx context.Context,
	method, path string,
	query url.Values,
	payload any,
	family string,
) (json.RawMessage, error) {
	var body []byte

	if payload != nil {
		var err error

		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	waitErr := c.waitTurn(ctx, family)
	if waitErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, waitErr)
	}

	var raw json.RawMessage

	operation := func() error {
		data, err := c.attemptJSON(ctx, method, path, query, body)
		if err != nil {
			if errors.Is(err, ErrTransport) {
				c.log.Warn("Request %s %s failed, will retry: %v", method, path, err)

				return err
			}

			return backoff.Permanent(err)
		}

		raw = data

		return nil
	}

	err := backoff.Retry(operation, c.retryPolicy(ctx))
	if err != nil {
		return nil, err
	}

	return raw, nil
}

// attemptJSON performs one signed request attempt and classifies the
// response into the SDK error taxonomy.
func (c *Client) attemptJSON(
	ctx context.Context,
	method, path string,
	query url.Values,
	body []byte,
) (json.RawMessage, error) {
	status, data, err := c.do(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}

	classifyErr := classifyStatus(status, path, data)
	if classifyErr != nil {
		return nil, classifyErr
	}

	var env envelope

	unmarshalErr := json.Unmarshal(data, &env)
	if unmarshalErr != nil {
		return nil, fmt.Errorf(
			"%w: malformed response from %s: %v",
			ErrRemote,
			path,
			unmarshalErr,
		)
	}

	if env.Code != 0 {
		return nil, businessError(path, env.Code, env.Msg)
	}

	return env.Data, nil
}

// do sends one signed HTTP request and reads the full response body.
func (c *Client) do(
	ctx context.Context,
	method, path string,
	query url.Values,
	body []byte,
) (int, []byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reader io.Reader = http.NoBody
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request for %s: %w", path, err)
	}

	for name, value := range c.signer.SignNow(method, path, body) {
		req.Header.Set(name, value)
	}

	if len(body) > 0 {
		req.Header.Set(headerContentType, contentTypeJSON)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}

	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf(
			"%w: reading response from %s: %v",
			ErrTransport,
			path,
			err,
		)
	}

	return resp.StatusCode, data, nil
}

// classifyStatus maps non-success HTTP statuses to error kinds.
func classifyStatus(status int, path string, body []byte) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf(
			"%w: platform rejected the request signature (HTTP %d): %s",
			ErrConfiguration,
			status,
			trimBody(body),
		)
	case status >= http.StatusInternalServerError:
		return fmt.Errorf(
			"%w: HTTP %d from %s: %s",
			ErrRemote,
			status,
			path,
			trimBody(body),
		)
	case status >= http.StatusBadRequest:
		return fmt.Errorf(
			"%w: HTTP %d from %s: %s",
			ErrValidation,
			status,
			path,
			trimBody(body),
		)
	default:
		return nil
	}
}

// businessError maps a non-zero envelope code to an error kind.
func businessError(path string, code int, msg string) error {
	if msg == "" {
		msg = "unknown error"
	}

	if code == codeAuthInvalid || code == codeAuthExpired {
		return fmt.Errorf(
			"%w: authentication rejected (code=%d): %s; check app_id and secret_key",
			ErrConfiguration,
			code,
			msg,
		)
	}

	if hint := BillingHint(msg); hint != "" {
		return fmt.Errorf("%w: %s (code=%d)", ErrRemote, hint, code)
	}

	return fmt.Errorf(
		"%w: request to %s failed (code=%d): %s",
		ErrRemote,
		path,
		code,
		msg,
	)
}

func (c *Client) waitTurn(ctx context.Context, family string) error {
	limiter, ok := c.limiters[family]
	if !ok {
		limiter = c.limiters[RateDefault]
	}

	return limiter.Wait(ctx)
}

func (c *Client) retryPolicy(ctx context.Context) backoff.BackOffContext {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.opts.RetryInterval
	policy.MaxInterval = maxRetryInterval
	policy.MaxElapsedTime = 0

	return backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(c.opts.MaxRetries)),
		ctx,
	)
}

func trimBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > errBodyLimit {
		text = text[:errBodyLimit] + "..."
	}

	return text
}
