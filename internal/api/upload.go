package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/cenkalti/backoff/v4"
)

// Platform endpoints for the two-step upload.
const (
	apiCreateUploadURL = "/open/v1/common/create_upload_url"
	apiFileDetail      = "/open/v1/common/file_detail"
)

// Platform file sync statuses.
const (
	fileStatusReady   = 1
	fileStatusUnsafe  = 98
	fileStatusDeleted = 99
	fileStatusCleaned = 100
)

// putRetries bounds retry attempts for the PUT step.
const putRetries = 2

// progressStep is the minimum percent delta between upload progress reports.
const progressStep = 20

// RemoteFile identifies a file the platform can read. Produced by Uploader
// and reused within a process when the same content is uploaded again.
type RemoteFile struct {
	LocalPath   string
	FileID      string
	URL         string
	ContentHash string
}

// Uploader transmits local files to the platform. A handle is reused when a
// file with identical content was already uploaded for the same service in
// this process.
type Uploader struct {
	client *Client
	log    *logger.Logger

	mu       sync.Mutex
	uploaded map[string]RemoteFile
}

// NewUploader creates an Uploader on top of client.
func NewUploader(client *Client, log *logger.Logger) *Uploader {
	return &Uploader{
		client:   client,
		log:      log,
		uploaded: make(map[string]RemoteFile),
	}
}

// createUploadResponse is the platform's answer to create_upload_url.
type createUploadResponse struct {
	SignURL  string `json:"sign_url"`
	FileID   string `json:"file_id"`
	FullPath string `json:"full_path"`
	MimeType string `json:"mime_type"`
}

// fileDetailResponse carries the sync status of an uploaded file.
type fileDetailResponse struct {
	Status int `json:"status"`
}

// Upload transmits the file at localPath under the given platform service
// tag and waits until the platform reports the file usable. onProgress, if
// non-nil, receives transfer progress in steps of at least 20 points.
func (u *Uploader) Upload(
	ctx context.Context,
	localPath, service string,
	onProgress func(percent int, message string),
) (RemoteFile, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return RemoteFile{}, fmt.Errorf("%w: reading %s: %v", ErrUpload, localPath, err)
	}

	digest := sha256.Sum256(data)
	contentHash := hex.EncodeToString(digest[:])
	reuseKey := service + ":" + contentHash

	u.mu.Lock()
	handle, reused := u.uploaded[reuseKey]
	u.mu.Unlock()

	if reused {
		u.log.Info("Reusing uploaded file for %s (hash %.12s)", localPath, contentHash)

		return handle, nil
	}

	u.log.Info(
		"Uploading %s (%s) as %s",
		filepath.Base(localPath),
		FormatSize(int64(len(data))),
		service,
	)

	slot, err := u.createSlot(ctx, localPath, service)
	if err != nil {
		return RemoteFile{}, err
	}

	putErr := u.put(ctx, slot, data, onProgress)
	if putErr != nil {
		return RemoteFile{}, putErr
	}

	syncErr := u.waitSynced(ctx, slot.FileID)
	if syncErr != nil {
		return RemoteFile{}, syncErr
	}

	handle = RemoteFile{
		LocalPath:   localPath,
		FileID:      slot.FileID,
		URL:         slot.FullPath,
		ContentHash: contentHash,
	}

	u.mu.Lock()
	u.uploaded[reuseKey] = handle
	u.mu.Unlock()

	u.log.Info("Upload complete, file_id=%s", slot.FileID)

	return handle, nil
}

// createSlot asks the platform for a signed upload URL and file identity.
func (u *Uploader) createSlot(
	ctx context.Context,
	localPath, service string,
) (createUploadResponse, error) {
	query := url.Values{
		"service": {service},
		"name":    {filepath.Base(localPath)},
	}

	raw, err := u.client.DoJSON(ctx, http.MethodGet, apiCreateUploadURL, query, nil, RateDefault)
	if err != nil {
		return createUploadResponse{}, err
	}

	var slot createUploadResponse

	unmarshalErr := json.Unmarshal(raw, &slot)
	if unmarshalErr != nil {
		return createUploadResponse{}, fmt.Errorf(
			"%w: malformed upload slot response: %v",
			ErrUpload,
			unmarshalErr,
		)
	}

	if slot.SignURL == "" || slot.FileID == "" {
		return createUploadResponse{}, fmt.Errorf(
			"%w: upload slot response missing sign_url or file_id",
			ErrUpload,
		)
	}

	return slot, nil
}

// put streams the file bytes to the signed URL. The signed URL carries its
// own authorization, so the request is not signed again.
func (u *Uploader) put(
	ctx context.Context,
	slot createUploadResponse,
	data []byte,
	onProgress func(percent int, message string),
) error {
	mime := slot.MimeType
	if mime == "" {
		mime = contentTypeBinary
	}

	operation := func() error {
		body := &progressReader{
			data:       data,
			lastPct:    -progressStep,
			onProgress: onProgress,
			log:        u.log,
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPut, slot.SignURL, body)
		if err != nil {
			return backoff.Permanent(
				fmt.Errorf("%w: building upload request: %v", ErrUpload, err),
			)
		}

		req.ContentLength = int64(len(data))
		req.Header.Set(headerContentType, mime)

		resp, err := u.client.transferClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: uploading to signed URL: %v", ErrTransport, err)
		}

		defer resp.Body.Close()

		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(
				fmt.Errorf("%w: file upload failed: HTTP %d", ErrUpload, resp.StatusCode),
			)
		}

		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = u.client.opts.RetryInterval
	policy.MaxElapsedTime = 0

	return backoff.Retry(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, putRetries), ctx),
	)
}

// waitSynced polls file_detail until the platform reports the file ready.
// Transient query failures are tolerated until the sync deadline passes.
func (u *Uploader) waitSynced(ctx context.Context, fileID string) error {
	start := time.Now()
	query := url.Values{"id": {fileID}}

	for {
		raw, err := u.client.DoJSON(ctx, http.MethodGet, apiFileDetail, query, nil, RateDefault)

		switch {
		case err == nil:
			done, statusErr := decodeFileStatus(fileID, raw)
			if statusErr != nil {
				return statusErr
			}

			if done {
				u.log.Info(
					"File %s synced in %s",
					fileID,
					time.Since(start).Round(time.Second),
				)

				return nil
			}
		case errors.Is(err, ErrConfiguration) || errors.Is(err, ErrValidation):
			return err
		default:
			u.log.Warn("File status query for %s failed: %v", fileID, err)
		}

		if time.Since(start) > u.client.opts.FileSyncDeadline {
			return fmt.Errorf(
				"%w: file %s not synced after %s",
				ErrUpload,
				fileID,
				u.client.opts.FileSyncDeadline,
			)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: upload cancelled: %v", ErrUpload, ctx.Err())
		case <-time.After(u.client.opts.FileSyncInterval):
		}
	}
}

// decodeFileStatus interprets a file_detail response. It returns true when
// the file is usable and an error when the platform rejected the file.
func decodeFileStatus(fileID string, raw json.RawMessage) (bool, error) {
	var detail fileDetailResponse

	err := json.Unmarshal(raw, &detail)
	if err != nil {
		return false, nil // malformed status is treated as "not yet"
	}

	switch detail.Status {
	case fileStatusReady:
		return true, nil
	case fileStatusUnsafe:
		return false, fmt.Errorf(
			"%w: content safety check rejected file %s",
			ErrUpload,
			fileID,
		)
	case fileStatusDeleted, fileStatusCleaned:
		return false, fmt.Errorf(
			"%w: file %s was removed by the platform (status %d)",
			ErrUpload,
			fileID,
			detail.Status,
		)
	default:
		return false, nil
	}
}

// progressReader reports read progress while the HTTP client consumes the
// upload body.
type progressReader struct {
	data       []byte
	pos        int
	lastPct    int
	onProgress func(percent int, message string)
	log        *logger.Logger
}

func (r *progressReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}

	n := copy(p, r.data[r.pos:])
	r.pos += n

	pct := r.pos * 100 / len(r.data)
	if pct >= r.lastPct+progressStep || pct >= 100 {
		message := fmt.Sprintf("uploading: %d%%", pct)

		r.log.Info(
			"%s (%s/%s)",
			message,
			FormatSize(int64(r.pos)),
			FormatSize(int64(len(r.data))),
		)

		r.lastPct = pct

		if r.onProgress != nil {
			r.onProgress(pct, message)
		}
	}

	return n, nil
}

// FormatSize renders a byte count as a human-readable string.
func FormatSize(n int64) string {
	size := float64(n)

	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}

		size /= 1024
	}

	return fmt.Sprintf("%.1f TB", size)
}
