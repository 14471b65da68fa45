package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// DownloadFile streams the artifact at rawURL to dest, creating parent
// directories as needed, and returns the number of bytes written. The
// destination handle is always closed, and a partial file is removed on any
// failure path. It does not retry.
func (c *Client) DownloadFile(ctx context.Context, rawURL, dest string) (int64, error) {
	if rawURL == "" {
		return 0, fmt.Errorf("%w: empty artifact URL", ErrDownload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("%w: building request for %s: %v", ErrDownload, rawURL, err)
	}

	resp, err := c.transferClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: fetching %s: %v", ErrDownload, rawURL, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: HTTP %s fetching %s", ErrDownload, resp.Status, rawURL)
	}

	dir := filepath.Dir(dest)
	if dir != "." {
		dirErr := os.MkdirAll(dir, dirPermissions)
		if dirErr != nil {
			return 0, fmt.Errorf("%w: creating %s: %v", ErrDownload, dir, dirErr)
		}
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePermissions)
	if err != nil {
		return 0, fmt.Errorf("%w: creating %s: %v", ErrDownload, dest, err)
	}

	written, err := io.Copy(out, resp.Body)

	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(dest)

		return 0, fmt.Errorf("%w: writing %s: %v", ErrDownload, dest, err)
	}

	c.log.Info("Downloaded %s to %s", FormatSize(written), dest)

	return written, nil
}
