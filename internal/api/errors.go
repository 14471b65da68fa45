package api

import "errors"

// Static error kinds for the transport layer. The root package re-exports
// these so callers can classify failures with errors.Is.
var (
	// ErrConfiguration indicates credentials the platform rejected.
	ErrConfiguration = errors.New("configuration error")
	// ErrValidation indicates request parameters the platform rejected.
	ErrValidation = errors.New("invalid request")
	// ErrTransport indicates a network-level failure that persisted
	// through the bounded retries.
	ErrTransport = errors.New("transport failure")
	// ErrRemote indicates a platform-side failure.
	ErrRemote = errors.New("platform error")
	// ErrUpload indicates a failed file transfer to the platform.
	ErrUpload = errors.New("upload failed")
	// ErrDownload indicates a failed artifact download.
	ErrDownload = errors.New("download failed")
)
