package chanjing

import (
	"github.com/chanjing-ai/chanjing-sdk/internal/api"
	"github.com/chanjing-ai/chanjing-sdk/internal/task"
)

// Error kinds returned by the SDK. Every public operation either returns a
// fully-populated result or an error matchable against exactly one of these
// with errors.Is, always wrapped with a human-readable message.
var (
	// ErrConfiguration indicates missing or rejected credentials.
	ErrConfiguration = api.ErrConfiguration
	// ErrValidation indicates parameters rejected before or by the platform.
	ErrValidation = api.ErrValidation
	// ErrUpload indicates a failed file transfer to the platform.
	ErrUpload = api.ErrUpload
	// ErrTransport indicates a network-level failure that persisted
	// through the bounded retries.
	ErrTransport = api.ErrTransport
	// ErrRemote indicates a platform-side failure that is not the
	// caller's fault.
	ErrRemote = api.ErrRemote
	// ErrTaskFailed indicates the platform reported a terminal task
	// failure; the message is the platform's own.
	ErrTaskFailed = task.ErrTaskFailed
	// ErrTimeout indicates the polling deadline passed before a terminal
	// state; the task remains queryable on the platform.
	ErrTimeout = task.ErrTimeout
	// ErrDownload indicates a failed artifact download.
	ErrDownload = api.ErrDownload
)
