package chanjing

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/logger"

	"github.com/chanjing-ai/chanjing-sdk/internal/api"
	"github.com/chanjing-ai/chanjing-sdk/internal/auth"
	"github.com/chanjing-ai/chanjing-sdk/internal/cache"
	"github.com/chanjing-ai/chanjing-sdk/internal/config"
	"github.com/chanjing-ai/chanjing-sdk/internal/task"
)

// ProgressFunc receives synchronous progress updates: a fixed stage label,
// a percentage in [0,100] that never decreases within a stage, and a
// human-readable message. A nil callback disables reporting.
type ProgressFunc = task.ProgressFunc

// Stage labels passed to ProgressFunc.
const (
	StagePrepare     = "prepare"
	StageUploadVideo = "upload_video"
	StageUploadAudio = "upload_audio"
	StageSynthesis   = "synthesis"
	StageVoiceClone  = "voice_clone"
	StageTTS         = "tts"
	StageDone        = "done"
)

// Per-capability polling deadlines applied when PollConfig leaves them zero.
const (
	defaultLipSyncDeadline    = 30 * time.Minute
	defaultVoiceCloneDeadline = 10 * time.Minute
	defaultTTSDeadline        = 10 * time.Minute
)

// voiceCacheSubdir holds the voice-clone entries under the cache dir.
const voiceCacheSubdir = "voices"

// PollConfig tunes the poll-until-terminal loop. Zero values select the
// defaults: 2s initial interval growing to a 15s cap, per-capability
// deadlines, and tolerance for 5 consecutive failed polls.
type PollConfig struct {
	InitialInterval      time.Duration
	MaxInterval          time.Duration
	LipSyncDeadline      time.Duration
	VoiceCloneDeadline   time.Duration
	TTSDeadline          time.Duration
	MaxConsecutiveErrors int
}

// Config configures a Client. The zero value resolves credentials from the
// environment or the user config file and talks to the production platform.
type Config struct {
	// AppID and SecretKey take priority over every other credential
	// source.
	AppID     string
	SecretKey string
	// BaseURL overrides the production platform endpoint.
	BaseURL string
	// CacheDir holds the voice-clone cache and, when no logger is
	// supplied, the SDK log. Defaults to ~/.chanjing/cache.
	CacheDir string
	// HTTPTimeout bounds individual platform requests.
	HTTPTimeout time.Duration
	// TransportRetries bounds retries of transient network failures.
	TransportRetries int
	// RetryInterval is the initial backoff between transport retries.
	RetryInterval time.Duration
	// RequestIntervals overrides the per-API-family minimum request
	// spacing. Intended for private deployments and tests.
	RequestIntervals map[string]time.Duration
	// FileSyncInterval and FileSyncDeadline bound the wait for uploaded
	// files to become usable on the platform.
	FileSyncInterval time.Duration
	FileSyncDeadline time.Duration
	// Poll tunes the poll-until-terminal loop.
	Poll PollConfig
}

// Client is the entry point for every platform operation. A Client is safe
// for concurrent use: independent calls share only the uploader's reuse map
// and the voice-clone cache, both of which serialize themselves.
type Client struct {
	cfg       Config
	api       *api.Client
	uploader  *api.Uploader
	submitter *task.Submitter
	poller    *task.Poller
	voices    *cache.Store
	log       *logger.Logger
	ownsLog   bool
}

// New resolves credentials (explicit Config fields, then environment, then
// ~/.chanjing/config.toml), wires the signed transport, and returns a ready
// Client. A nil log creates a default logger under <cache dir>/logs.
func New(cfg Config, log *logger.Logger) (*Client, error) {
	creds, err := auth.Resolve(cfg.AppID, cfg.SecretKey, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	if cfg.CacheDir == "" {
		cfg.CacheDir = config.DefaultCacheDir()
	}

	ownsLog := false

	if log == nil {
		log, err = logger.New(filepath.Join(cfg.CacheDir, "logs"), "chanjing-sdk.log")
		if err != nil {
			return nil, fmt.Errorf(
				"%w: failed to create default logger: %v",
				ErrConfiguration,
				err,
			)
		}

		ownsLog = true
	}

	apiClient := api.New(
		auth.NewSigner(creds),
		api.Options{
			BaseURL:          cfg.BaseURL,
			Timeout:          cfg.HTTPTimeout,
			MaxRetries:       cfg.TransportRetries,
			RetryInterval:    cfg.RetryInterval,
			Intervals:        cfg.RequestIntervals,
			FileSyncInterval: cfg.FileSyncInterval,
			FileSyncDeadline: cfg.FileSyncDeadline,
		},
		log,
	)

	return &Client{
		cfg:       cfg,
		api:       apiClient,
		uploader:  api.NewUploader(apiClient, log),
		submitter: task.NewSubmitter(apiClient, log),
		poller:    task.NewPoller(apiClient, log),
		voices:    cache.NewStore(filepath.Join(cfg.CacheDir, voiceCacheSubdir)),
		log:       log,
		ownsLog:   ownsLog,
	}, nil
}

// Close releases resources owned by the client. It only closes the logger
// when the client created it.
func (c *Client) Close() error {
	if c.ownsLog {
		return c.log.Close()
	}

	return nil
}

// pollConfig builds the task poll configuration for one capability.
func (c *Client) pollConfig(deadline, fallback time.Duration) task.Config {
	if deadline <= 0 {
		deadline = fallback
	}

	return task.Config{
		InitialInterval:      c.cfg.Poll.InitialInterval,
		MaxInterval:          c.cfg.Poll.MaxInterval,
		Deadline:             deadline,
		MaxConsecutiveErrors: c.cfg.Poll.MaxConsecutiveErrors,
	}
}

// checkInputFile rejects missing or unreadable input paths before any
// network work happens.
func (c *Client) checkInputFile(path, kind string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s file %s: %v", ErrValidation, kind, path, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%w: %s path %s is a directory", ErrValidation, kind, path)
	}

	return nil
}

// progressReporter returns a callback that is safe to invoke when the
// caller supplied none.
func progressReporter(fn ProgressFunc) ProgressFunc {
	if fn == nil {
		return func(string, int, string) {}
	}

	return fn
}
