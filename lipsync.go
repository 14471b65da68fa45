package chanjing

import (
	"context"
	"fmt"

	"github.com/chanjing-ai/chanjing-sdk/internal/task"
)

// Lip-sync rendering choices accepted by LipSyncOptions.
const (
	LipSyncModelPro      = "pro"
	LipSyncModelStandard = "standard"

	LipSyncBackwayForward = "forward"
	LipSyncBackwayReverse = "reverse"

	LipSyncDriveModeNormal = "normal"
	LipSyncDriveModeRandom = "random"
)

// Platform encodings of the rendering choices above.
const (
	lipSyncModelProValue      = 1
	lipSyncModelStandardValue = 0

	lipSyncBackwayForwardValue = 1
	lipSyncBackwayReverseValue = 2

	lipSyncDriveModeRandomValue = "random"
)

// Default output dimensions when the caller leaves them zero.
const (
	defaultScreenWidth  = 1080
	defaultScreenHeight = 1920
)

// Upload service names the platform uses to route lip-sync inputs.
const (
	serviceLipSyncVideo = "lip_sync_video"
	serviceLipSyncAudio = "lip_sync_audio"
)

// LipSyncOptions tunes a lip-sync job. The zero value selects the pro
// model, forward playback, normal drive mode, and a 1080x1920 canvas.
type LipSyncOptions struct {
	// Model is LipSyncModelPro or LipSyncModelStandard.
	Model string
	// Backway is LipSyncBackwayForward or LipSyncBackwayReverse and
	// controls how the source video loops when the audio outlasts it.
	Backway string
	// DriveMode is LipSyncDriveModeNormal or LipSyncDriveModeRandom.
	DriveMode string
	// ScreenWidth and ScreenHeight set the output canvas in pixels.
	ScreenWidth  int
	ScreenHeight int
	// OnProgress receives stage updates for the whole operation.
	OnProgress ProgressFunc
}

func (o LipSyncOptions) withDefaults() LipSyncOptions {
	if o.Model == "" {
		o.Model = LipSyncModelPro
	}

	if o.Backway == "" {
		o.Backway = LipSyncBackwayForward
	}

	if o.DriveMode == "" {
		o.DriveMode = LipSyncDriveModeNormal
	}

	if o.ScreenWidth <= 0 {
		o.ScreenWidth = defaultScreenWidth
	}

	if o.ScreenHeight <= 0 {
		o.ScreenHeight = defaultScreenHeight
	}

	return o
}

func (o LipSyncOptions) encode() (modelValue, backwayValue int, driveMode string, err error) {
	switch o.Model {
	case LipSyncModelPro:
		modelValue = lipSyncModelProValue
	case LipSyncModelStandard:
		modelValue = lipSyncModelStandardValue
	default:
		return 0, 0, "", fmt.Errorf(
			"%w: unknown lip-sync model %q",
			ErrValidation,
			o.Model,
		)
	}

	switch o.Backway {
	case LipSyncBackwayForward:
		backwayValue = lipSyncBackwayForwardValue
	case LipSyncBackwayReverse:
		backwayValue = lipSyncBackwayReverseValue
	default:
		return 0, 0, "", fmt.Errorf(
			"%w: unknown lip-sync backway %q",
			ErrValidation,
			o.Backway,
		)
	}

	switch o.DriveMode {
	case LipSyncDriveModeNormal:
		driveMode = ""
	case LipSyncDriveModeRandom:
		driveMode = lipSyncDriveModeRandomValue
	default:
		return 0, 0, "", fmt.Errorf(
			"%w: unknown lip-sync drive mode %q",
			ErrValidation,
			o.DriveMode,
		)
	}

	return modelValue, backwayValue, driveMode, nil
}

// LipSyncResult describes a finished lip-sync job.
type LipSyncResult struct {
	// VideoURL points at the rendered video hosted by the platform.
	VideoURL string
	// TaskID identifies the job on the platform.
	TaskID string
	// DurationMS is the rendered video length in milliseconds.
	DurationMS int64

	client *Client
}

// Download fetches the rendered video into dest, creating parent
// directories as needed. It returns the number of bytes written.
func (r *LipSyncResult) Download(ctx context.Context, dest string) (int64, error) {
	return r.client.api.DownloadFile(ctx, r.VideoURL, dest)
}

// LipSync uploads the video and audio inputs, submits a lip-sync job, and
// waits for the rendered result. The call blocks until the job reaches a
// terminal state, the per-capability deadline passes, or ctx is cancelled.
func (c *Client) LipSync(
	ctx context.Context,
	videoPath, audioPath string,
	opts LipSyncOptions,
) (*LipSyncResult, error) {
	opts = opts.withDefaults()

	modelValue, backwayValue, driveMode, err := opts.encode()
	if err != nil {
		return nil, err
	}

	if err := c.checkInputFile(videoPath, "video"); err != nil {
		return nil, err
	}

	if err := c.checkInputFile(audioPath, "audio"); err != nil {
		return nil, err
	}

	report := progressReporter(opts.OnProgress)
	report(StagePrepare, 0, "validating inputs")

	c.log.Info(
		"Starting lip-sync: video=%s audio=%s model=%s",
		videoPath,
		audioPath,
		opts.Model,
	)

	video, err := c.uploader.Upload(
		ctx,
		videoPath,
		serviceLipSyncVideo,
		func(percent int, message string) {
			report(StageUploadVideo, percent, message)
		},
	)
	if err != nil {
		return nil, err
	}

	audio, err := c.uploader.Upload(
		ctx,
		audioPath,
		serviceLipSyncAudio,
		func(percent int, message string) {
			report(StageUploadAudio, percent, message)
		},
	)
	if err != nil {
		return nil, err
	}

	taskID, err := c.submitter.Submit(ctx, task.Request{
		Capability: task.CapabilityLipSync,
		Body: map[string]any{
			"video_file_id": video.FileID,
			"audio_type":    "audio",
			"audio_file_id": audio.FileID,
			"model":         modelValue,
			"screen_width":  opts.ScreenWidth,
			"screen_height": opts.ScreenHeight,
			"backway":       backwayValue,
			"drive_mode":    driveMode,
		},
	})
	if err != nil {
		return nil, err
	}

	job := task.New(taskID, task.CapabilityLipSync)

	artifact, err := c.poller.Poll(
		ctx,
		job,
		StageSynthesis,
		c.pollConfig(c.cfg.Poll.LipSyncDeadline, defaultLipSyncDeadline),
		report,
	)
	if err != nil {
		return nil, err
	}

	report(StageDone, 100, "lip-sync complete")
	c.log.Info("Lip-sync complete: task=%s url=%s", taskID, artifact.URL)

	return &LipSyncResult{
		VideoURL:   artifact.URL,
		TaskID:     taskID,
		DurationMS: artifact.DurationMS,
		client:     c,
	}, nil
}
