package chanjing

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/chanjing-ai/chanjing-sdk/internal/task"
)

// Bounds the platform enforces on synthesis parameters.
const (
	minTTSSpeed = 0.5
	maxTTSSpeed = 2.0

	minTTSPitch = 0.1
	maxTTSPitch = 3.0

	maxTTSTextRunes = 4000
)

// TTSOptions tunes a speech-synthesis job. The zero value uses neutral
// speed and pitch.
type TTSOptions struct {
	// Speed scales speaking rate, in [0.5, 2.0]. 0 means 1.0.
	Speed float64
	// Pitch scales voice pitch, in [0.1, 3.0]. 0 means 1.0.
	Pitch float64
	// OnProgress receives stage updates for the whole operation.
	OnProgress ProgressFunc
}

func (o TTSOptions) withDefaults() TTSOptions {
	if o.Speed == 0 {
		o.Speed = 1.0
	}

	if o.Pitch == 0 {
		o.Pitch = 1.0
	}

	return o
}

func (o TTSOptions) validate() error {
	if o.Speed < minTTSSpeed || o.Speed > maxTTSSpeed {
		return fmt.Errorf(
			"%w: speed %.2f outside [%.1f, %.1f]",
			ErrValidation,
			o.Speed,
			minTTSSpeed,
			maxTTSSpeed,
		)
	}

	if o.Pitch < minTTSPitch || o.Pitch > maxTTSPitch {
		return fmt.Errorf(
			"%w: pitch %.2f outside [%.1f, %.1f]",
			ErrValidation,
			o.Pitch,
			minTTSPitch,
			maxTTSPitch,
		)
	}

	return nil
}

// TTSResult describes a finished speech-synthesis job.
type TTSResult struct {
	// AudioURL points at the synthesized audio hosted by the platform.
	AudioURL string
	// TaskID identifies the job on the platform.
	TaskID string
	// DurationSeconds is the audio length in seconds.
	DurationSeconds float64

	client *Client
}

// Download fetches the synthesized audio into dest, creating parent
// directories as needed. It returns the number of bytes written.
func (r *TTSResult) Download(ctx context.Context, dest string) (int64, error) {
	return r.client.api.DownloadFile(ctx, r.AudioURL, dest)
}

// TTS synthesizes text with a previously cloned voice and waits for the
// audio to be ready. The call blocks until the job reaches a terminal
// state, the per-capability deadline passes, or ctx is cancelled.
func (c *Client) TTS(
	ctx context.Context,
	voiceID, text string,
	opts TTSOptions,
) (*TTSResult, error) {
	opts = opts.withDefaults()

	if err := opts.validate(); err != nil {
		return nil, err
	}

	if voiceID == "" {
		return nil, fmt.Errorf("%w: voice ID is empty", ErrValidation)
	}

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is empty", ErrValidation)
	}

	if runeCount := utf8.RuneCountInString(text); runeCount > maxTTSTextRunes {
		return nil, fmt.Errorf(
			"%w: text has %d characters, limit is %d",
			ErrValidation,
			runeCount,
			maxTTSTextRunes,
		)
	}

	report := progressReporter(opts.OnProgress)
	report(StagePrepare, 0, "validating inputs")

	c.log.Info(
		"Starting speech synthesis: voice=%s characters=%d speed=%.2f pitch=%.2f",
		voiceID,
		utf8.RuneCountInString(text),
		opts.Speed,
		opts.Pitch,
	)

	taskID, err := c.submitter.Submit(ctx, task.Request{
		Capability: task.CapabilityTTS,
		Body: map[string]any{
			"audio_man": voiceID,
			"speed":     opts.Speed,
			"pitch":     opts.Pitch,
			"text": map[string]any{
				"text":       text,
				"plain_text": text,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	job := task.New(taskID, task.CapabilityTTS)

	artifact, err := c.poller.Poll(
		ctx,
		job,
		StageTTS,
		c.pollConfig(c.cfg.Poll.TTSDeadline, defaultTTSDeadline),
		report,
	)
	if err != nil {
		return nil, err
	}

	report(StageDone, 100, "synthesis complete")
	c.log.Info("Speech synthesis complete: task=%s url=%s", taskID, artifact.URL)

	return &TTSResult{
		AudioURL:        artifact.URL,
		TaskID:          taskID,
		DurationSeconds: float64(artifact.DurationMS) / 1000,
		client:          c,
	}, nil
}

// CloneVoiceAndSpeakOptions tunes the combined clone-then-synthesize flow.
type CloneVoiceAndSpeakOptions struct {
	Clone CloneVoiceOptions
	TTS   TTSOptions
	// OnProgress receives stage updates across both operations. It
	// overrides the callbacks inside Clone and TTS.
	OnProgress ProgressFunc
}

// CloneVoiceAndSpeak clones a voice from the reference audio and then
// synthesizes text with it in one call. The clone result is cached the
// same way CloneVoice caches it, so repeated calls with the same audio
// only synthesize.
func (c *Client) CloneVoiceAndSpeak(
	ctx context.Context,
	audioPath, text string,
	opts CloneVoiceAndSpeakOptions,
) (*TTSResult, error) {
	if opts.OnProgress != nil {
		opts.Clone.OnProgress = opts.OnProgress
		opts.TTS.OnProgress = opts.OnProgress
	}

	voiceID, err := c.CloneVoice(ctx, audioPath, opts.Clone)
	if err != nil {
		return nil, err
	}

	return c.TTS(ctx, voiceID, text, opts.TTS)
}
