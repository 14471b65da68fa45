package chanjing

import (
	"context"
	"fmt"
	"time"

	"github.com/chanjing-ai/chanjing-sdk/internal/cache"
	"github.com/chanjing-ai/chanjing-sdk/internal/task"
)

// DefaultCloneModel is the voice model used when CloneVoiceOptions leaves
// Model empty.
const DefaultCloneModel = "cicada3.0-turbo"

// serviceVoiceClone routes reference audio uploads on the platform.
const serviceVoiceClone = "prompt_audio"

// CloneVoiceOptions tunes a voice-clone job.
type CloneVoiceOptions struct {
	// Model selects the voice model family. Defaults to
	// DefaultCloneModel.
	Model string
	// NoCache skips the local result cache for both lookup and storage.
	NoCache bool
	// OnProgress receives stage updates for the whole operation.
	OnProgress ProgressFunc
}

func (o CloneVoiceOptions) withDefaults() CloneVoiceOptions {
	if o.Model == "" {
		o.Model = DefaultCloneModel
	}

	return o
}

// CloneVoice trains a reusable voice from the reference audio at audioPath
// and returns its voice ID. Results are cached on disk keyed by the audio
// content and model, so cloning the same file again returns immediately
// without contacting the platform. Set CloneVoiceOptions.NoCache to force a
// fresh clone.
func (c *Client) CloneVoice(
	ctx context.Context,
	audioPath string,
	opts CloneVoiceOptions,
) (string, error) {
	opts = opts.withDefaults()

	if err := c.checkInputFile(audioPath, "reference audio"); err != nil {
		return "", err
	}

	report := progressReporter(opts.OnProgress)
	report(StagePrepare, 0, "validating inputs")

	contentHash, err := cache.HashFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("%w: hashing %s: %v", ErrValidation, audioPath, err)
	}

	fingerprint := voiceFingerprint(contentHash, opts.Model)

	if !opts.NoCache {
		if entry, ok := c.voices.Get(fingerprint); ok {
			c.log.Info(
				"Voice clone cache hit: audio=%s model=%s voice=%s",
				audioPath,
				opts.Model,
				entry.VoiceID,
			)
			report(StageDone, 100, "voice ready (cached)")

			return entry.VoiceID, nil
		}
	}

	c.log.Info("Starting voice clone: audio=%s model=%s", audioPath, opts.Model)

	audio, err := c.uploader.Upload(
		ctx,
		audioPath,
		serviceVoiceClone,
		func(percent int, message string) {
			report(StageUploadAudio, percent, message)
		},
	)
	if err != nil {
		return "", err
	}

	if audio.URL == "" {
		return "", fmt.Errorf(
			"%w: platform returned no URL for %s",
			ErrUpload,
			audioPath,
		)
	}

	taskID, err := c.submitter.Submit(ctx, task.Request{
		Capability: task.CapabilityVoiceClone,
		Body: map[string]any{
			"name":       fmt.Sprintf("clone_%d", time.Now().Unix()),
			"url":        audio.URL,
			"model_type": opts.Model,
		},
	})
	if err != nil {
		return "", err
	}

	job := task.New(taskID, task.CapabilityVoiceClone)

	artifact, err := c.poller.Poll(
		ctx,
		job,
		StageVoiceClone,
		c.pollConfig(c.cfg.Poll.VoiceCloneDeadline, defaultVoiceCloneDeadline),
		report,
	)
	if err != nil {
		return "", err
	}

	if !opts.NoCache {
		putErr := c.voices.Put(fingerprint, cache.Entry{
			VoiceID:   artifact.VoiceID,
			TaskID:    taskID,
			CreatedAt: time.Now().UTC(),
		})
		if putErr != nil {
			// A broken cache never fails the clone itself.
			c.log.Warn("Failed to cache voice %s: %v", artifact.VoiceID, putErr)
		}
	}

	report(StageDone, 100, "voice ready")
	c.log.Info("Voice clone complete: task=%s voice=%s", taskID, artifact.VoiceID)

	return artifact.VoiceID, nil
}

// ForgetVoice drops the cached clone result for the given reference audio
// and model, forcing the next CloneVoice call to contact the platform. It
// is a no-op when nothing is cached.
func (c *Client) ForgetVoice(audioPath, model string) error {
	if model == "" {
		model = DefaultCloneModel
	}

	contentHash, err := cache.HashFile(audioPath)
	if err != nil {
		return fmt.Errorf("%w: hashing %s: %v", ErrValidation, audioPath, err)
	}

	c.voices.Remove(voiceFingerprint(contentHash, model))

	return nil
}

func voiceFingerprint(contentHash, model string) string {
	return cache.Fingerprint(
		string(task.CapabilityVoiceClone),
		map[string]string{"model": model},
		[]string{contentHash},
	)
}
