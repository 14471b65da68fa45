package task

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/chanjing-ai/chanjing-sdk/internal/api"
)

// Platform endpoints for TTS tasks.
const (
	apiTTSCreate = "/open/v1/create_audio_task"
	apiTTSState  = "/open/v1/audio_task_state"
)

// Platform status codes for TTS tasks. Status 9 is terminal for both
// success and failure; the error message disambiguates.
const (
	ttsStatusRunning  = 1
	ttsStatusTerminal = 9
)

// Client-side progress estimation for TTS, which reports no progress of its
// own: 15 points per poll up to 90, then creeping toward 95.
const (
	ttsEarlyPolls    = 6
	ttsEarlyStep     = 15
	ttsEarlyCeiling  = 90
	ttsLateCeiling   = 95
	millisPerSecond  = 1000
)

// ttsSubmitResponse carries the id of a created TTS task.
type ttsSubmitResponse struct {
	TaskID string `json:"task_id"`
}

// ttsState is the platform's status report for a TTS task.
type ttsState struct {
	Status    int    `json:"status"`
	ErrMsg    string `json:"errMsg"`
	ErrReason string `json:"errReason"`
	Full      struct {
		URL      string  `json:"url"`
		Duration float64 `json:"duration"`
	} `json:"full"`
}

var ttsDescriptor = descriptor{
	submitPath: apiTTSCreate,
	submitRate: api.RateTTS,
	decodeSubmit: func(data json.RawMessage) (string, error) {
		var resp ttsSubmitResponse

		err := json.Unmarshal(data, &resp)
		if err != nil || resp.TaskID == "" {
			return "", fmt.Errorf("%w: submission returned no task id", api.ErrRemote)
		}

		return resp.TaskID, nil
	},
	query: func(ctx context.Context, c *api.Client, taskID string) (json.RawMessage, error) {
		return c.DoJSON(
			ctx,
			http.MethodPost,
			apiTTSState,
			nil,
			map[string]string{"task_id": taskID},
			api.RateTTS,
		)
	},
	decodeStatus: decodeTTSStatus,
}

func decodeTTSStatus(taskID string, data json.RawMessage, pollCount int) (Snapshot, error) {
	var state ttsState

	err := json.Unmarshal(data, &state)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: malformed TTS status: %v", api.ErrRemote, err)
	}

	switch state.Status {
	case ttsStatusTerminal:
		return decodeTTSTerminal(taskID, state)
	case ttsStatusRunning:
		return Snapshot{
			Status:   StatusRunning,
			Progress: estimateTTSProgress(pollCount),
			Message:  "synthesizing",
		}, nil
	default:
		return Snapshot{
			Status:   StatusRunning,
			Progress: estimateTTSProgress(pollCount),
			Message:  fmt.Sprintf("unexpected status %d", state.Status),
		}, nil
	}
}

func decodeTTSTerminal(taskID string, state ttsState) (Snapshot, error) {
	if state.ErrMsg != "" {
		message := state.ErrMsg
		if state.ErrReason != "" {
			message = fmt.Sprintf("%s (reason: %s)", message, state.ErrReason)
		}

		return Snapshot{Status: StatusFailed, Message: message}, nil
	}

	if state.Full.URL == "" {
		return Snapshot{}, fmt.Errorf(
			"%w: TTS task %s finished without an audio URL",
			api.ErrRemote,
			taskID,
		)
	}

	return Snapshot{
		Status:   StatusSucceeded,
		Progress: 100,
		Message:  "done",
		Artifact: &Artifact{
			URL:        state.Full.URL,
			TaskID:     taskID,
			DurationMS: int64(state.Full.Duration * millisPerSecond),
		},
	}, nil
}

// estimateTTSProgress maps the poll count onto a monotonic percentage.
func estimateTTSProgress(pollCount int) int {
	if pollCount <= ttsEarlyPolls {
		progress := pollCount * ttsEarlyStep
		if progress > ttsEarlyCeiling {
			return ttsEarlyCeiling
		}

		return progress
	}

	progress := ttsEarlyCeiling + (pollCount - ttsEarlyPolls)
	if progress > ttsLateCeiling {
		return ttsLateCeiling
	}

	return progress
}
