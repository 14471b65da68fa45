package task

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/chanjing-ai/chanjing-sdk/internal/api"
)

// Platform endpoints for voice-clone tasks. The id returned on submission
// is the voice id itself, which also keys the status query.
const (
	apiVoiceCloneCreate = "/open/v1/create_customised_audio"
	apiVoiceCloneDetail = "/open/v1/customised_audio"
)

// Platform status codes for voice-clone tasks.
const (
	voiceCloneStatusWaiting = 0
	voiceCloneStatusReady   = 2
	voiceCloneStatusExpired = 3
	voiceCloneStatusFailed  = 4
	voiceCloneStatusDeleted = 99
)

// voiceCloneDetail is the platform's status report for a voice clone.
type voiceCloneDetail struct {
	Status   int    `json:"status"`
	Progress int    `json:"progress"`
	ErrMsg   string `json:"err_msg"`
}

var voiceCloneDescriptor = descriptor{
	submitPath:   apiVoiceCloneCreate,
	submitRate:   api.RateVoiceClone,
	decodeSubmit: decodeStringTaskID,
	query: func(ctx context.Context, c *api.Client, taskID string) (json.RawMessage, error) {
		return c.DoJSON(
			ctx,
			http.MethodGet,
			apiVoiceCloneDetail,
			url.Values{"id": {taskID}},
			nil,
			api.RateVoiceClone,
		)
	},
	decodeStatus: decodeVoiceCloneStatus,
}

func decodeVoiceCloneStatus(taskID string, data json.RawMessage, _ int) (Snapshot, error) {
	var detail voiceCloneDetail

	err := json.Unmarshal(data, &detail)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: malformed voice-clone status: %v", api.ErrRemote, err)
	}

	switch detail.Status {
	case voiceCloneStatusWaiting:
		return Snapshot{
			Status:   StatusPending,
			Progress: detail.Progress,
			Message:  "waiting",
		}, nil
	case voiceCloneStatusReady:
		return Snapshot{
			Status:   StatusSucceeded,
			Progress: 100,
			Message:  "voice ready",
			Artifact: &Artifact{TaskID: taskID, VoiceID: taskID},
		}, nil
	case voiceCloneStatusExpired:
		return Snapshot{Status: StatusFailed, Message: "voice clone task expired"}, nil
	case voiceCloneStatusFailed:
		return Snapshot{Status: StatusFailed, Message: detail.ErrMsg}, nil
	case voiceCloneStatusDeleted:
		return Snapshot{Status: StatusFailed, Message: "voice clone task was deleted"}, nil
	default:
		return Snapshot{
			Status:   StatusRunning,
			Progress: detail.Progress,
			Message:  "cloning",
		}, nil
	}
}
