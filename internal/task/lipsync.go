package task

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/chanjing-ai/chanjing-sdk/internal/api"
)

// Platform endpoints for lip-sync tasks.
const (
	apiLipSyncCreate = "/open/v1/video_lip_sync/create"
	apiLipSyncDetail = "/open/v1/video_lip_sync/detail"
)

// Platform status codes for lip-sync tasks.
const (
	lipSyncStatusQueued    = 0
	lipSyncStatusRendering = 10
	lipSyncStatusSucceeded = 20
	lipSyncStatusFailed    = 30
)

// lipSyncDetail is the platform's status report for a lip-sync task.
type lipSyncDetail struct {
	Status   int    `json:"status"`
	Progress int    `json:"progress"`
	Msg      string `json:"msg"`
	VideoURL string `json:"video_url"`
	Duration int64  `json:"duration"`
}

var lipSyncDescriptor = descriptor{
	submitPath:   apiLipSyncCreate,
	submitRate:   api.RateLipSync,
	decodeSubmit: decodeStringTaskID,
	query: func(ctx context.Context, c *api.Client, taskID string) (json.RawMessage, error) {
		return c.DoJSON(
			ctx,
			http.MethodGet,
			apiLipSyncDetail,
			url.Values{"id": {taskID}},
			nil,
			api.RateDefault,
		)
	},
	decodeStatus: decodeLipSyncStatus,
}

func decodeLipSyncStatus(taskID string, data json.RawMessage, _ int) (Snapshot, error) {
	var detail lipSyncDetail

	err := json.Unmarshal(data, &detail)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: malformed lip-sync status: %v", api.ErrRemote, err)
	}

	switch detail.Status {
	case lipSyncStatusQueued:
		return Snapshot{
			Status:   StatusPending,
			Progress: detail.Progress,
			Message:  "queued",
		}, nil
	case lipSyncStatusRendering:
		return Snapshot{
			Status:   StatusRunning,
			Progress: detail.Progress,
			Message:  "rendering",
		}, nil
	case lipSyncStatusSucceeded:
		if detail.VideoURL == "" {
			return Snapshot{}, fmt.Errorf(
				"%w: lip-sync task %s succeeded without a video URL",
				api.ErrRemote,
				taskID,
			)
		}

		return Snapshot{
			Status:   StatusSucceeded,
			Progress: 100,
			Message:  "done",
			Artifact: &Artifact{
				URL:        detail.VideoURL,
				TaskID:     taskID,
				DurationMS: detail.Duration,
			},
		}, nil
	case lipSyncStatusFailed:
		return Snapshot{Status: StatusFailed, Message: detail.Msg}, nil
	default:
		return Snapshot{
			Status:   StatusRunning,
			Progress: detail.Progress,
			Message:  fmt.Sprintf("unexpected status %d", detail.Status),
		}, nil
	}
}
