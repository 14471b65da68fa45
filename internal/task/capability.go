package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chanjing-ai/chanjing-sdk/internal/api"
)

// descriptor binds a capability to its platform endpoints and decoders.
// One shared Poller drives all capabilities through their descriptors.
type descriptor struct {
	submitPath   string
	submitRate   string
	decodeSubmit func(data json.RawMessage) (string, error)
	query        func(ctx context.Context, c *api.Client, taskID string) (json.RawMessage, error)
	decodeStatus func(taskID string, data json.RawMessage, pollCount int) (Snapshot, error)
}

func describe(capability Capability) (descriptor, error) {
	switch capability {
	case CapabilityLipSync:
		return lipSyncDescriptor, nil
	case CapabilityVoiceClone:
		return voiceCloneDescriptor, nil
	case CapabilityTTS:
		return ttsDescriptor, nil
	default:
		return descriptor{}, fmt.Errorf("unknown capability %q", capability)
	}
}

// decodeStringTaskID handles submissions whose data field is the task id
// itself, encoded as a JSON string.
func decodeStringTaskID(data json.RawMessage) (string, error) {
	var id string

	err := json.Unmarshal(data, &id)
	if err != nil || id == "" {
		return "", fmt.Errorf("%w: submission returned no task id", api.ErrRemote)
	}

	return id, nil
}
