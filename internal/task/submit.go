package task

import (
	"context"
	"net/http"

	"github.com/book-expert/logger"

	"github.com/chanjing-ai/chanjing-sdk/internal/api"
)

// Request is a capability-tagged job-creation payload. Body is the
// capability-specific JSON body built by the orchestrator; it is never
// mutated after submission.
type Request struct {
	Capability Capability
	Body       any
}

// Submitter sends job-creation requests. The platform returns an identifier
// immediately; submission never waits for job completion.
type Submitter struct {
	client *api.Client
	log    *logger.Logger
}

// NewSubmitter creates a Submitter on top of client.
func NewSubmitter(client *api.Client, log *logger.Logger) *Submitter {
	return &Submitter{client: client, log: log}
}

// Submit sends the job-creation request for req's capability and returns
// the platform task id.
func (s *Submitter) Submit(ctx context.Context, req Request) (string, error) {
	d, err := describe(req.Capability)
	if err != nil {
		return "", err
	}

	raw, err := s.client.DoJSON(ctx, http.MethodPost, d.submitPath, nil, req.Body, d.submitRate)
	if err != nil {
		return "", err
	}

	taskID, err := d.decodeSubmit(raw)
	if err != nil {
		return "", err
	}

	s.log.Info("Submitted %s task, id=%s", req.Capability, taskID)

	return taskID, nil
}
