// Package task models platform jobs and drives them to a terminal state.
package task

import (
	"time"
)

// Capability identifies the platform job family a task belongs to.
type Capability string

const (
	CapabilityLipSync    Capability = "lip_sync"
	CapabilityVoiceClone Capability = "voice_clone"
	CapabilityTTS        Capability = "tts"
)

// Status is the client-side lifecycle of a platform task.
// Valid transitions only move forward: pending, running, then one of the
// terminal states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// rank orders statuses so an observed transition can only move forward.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusRunning:
		return 1
	case StatusSucceeded, StatusFailed:
		return 2
	default:
		return 0
	}
}

// Artifact is the immutable output of a succeeded task.
type Artifact struct {
	// URL is the remote location of the produced media, when any.
	URL string
	// TaskID identifies the task that produced the artifact.
	TaskID string
	// VoiceID is the reusable voice identifier for voice-clone tasks.
	VoiceID string
	// DurationMS is the media duration in milliseconds, when reported.
	DurationMS int64
}

// Task tracks one submitted platform job. It is mutated only by the Poller,
// its progress never decreases while non-terminal, and its Result is
// non-nil exactly when Status is StatusSucceeded.
type Task struct {
	ID          string
	Capability  Capability
	SubmittedAt time.Time
	Status      Status
	Progress    int
	Message     string
	Result      *Artifact
}

// New creates a Task in its pre-poll state.
func New(id string, capability Capability) *Task {
	return &Task{
		ID:          id,
		Capability:  capability,
		SubmittedAt: time.Now(),
		Status:      StatusPending,
	}
}

// Snapshot is one observation of a task's remote state.
type Snapshot struct {
	Status   Status
	Progress int
	Message  string
	// Artifact is non-nil only when Status is StatusSucceeded.
	Artifact *Artifact
}

// ProgressFunc receives synchronous progress updates: a fixed stage label,
// a percentage in [0,100] that never decreases within a stage, and a
// human-readable message.
type ProgressFunc func(stage string, percent int, message string)
