package main

import (
	"strings"
	"testing"
)

// TestRunDispatch verifies command dispatch and flag validation without
// contacting the platform.
func TestRunDispatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		expectedError string
		args          []string
	}{
		{
			name:          "no command",
			args:          nil,
			expectedError: errUsage,
		},
		{
			name:          "unknown command",
			args:          []string{"transcode"},
			expectedError: "unknown command",
		},
		{
			name:          "lip-sync requires video",
			args:          []string{cmdLipSync, "--audio", "a.wav", "--output", "o.mp4"},
			expectedError: errVideoRequired,
		},
		{
			name:          "lip-sync requires audio",
			args:          []string{cmdLipSync, "--video", "v.mp4", "--output", "o.mp4"},
			expectedError: errAudioRequired,
		},
		{
			name:          "lip-sync requires output",
			args:          []string{cmdLipSync, "--video", "v.mp4", "--audio", "a.wav"},
			expectedError: errOutputRequired,
		},
		{
			name:          "clone-voice requires audio",
			args:          []string{cmdCloneVoice},
			expectedError: errAudioRequired,
		},
		{
			name:          "tts requires voice",
			args:          []string{cmdTTS, "--text", "hello", "--output", "o.wav"},
			expectedError: errVoiceRequired,
		},
		{
			name:          "tts requires text",
			args:          []string{cmdTTS, "--voice", "v1", "--output", "o.wav"},
			expectedError: errTextRequired,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := run(testCase.args)
			if err == nil {
				t.Fatal("Expected an error but got none")
			}

			if !strings.Contains(err.Error(), testCase.expectedError) {
				t.Errorf(
					"Expected error to contain %q, but got %q",
					testCase.expectedError,
					err.Error(),
				)
			}
		})
	}
}
