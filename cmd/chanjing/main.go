// Command chanjing drives the Chanjing platform from the command line:
// lip-sync rendering, voice cloning, and speech synthesis.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	chanjing "github.com/chanjing-ai/chanjing-sdk"
)

// Subcommand names.
const (
	cmdLipSync    = "lip-sync"
	cmdCloneVoice = "clone-voice"
	cmdTTS        = "tts"
)

// Flag names.
const (
	flagVideo   = "video"
	flagAudio   = "audio"
	flagVoice   = "voice"
	flagText    = "text"
	flagOutput  = "output"
	flagModel   = "model"
	flagSpeed   = "speed"
	flagPitch   = "pitch"
	flagNoCache = "no-cache"
	flagTimeout = "timeout"
)

// Flag descriptions.
const (
	flagVideoDesc   = "Source video file"
	flagAudioDesc   = "Audio file (lip-sync driver or clone reference)"
	flagVoiceDesc   = "Voice ID returned by clone-voice"
	flagTextDesc    = "Text to synthesize"
	flagOutputDesc  = "Destination file for the result"
	flagModelDesc   = "Model selection (lip-sync: pro/standard, clone: platform model name)"
	flagSpeedDesc   = "Speaking speed in [0.5, 2.0]"
	flagPitchDesc   = "Voice pitch in [0.1, 3.0]"
	flagNoCacheDesc = "Skip the local voice-clone cache"
	flagTimeoutDesc = "Overall operation timeout"
)

// Error and log messages.
const (
	errUsage              = "usage: chanjing <lip-sync|clone-voice|tts> [flags]"
	errFailedToInitClient = "Failed to initialize client: %w"
	errVideoRequired      = "--video is required"
	errAudioRequired      = "--audio is required"
	errVoiceRequired      = "--voice is required"
	errTextRequired       = "--text is required"
	errOutputRequired     = "--output is required"

	msgVoiceReady  = "Voice ready: %s\n"
	msgDownloaded  = "Downloaded %s (%d bytes)\n"
	msgProgressFmt = "[%s] %3d%% %s\n"
)

const defaultTimeout = 45 * time.Minute

func main() {
	err := run(os.Args[1:])
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// run dispatches to the requested subcommand, returning an error on failure.
func run(args []string) error {
	if len(args) == 0 {
		return errors.New(errUsage)
	}

	switch args[0] {
	case cmdLipSync:
		return runLipSync(args[1:])
	case cmdCloneVoice:
		return runCloneVoice(args[1:])
	case cmdTTS:
		return runTTS(args[1:])
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], errUsage)
	}
}

// newClient builds a Client from the process environment. Credentials come
// from CHANJING_APP_ID and CHANJING_SECRET_KEY or ~/.chanjing/config.toml.
func newClient() (*chanjing.Client, error) {
	client, err := chanjing.New(chanjing.Config{}, nil)
	if err != nil {
		return nil, fmt.Errorf(errFailedToInitClient, err)
	}

	return client, nil
}

// printProgress writes stage updates to stdout.
func printProgress(stage string, percent int, message string) {
	fmt.Printf(msgProgressFmt, stage, percent, message)
}

func runLipSync(args []string) error {
	fs := flag.NewFlagSet(cmdLipSync, flag.ExitOnError)
	video := fs.String(flagVideo, "", flagVideoDesc)
	audio := fs.String(flagAudio, "", flagAudioDesc)
	output := fs.String(flagOutput, "", flagOutputDesc)
	model := fs.String(flagModel, "", flagModelDesc)
	timeout := fs.Duration(flagTimeout, defaultTimeout, flagTimeoutDesc)

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *video == "" {
		return errors.New(errVideoRequired)
	}

	if *audio == "" {
		return errors.New(errAudioRequired)
	}

	if *output == "" {
		return errors.New(errOutputRequired)
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := client.LipSync(ctx, *video, *audio, chanjing.LipSyncOptions{
		Model:      *model,
		OnProgress: printProgress,
	})
	if err != nil {
		return err
	}

	size, err := result.Download(ctx, *output)
	if err != nil {
		return err
	}

	fmt.Printf(msgDownloaded, *output, size)

	return nil
}

func runCloneVoice(args []string) error {
	fs := flag.NewFlagSet(cmdCloneVoice, flag.ExitOnError)
	audio := fs.String(flagAudio, "", flagAudioDesc)
	model := fs.String(flagModel, "", flagModelDesc)
	noCache := fs.Bool(flagNoCache, false, flagNoCacheDesc)
	timeout := fs.Duration(flagTimeout, defaultTimeout, flagTimeoutDesc)

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *audio == "" {
		return errors.New(errAudioRequired)
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	voiceID, err := client.CloneVoice(ctx, *audio, chanjing.CloneVoiceOptions{
		Model:      *model,
		NoCache:    *noCache,
		OnProgress: printProgress,
	})
	if err != nil {
		return err
	}

	fmt.Printf(msgVoiceReady, voiceID)

	return nil
}

func runTTS(args []string) error {
	fs := flag.NewFlagSet(cmdTTS, flag.ExitOnError)
	voice := fs.String(flagVoice, "", flagVoiceDesc)
	text := fs.String(flagText, "", flagTextDesc)
	output := fs.String(flagOutput, "", flagOutputDesc)
	speed := fs.Float64(flagSpeed, 1.0, flagSpeedDesc)
	pitch := fs.Float64(flagPitch, 1.0, flagPitchDesc)
	timeout := fs.Duration(flagTimeout, defaultTimeout, flagTimeoutDesc)

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *voice == "" {
		return errors.New(errVoiceRequired)
	}

	if *text == "" {
		return errors.New(errTextRequired)
	}

	if *output == "" {
		return errors.New(errOutputRequired)
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := client.TTS(ctx, *voice, *text, chanjing.TTSOptions{
		Speed:      *speed,
		Pitch:      *pitch,
		OnProgress: printProgress,
	})
	if err != nil {
		return err
	}

	size, err := result.Download(ctx, *output)
	if err != nil {
		return err
	}

	fmt.Printf(msgDownloaded, *output, size)

	return nil
}
