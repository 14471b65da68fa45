// Package chanjing is a Go SDK for the Chanjing (Cicada) media platform.
//
// It submits long-running media-generation jobs (audio-driven lip-sync,
// voice cloning and text-to-speech) over the platform's signed HTTP API,
// polls them to completion with progress reporting, caches voice-clone
// results by audio content, and downloads finished artifacts.
//
// Quick start:
//
//	client, err := chanjing.New(chanjing.Config{AppID: "...", SecretKey: "..."}, nil)
//	if err != nil {
//		// missing credentials
//	}
//	defer client.Close()
//
//	result, err := client.LipSync(ctx, "video.mp4", "audio.wav", chanjing.LipSyncOptions{})
//	if err != nil {
//		// see the Err* values for the failure taxonomy
//	}
//
//	_, err = result.Download(ctx, "output.mp4")
//
// Credentials resolve from explicit Config fields, then the CHANJING_APP_ID
// and CHANJING_SECRET_KEY environment variables, then
// ~/.chanjing/config.toml, in that order.
package chanjing
