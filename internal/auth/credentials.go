// Package auth resolves platform credentials and signs outbound requests.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/chanjing-ai/chanjing-sdk/internal/config"
)

// Environment variables consulted when explicit credentials are absent.
const (
	EnvAppID     = "CHANJING_APP_ID"
	EnvSecretKey = "CHANJING_SECRET_KEY"
)

// ErrMissingCredentials indicates that no credential source produced a
// usable app_id / secret_key pair.
var ErrMissingCredentials = errors.New("chanjing credentials not found")

// Credentials is an immutable app_id / secret_key pair. It never changes
// for the lifetime of a client.
type Credentials struct {
	AppID     string
	SecretKey string
}

// Resolve returns credentials from the highest-priority source that has a
// complete pair: explicit arguments, then the CHANJING_APP_ID and
// CHANJING_SECRET_KEY environment variables, then the config file at
// configPath (defaulting to ~/.chanjing/config.toml).
func Resolve(appID, secretKey, configPath string) (Credentials, error) {
	appID = strings.TrimSpace(appID)
	secretKey = strings.TrimSpace(secretKey)

	if appID != "" && secretKey != "" {
		return Credentials{AppID: appID, SecretKey: secretKey}, nil
	}

	envID := strings.TrimSpace(os.Getenv(EnvAppID))
	envKey := strings.TrimSpace(os.Getenv(EnvSecretKey))

	if envID != "" && envKey != "" {
		return Credentials{AppID: envID, SecretKey: envKey}, nil
	}

	if configPath == "" {
		configPath = config.DefaultPath()
	}

	fileCfg, err := config.LoadFile(configPath)
	if err == nil {
		fileID := strings.TrimSpace(fileCfg.AppID)
		fileKey := strings.TrimSpace(fileCfg.SecretKey)

		if fileID != "" && fileKey != "" {
			return Credentials{AppID: fileID, SecretKey: fileKey}, nil
		}
	}

	return Credentials{}, fmt.Errorf(
		"%w: pass AppID and SecretKey explicitly, set %s and %s, or create %s",
		ErrMissingCredentials,
		EnvAppID,
		EnvSecretKey,
		configPath,
	)
}
