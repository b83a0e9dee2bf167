package app

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/aussiebroadwan/firekit/pkg/errx"
)

const (
	// EnvFirebaseConfig holds the app config as inline JSON or a file path.
	EnvFirebaseConfig = "FIREBASE_CONFIG"

	// EnvAuthEmulatorHost points the auth client at an emulator.
	EnvAuthEmulatorHost = "FIREBASE_AUTH_EMULATOR_HOST"
)

// Config is the per-app configuration. Every field is optional.
type Config struct {
	ProjectID        string `json:"projectId,omitempty"`
	ServiceAccountID string `json:"serviceAccountId,omitempty"`
	DatabaseURL      string `json:"databaseURL,omitempty"`
	StorageBucket    string `json:"storageBucket,omitempty"`
}

// ConfigFromEnv reads FIREBASE_CONFIG. Unset gives an empty config; a
// value starting with "{" is parsed as JSON, anything else as a path to a
// JSON file.
func ConfigFromEnv() (*Config, error) {
	raw := strings.TrimSpace(os.Getenv(EnvFirebaseConfig))
	if raw == "" {
		return &Config{}, nil
	}

	b := []byte(raw)
	if !strings.HasPrefix(raw, "{") {
		var err error
		if b, err = os.ReadFile(raw); err != nil {
			return nil, errx.Wrap(err, errx.KindInvalidArgument, errx.CodeArgument,
				"failed to read %s file %s", EnvFirebaseConfig, raw)
		}
	}

	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, errx.Wrap(err, errx.KindInvalidArgument, errx.CodeArgument,
			"failed to parse %s", EnvFirebaseConfig)
	}
	return &cfg, nil
}
