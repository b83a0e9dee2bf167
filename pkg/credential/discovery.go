package credential

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/aussiebroadwan/firekit/pkg/errx"
	"github.com/mitchellh/go-homedir"
)

// EnvCredentialsFile names the key file application default discovery
// looks at first.
const EnvCredentialsFile = "GOOGLE_APPLICATION_CREDENTIALS"

const wellKnownFile = "application_default_credentials.json"

// ApplicationDefault finds a credential without being told where to look:
//
//  1. the file named by GOOGLE_APPLICATION_CREDENTIALS (service account or
//     authorized user)
//  2. the gcloud well-known file, when it holds an authorized user
//  3. the instance metadata server
//
// Only the environment and the file system are read; the metadata server is
// not probed, so the fallback always succeeds here and fails later if there
// is no server to talk to.
func ApplicationDefault(opts ...Option) (Credential, error) {
	if path := os.Getenv(EnvCredentialsFile); path != "" {
		return FromFile(path, opts...)
	}

	if cred, err := fromWellKnownFile(opts); cred != nil || err != nil {
		return cred, err
	}

	return NewComputeEngineCredential(opts...), nil
}

// FromFile loads a service account or authorized user file.
func FromFile(path string, opts ...Option) (Credential, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &errx.Error{
			Kind:    errx.KindInvalidCredential,
			Code:    errx.CodeInvalidCredential,
			Message: "failed to read credentials from file " + path,
			Err:     err,
		}
	}
	return FromJSON(b, opts...)
}

// FromJSON picks the credential variant from the "type" field.
func FromJSON(b []byte, opts ...Option) (Credential, error) {
	t, err := sniffType(b)
	if err != nil {
		return nil, err
	}

	switch t {
	case typeServiceAccount:
		return ServiceAccountFromJSON(b, opts...)
	case typeAuthorizedUser:
		return RefreshTokenFromJSON(b, opts...)
	default:
		return nil, errx.InvalidCredential("unsupported credentials type %q", t)
	}
}

// WellKnownFile returns where gcloud writes application default
// credentials on this platform.
func WellKnownFile() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", errors.New("APPDATA is not set")
		}
		return filepath.Join(appData, "gcloud", wellKnownFile), nil
	}

	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "gcloud", wellKnownFile), nil
}

// fromWellKnownFile returns (nil, nil) when discovery should move on.
func fromWellKnownFile(opts []Option) (Credential, error) {
	path, err := WellKnownFile()
	if err != nil {
		return nil, nil
	}

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &errx.Error{
			Kind:    errx.KindInvalidCredential,
			Code:    errx.CodeInvalidCredential,
			Message: "failed to read credentials from file " + path,
			Err:     err,
		}
	}

	t, err := sniffType(b)
	if err != nil {
		return nil, err
	}

	// gcloud only ever writes user credentials here, anything else falls
	// through to the metadata server.
	if t != typeAuthorizedUser {
		return nil, nil
	}
	return RefreshTokenFromJSON(b, opts...)
}

func sniffType(b []byte) (string, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return "", &errx.Error{
			Kind:    errx.KindInvalidCredential,
			Code:    errx.CodeInvalidCredential,
			Message: "failed to parse credentials json",
			Err:     err,
		}
	}
	return probe.Type, nil
}
