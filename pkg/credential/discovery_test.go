package credential_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/aussiebroadwan/firekit/pkg/credential"
	"github.com/aussiebroadwan/firekit/pkg/errx"
	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, v any) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))

	var b []byte
	switch v := v.(type) {
	case string:
		b = []byte(v)
	default:
		var err error
		b, err = json.Marshal(v)
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

var authorizedUser = map[string]string{
	"type":          "authorized_user",
	"client_id":     "client-id",
	"client_secret": "client-secret",
	"refresh_token": "1//refresh",
}

func TestApplicationDefaultFromEnv(t *testing.T) {
	dir := t.TempDir()

	t.Run("service account", func(t *testing.T) {
		path := writeFile(t, filepath.Join(dir, "sa.json"), testServiceAccount(t))
		t.Setenv(credential.EnvCredentialsFile, path)

		cred, err := credential.ApplicationDefault()
		require.NoError(t, err)
		require.IsType(t, &credential.ServiceAccountCredential{}, cred)
	})

	t.Run("authorized user", func(t *testing.T) {
		path := writeFile(t, filepath.Join(dir, "user.json"), authorizedUser)
		t.Setenv(credential.EnvCredentialsFile, path)

		cred, err := credential.ApplicationDefault()
		require.NoError(t, err)
		require.IsType(t, &credential.RefreshTokenCredential{}, cred)
	})

	t.Run("unparseable file is fatal", func(t *testing.T) {
		path := writeFile(t, filepath.Join(dir, "junk.json"), "{not json")
		t.Setenv(credential.EnvCredentialsFile, path)

		_, err := credential.ApplicationDefault()
		require.True(t, errx.IsInvalidCredential(err))
	})

	t.Run("missing file is fatal", func(t *testing.T) {
		t.Setenv(credential.EnvCredentialsFile, filepath.Join(dir, "nope.json"))

		_, err := credential.ApplicationDefault()
		require.True(t, errx.IsInvalidCredential(err))
	})

	t.Run("unknown type", func(t *testing.T) {
		path := writeFile(t, filepath.Join(dir, "ext.json"), map[string]string{"type": "external_account"})
		t.Setenv(credential.EnvCredentialsFile, path)

		_, err := credential.ApplicationDefault()
		require.True(t, errx.IsInvalidCredential(err))
	})
}

func TestApplicationDefaultWellKnownFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("well-known file lives under APPDATA on windows")
	}

	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })
	t.Setenv(credential.EnvCredentialsFile, "")

	gcloudFile := func(home string) string {
		return filepath.Join(home, ".config", "gcloud", "application_default_credentials.json")
	}

	t.Run("authorized user", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		writeFile(t, gcloudFile(home), authorizedUser)

		path, err := credential.WellKnownFile()
		require.NoError(t, err)
		require.Equal(t, gcloudFile(home), path)

		cred, err := credential.ApplicationDefault()
		require.NoError(t, err)
		require.IsType(t, &credential.RefreshTokenCredential{}, cred)
	})

	t.Run("other types fall through to metadata", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		writeFile(t, gcloudFile(home), testServiceAccount(t))

		cred, err := credential.ApplicationDefault()
		require.NoError(t, err)
		require.IsType(t, &credential.ComputeEngineCredential{}, cred)
	})

	t.Run("broken file is fatal", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		writeFile(t, gcloudFile(home), "{")

		_, err := credential.ApplicationDefault()
		require.True(t, errx.IsInvalidCredential(err))
	})

	t.Run("nothing configured", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())

		cred, err := credential.ApplicationDefault()
		require.NoError(t, err)
		require.IsType(t, &credential.ComputeEngineCredential{}, cred)
	})
}
