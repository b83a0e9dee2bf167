package app

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/aussiebroadwan/firekit/pkg/jwtx"
)

// InitEmulatorKeys generates the two ephemeral key sets the emulator signs
// with: one for ID tokens and one for session cookies. They are published
// on separate endpoints, the same as the real service, so a verifier that
// mixes the two up fails against the emulator too.
//
// Every restart rotates both sets and invalidates anything already issued.
func InitEmulatorKeys(cfg Config, logger *slog.Logger) (idKeys, sessionKeys *jwtx.KeyManager, err error) {
	logger.Info("initializing ephemeral key managers",
		"rsa_bits", cfg.RSABits,
		"num_keys", cfg.NumKeys,
	)

	idKeys, err = jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		RSABits:   cfg.RSABits,
		NumKeys:   cfg.NumKeys,
		KIDPrefix: "idt",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize ID token keys: %w", err)
	}

	sessionKeys, err = jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		RSABits:   cfg.RSABits,
		NumKeys:   cfg.NumKeys,
		KIDPrefix: "sc",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize session cookie keys: %w", err)
	}

	logger.Info("generated ephemeral signing keys",
		"id_token_keys", idKeys.NumSigners(),
		"session_cookie_keys", sessionKeys.NumSigners(),
	)
	logger.Warn("all previously issued tokens are now invalid due to key rotation on startup")

	return idKeys, sessionKeys, nil
}

// LoadTrustedKeys reads the keys custom tokens have to be signed with. The
// file is either a kid to PEM certificate object or a JWKS, the two shapes
// the platform publishes service account keys in. An empty path returns
// nil, meaning signatures are not checked.
func LoadTrustedKeys(path string, logger *slog.Logger) (*jwtx.KeySet, error) {
	if path == "" {
		return nil, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trusted keys: %w", err)
	}

	keys, err := jwtx.ParseKeyDocument(b)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trusted keys %s: %w", path, err)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("trusted keys %s holds no keys", path)
	}

	kids := make([]string, 0, len(keys))
	for kid := range keys {
		kids = append(kids, kid)
	}
	sort.Strings(kids)

	set := jwtx.NewKeySet()
	for _, kid := range kids {
		if err := set.AddJWK(jwtx.NewRSAJWK(kid, "sig", jwtx.AlgorithmRS256, keys[kid])); err != nil {
			return nil, fmt.Errorf("failed to load trusted key %s: %w", kid, err)
		}
	}

	logger.Info("custom token signatures will be verified", "path", path, "kids", kids)
	return set, nil
}
