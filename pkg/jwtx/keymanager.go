package jwtx

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/aussiebroadwan/firekit/pkg/cryptox"
)

// KeyManager holds a handful of in-memory RS256 signing keys and the KeySet
// that publishes their public halves.
//
// Keys are selected randomly for signing operations, so anything verifying
// against the published set has to cope with more than one kid.
type KeyManager struct {
	KeySet *KeySet

	signers []Signer
	mu      sync.RWMutex
}

// KeyManagerOptions configures the KeyManager.
type KeyManagerOptions struct {
	// RSABits specifies the RSA key size. Defaults to 2048 if not
	// specified and must be at least 2048.
	RSABits int

	// NumKeys specifies how many signing keys to generate. Defaults to 2
	// if not specified. Minimum is 1, maximum is 10.
	NumKeys int

	// KIDPrefix is prepended to the random key ids.
	KIDPrefix string
}

// NewEphemeralKeyManager creates a new KeyManager with ephemeral keys.
// The keys are generated on the fly and only exist in memory - they are
// never persisted to disk. This means all tokens become invalid when the
// process restarts, which is exactly what you want from a test double.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	numKeys := opts.NumKeys
	if numKeys <= 0 {
		numKeys = 2
	}
	if numKeys > 10 {
		numKeys = 10
	}

	bits := opts.RSABits
	if bits == 0 {
		bits = 2048
	}

	prefix := opts.KIDPrefix
	if prefix == "" {
		prefix = "firekit"
	}

	keyset := NewKeySet()
	signers := make([]Signer, 0, numKeys)

	for i := 0; i < numKeys; i++ {
		keyID, err := generateRandomKeyID(prefix)
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate key ID: %w", err)
		}

		pemBytes, err := cryptox.GenerateRSAKey(bits)
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate signer %d: %w", i+1, err)
		}

		signer, err := NewSignerRS256(keyID, pemBytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to load signer %d: %w", i+1, err)
		}

		signers = append(signers, signer)

		if err := keyset.AddSigner(signer); err != nil {
			return nil, fmt.Errorf("jwtx: failed to add signer %d to keyset: %w", i+1, err)
		}
	}

	return &KeyManager{
		KeySet:  keyset,
		signers: signers,
	}, nil
}

// IsReady returns true if the KeyManager has valid keys loaded.
func (km *KeyManager) IsReady() bool {
	return km.KeySet.IsReady()
}

// GetSigner returns a randomly selected signer from the available signing keys.
func (km *KeyManager) GetSigner() Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()

	if len(km.signers) == 0 {
		return nil
	}

	if len(km.signers) == 1 {
		return km.signers[0]
	}

	return km.signers[rand.IntN(len(km.signers))]
}

// NumSigners returns the number of active signing keys.
func (km *KeyManager) NumSigners() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.signers)
}

// Verifier returns an RS256 verifier over this manager's keys.
func (km *KeyManager) Verifier(opts VerifyOptions) *RS256Verifier {
	return NewVerifierRS256(km.KeySet, opts)
}

// generateRandomKeyID creates a random key identifier: "{prefix}-{token}".
func generateRandomKeyID(prefix string) (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", fmt.Errorf("failed to generate random key ID: %w", err)
	}
	return fmt.Sprintf("%s-%s", prefix, token), nil
}
