package jwtx

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"sync"
)

var ErrNoKey = errors.New("jwtx: key not found")

// KeySet holds public verification keys in memory. It's thread-safe, so
// the emulator can publish from it while verifiers read from it.
type KeySet struct {
	mu  sync.RWMutex
	jks JWKS
	pub map[string]*rsa.PublicKey
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{
		pub: make(map[string]*rsa.PublicKey),
	}
}

// AddSigner registers a Signer's public JWK into the KeySet.
func (k *KeySet) AddSigner(s Signer) error {
	return k.AddJWK(s.PublicJWK())
}

// AddJWK adds a JWK to the KeySet and parses it into a usable crypto key.
func (k *KeySet) AddJWK(j JWK) error {
	key, err := parseJWKToKey(j)
	if err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pub[j.Kid] = key
	k.jks.Keys = append(k.jks.Keys, j)
	return nil
}

// Get returns the public key for the given kid.
func (k *KeySet) Get(kid string) (*rsa.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if pk, ok := k.pub[kid]; ok {
		return pk, nil
	}
	return nil, ErrNoKey
}

// Key implements KeySource.
func (k *KeySet) Key(_ context.Context, kid string) (*rsa.PublicKey, error) {
	pk, err := k.Get(kid)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKID, kid)
	}
	return pk, nil
}

// PublicJWKS returns a snapshot of the KeySet's JWKS for HTTP serving.
func (k *KeySet) PublicJWKS() JWKS {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return JWKS{Keys: append([]JWK(nil), k.jks.Keys...)}
}

// PublicPEMs returns kid → PEM encoded public key, the other format the
// platform publishes its keys in.
func (k *KeySet) PublicPEMs() (map[string]string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	out := make(map[string]string, len(k.jks.Keys))
	for _, j := range k.jks.Keys {
		p, err := j.PEM()
		if err != nil {
			return nil, err
		}
		out[j.Kid] = p
	}
	return out, nil
}

// IsReady returns true if the KeySet has at least one key loaded.
func (k *KeySet) IsReady() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.pub) > 0
}

// ResetFromJWKS replaces all keys from a JWKS.
func (k *KeySet) ResetFromJWKS(jwks JWKS) error {
	newMap := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, j := range jwks.Keys {
		key, err := parseJWKToKey(j)
		if err != nil {
			return err
		}
		newMap[j.Kid] = key
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	k.pub = newMap
	k.jks = jwks

	return nil
}

// ParseKeyDocument decodes a published key document. Two shapes are out
// there: a JWKS ({"keys":[...]}) and a flat object of kid → PEM, where the
// PEM is either an X.509 certificate or a bare public key.
func ParseKeyDocument(body []byte) (map[string]*rsa.PublicKey, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("jwtx: decode key document: %w", err)
	}

	if _, ok := probe["keys"]; ok {
		var jwks JWKS
		if err := json.Unmarshal(body, &jwks); err != nil {
			return nil, fmt.Errorf("jwtx: decode jwks: %w", err)
		}
		out := make(map[string]*rsa.PublicKey, len(jwks.Keys))
		for _, j := range jwks.Keys {
			key, err := parseJWKToKey(j)
			if err != nil {
				return nil, err
			}
			out[j.Kid] = key
		}
		return out, nil
	}

	out := make(map[string]*rsa.PublicKey, len(probe))
	for kid, raw := range probe {
		var p string
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("jwtx: key %q is not a string", kid)
		}
		key, err := ParseRSAPublicKeyPEM([]byte(p))
		if err != nil {
			return nil, fmt.Errorf("jwtx: key %q: %w", kid, err)
		}
		out[kid] = key
	}
	return out, nil
}

// ParseRSAPublicKeyPEM accepts a CERTIFICATE or PUBLIC KEY block.
func ParseRSAPublicKeyPEM(b []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM")
	}

	var pub any
	switch block.Type {
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse certificate: %w", err)
		}
		pub = cert.PublicKey
	case "PUBLIC KEY":
		k, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse public key: %w", err)
		}
		pub = k
	default:
		return nil, fmt.Errorf("jwtx: unsupported PEM type %q", block.Type)
	}

	rk, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("jwtx: not an RSA public key")
	}
	return rk, nil
}

// parseJWKToKey converts a JWK into an RSA public key.
func parseJWKToKey(j JWK) (*rsa.PublicKey, error) {
	if j.Kty != "RSA" {
		return nil, errors.New("jwtx: unsupported kty " + j.Kty)
	}
	nb, err := base64.RawURLEncoding.DecodeString(j.N)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(j.E)
	if err != nil {
		return nil, err
	}
	n := new(big.Int).SetBytes(nb)
	e := new(big.Int).SetBytes(eb).Int64()
	return &rsa.PublicKey{N: n, E: int(e)}, nil
}
