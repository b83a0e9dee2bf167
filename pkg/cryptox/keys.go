// Package cryptox generates the key material the emulator and the tests
// need: RSA signing keys in the PEM flavours service account files use,
// self-signed certificates for publishing them, and opaque random tokens.
package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"
)

// MinRSABits is the smallest key we are willing to sign tokens with.
const MinRSABits = 2048

// GenerateRSAKey generates a new RSA private key and returns it as a PKCS1
// "RSA PRIVATE KEY" PEM block.
func GenerateRSAKey(bits int) ([]byte, error) {
	key, err := newRSAKey(bits)
	if err != nil {
		return nil, err
	}
	return EncodePKCS1(key), nil
}

// GenerateRSAKeyPKCS8 generates a new RSA private key as a PKCS8 "PRIVATE
// KEY" block, which is what lands in the private_key field of a downloaded
// service account file.
func GenerateRSAKeyPKCS8(bits int) ([]byte, error) {
	key, err := newRSAKey(bits)
	if err != nil {
		return nil, err
	}
	return EncodePKCS8(key)
}

// EncodePKCS1 PEM encodes key in PKCS1 form.
func EncodePKCS1(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

// EncodePKCS8 PEM encodes key in PKCS8 form.
func EncodePKCS8(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to marshal PKCS8 key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// SelfSignedCertificate wraps key's public half in a self-signed X.509
// certificate valid for ttl, PEM encoded. Public signing keys are commonly
// published as a kid → certificate map in this form.
func SelfSignedCertificate(key *rsa.PrivateKey, commonName string, ttl time.Duration) ([]byte, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, fmt.Errorf("cryptox: serial: %w", err)
	}

	now := time.Now().UTC()
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    now.Add(-time.Minute),
		NotAfter:     now.Add(ttl),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create certificate: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), nil
}

func newRSAKey(bits int) (*rsa.PrivateKey, error) {
	if bits < MinRSABits {
		return nil, fmt.Errorf("cryptox: RSA key size must be at least %d bits", MinRSABits)
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate RSA key: %w", err)
	}
	return key, nil
}
