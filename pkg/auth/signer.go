package auth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/aussiebroadwan/firekit/pkg/credential"
	"github.com/aussiebroadwan/firekit/pkg/errx"
	"github.com/aussiebroadwan/firekit/pkg/jwtx"
)

// CryptoSigner signs custom tokens on behalf of a service account.
type CryptoSigner interface {
	jwtx.BlobSigner

	// Email is the service account the tokens are issued by.
	Email(ctx context.Context) (string, error)

	// KeyID is put in the token header when known, "" otherwise.
	KeyID() string
}

// emailer is satisfied by credentials that can name their service account
// without a private key, the metadata server being the obvious one.
type emailer interface {
	ServiceAccountEmail(ctx context.Context) (string, error)
}

func resolveSigner(cfg *Config, hc *http.Client, ep Endpoints) CryptoSigner {
	if cfg.Signer != nil {
		return cfg.Signer
	}

	if sa, ok := cfg.Credential.(*credential.ServiceAccountCredential); ok {
		return NewLocalSigner(sa.ClientEmail(), sa.Signer())
	}

	if cfg.ServiceAccountID != "" {
		return NewIAMSigner(hc, ep.IAMURL, cfg.ServiceAccountID)
	}

	if e, ok := cfg.Credential.(emailer); ok {
		return &iamSigner{hc: hc, baseURL: ep.IAMURL, lookup: e.ServiceAccountEmail}
	}

	return nil
}

type localSigner struct {
	email  string
	signer jwtx.Signer
}

// NewLocalSigner signs with a private key held in process.
func NewLocalSigner(email string, signer jwtx.Signer) CryptoSigner {
	return &localSigner{email: email, signer: signer}
}

func (s *localSigner) SignBlob(ctx context.Context, data []byte) ([]byte, error) {
	return s.signer.SignBlob(ctx, data)
}

func (s *localSigner) Email(context.Context) (string, error) { return s.email, nil }
func (s *localSigner) KeyID() string                        { return s.signer.KID() }

// iamSigner signs through the IAM credentials signBlob API, for when the
// private key is not ours to hold.
type iamSigner struct {
	hc      *http.Client
	baseURL string

	mu     sync.Mutex
	email  string
	lookup func(ctx context.Context) (string, error)
}

// NewIAMSigner signs as email using the IAM credentials API. hc must
// carry authorization.
func NewIAMSigner(hc *http.Client, baseURL, email string) CryptoSigner {
	if baseURL == "" {
		baseURL = DefaultIAMURL
	}
	return &iamSigner{hc: hc, baseURL: baseURL, email: email}
}

func (s *iamSigner) KeyID() string { return "" }

func (s *iamSigner) Email(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.email != "" {
		return s.email, nil
	}
	if s.lookup == nil {
		return "", errx.InvalidCredential("no service account email available for signing")
	}

	email, err := s.lookup(ctx)
	if err != nil {
		return "", &errx.Error{
			Kind:    errx.KindInvalidCredential,
			Code:    errx.CodeInvalidCredential,
			Message: "failed to determine service account email; initialize the app with a service account credential or set the service account ID",
			Err:     err,
		}
	}
	s.email = email
	return email, nil
}

func (s *iamSigner) SignBlob(ctx context.Context, data []byte) ([]byte, error) {
	email, err := s.Email(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]string{
		"payload": base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return nil, errx.Internal(err, "failed to encode signBlob request")
	}

	url := fmt.Sprintf("%s/projects/-/serviceAccounts/%s:signBlob", s.baseURL, email)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errx.Internal(err, "failed to create signBlob request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, errx.Internal(err, "failed to call signBlob")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errx.Internal(err, "failed to read signBlob response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errx.New(errx.KindInternal, errx.CodeInternal,
			"signBlob failed with status %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		KeyID      string `json:"keyId"`
		SignedBlob string `json:"signedBlob"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errx.Internal(err, "failed to decode signBlob response")
	}

	sig, err := base64.StdEncoding.DecodeString(out.SignedBlob)
	if err != nil {
		return nil, errx.Internal(err, "signBlob returned an invalid signature")
	}
	return sig, nil
}
