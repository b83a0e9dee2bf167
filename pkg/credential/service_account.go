package credential

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/firekit/pkg/errx"
	"github.com/aussiebroadwan/firekit/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/attribute"
)

const (
	typeServiceAccount = "service_account"
	typeAuthorizedUser = "authorized_user"

	jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionTTL   = time.Hour
)

// ServiceAccount is the JSON key file downloaded for a service account.
type ServiceAccount struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	ClientID     string `json:"client_id"`
	TokenURI     string `json:"token_uri"`
}

// ServiceAccountCredential exchanges a self-signed assertion for an access
// token. It also exposes the private key, which is what custom tokens are
// signed with when it is available.
type ServiceAccountCredential struct {
	account ServiceAccount
	signer  *jwtx.RS256Signer
	opts    options
}

// NewServiceAccountCredential validates sa and parses its key. Nothing
// touches the network here.
func NewServiceAccountCredential(sa ServiceAccount, opts ...Option) (*ServiceAccountCredential, error) {
	switch {
	case sa.ProjectID == "":
		return nil, errx.InvalidCredential("service account must contain a %q property", "project_id")
	case sa.PrivateKey == "":
		return nil, errx.InvalidCredential("service account must contain a %q property", "private_key")
	case sa.ClientEmail == "":
		return nil, errx.InvalidCredential("service account must contain a %q property", "client_email")
	}

	key, err := jwtx.ParseRSAPrivateKey([]byte(sa.PrivateKey))
	if err != nil {
		return nil, &errx.Error{
			Kind:    errx.KindInvalidCredential,
			Code:    errx.CodeInvalidCredential,
			Message: "failed to parse private key",
			Err:     err,
		}
	}

	o := newOptions(opts)
	// The key file may name its own token endpoint; an explicit option wins.
	if sa.TokenURI != "" && o.tokenURL == DefaultTokenURL {
		o.tokenURL = sa.TokenURI
	}

	return &ServiceAccountCredential{
		account: sa,
		signer:  jwtx.NewRS256SignerFromKey(sa.PrivateKeyID, key),
		opts:    o,
	}, nil
}

// ServiceAccountFromJSON decodes and validates a service account key file.
func ServiceAccountFromJSON(b []byte, opts ...Option) (*ServiceAccountCredential, error) {
	var sa ServiceAccount
	if err := json.Unmarshal(b, &sa); err != nil {
		return nil, &errx.Error{
			Kind:    errx.KindInvalidCredential,
			Code:    errx.CodeInvalidCredential,
			Message: "failed to parse service account json",
			Err:     err,
		}
	}
	return NewServiceAccountCredential(sa, opts...)
}

// AccessToken implements Credential.
func (c *ServiceAccountCredential) AccessToken(ctx context.Context) (*Token, error) {
	ctx, span := tracer.Start(ctx, "credential.ServiceAccount.AccessToken")
	span.SetAttributes(attribute.String("client_email", c.account.ClientEmail))
	defer span.End()

	assertion, err := c.assertion(time.Now())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	form := url.Values{
		"grant_type": {jwtBearerGrant},
		"assertion":  {assertion},
	}

	tok, err := postForm(ctx, c.opts.httpClient, c.opts.tokenURL, form)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return tok, nil
}

func (c *ServiceAccountCredential) assertion(now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iss":   c.account.ClientEmail,
		"scope": strings.Join(c.opts.scopes, " "),
		"aud":   c.opts.tokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionTTL).Unix(),
	}

	s, err := c.signer.Sign(claims)
	if err != nil {
		return "", errx.Internal(err, "failed to sign token assertion")
	}
	return s, nil
}

// ProjectID implements ProjectIDProvider.
func (c *ServiceAccountCredential) ProjectID(context.Context) (string, error) {
	return c.account.ProjectID, nil
}

// ClientEmail is the service account identity tokens are issued as.
func (c *ServiceAccountCredential) ClientEmail() string { return c.account.ClientEmail }

// Signer exposes the private key for signing custom tokens.
func (c *ServiceAccountCredential) Signer() jwtx.Signer { return c.signer }

// Account returns a copy of the parsed key file.
func (c *ServiceAccountCredential) Account() ServiceAccount { return c.account }
