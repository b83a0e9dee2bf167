package credential

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"cloud.google.com/go/compute/metadata"
	"github.com/aussiebroadwan/firekit/pkg/errx"
	"golang.org/x/sync/singleflight"
)

const (
	computeTokenPath   = "instance/service-accounts/default/token"
	computeProjectPath = "project/project-id"

	// metadataHostEnv redirects every metadata request, as the metadata
	// package does.
	metadataHostEnv     = "GCE_METADATA_HOST"
	defaultMetadataHost = "169.254.169.254"

	maxMetadataBody = 1 << 20
)

// ComputeEngineCredential asks the instance metadata server for tokens.
// There is nothing to validate up front, so construction never fails and
// problems only surface on the first fetch.
//
// Token and project id lookups are a single GET each; a failing metadata
// server is reported, not retried. The metadata host can be redirected
// with GCE_METADATA_HOST, which is how the tests point it at an httptest
// server.
type ComputeEngineCredential struct {
	hc     *http.Client
	client *metadata.Client

	group singleflight.Group

	mu        sync.Mutex
	projectID string
}

// NewComputeEngineCredential creates a metadata backed credential.
func NewComputeEngineCredential(opts ...Option) *ComputeEngineCredential {
	o := newOptions(opts)
	return &ComputeEngineCredential{
		hc:     o.httpClient,
		client: metadata.NewClient(o.httpClient),
	}
}

// AccessToken implements Credential.
func (c *ComputeEngineCredential) AccessToken(ctx context.Context) (*Token, error) {
	ctx, span := tracer.Start(ctx, "credential.ComputeEngine.AccessToken")
	defer span.End()

	body, err := c.get(ctx, computeTokenPath)
	if err != nil {
		span.RecordError(err)
		return nil, metadataError(err, "failed to fetch access token from metadata server")
	}

	return parseTokenResponse(body)
}

// ProjectID implements ProjectIDProvider. The first successful lookup is
// remembered; failures are not, so a later call can try again. Concurrent
// callers share one lookup.
func (c *ComputeEngineCredential) ProjectID(ctx context.Context) (string, error) {
	c.mu.Lock()
	id := c.projectID
	c.mu.Unlock()
	if id != "" {
		return id, nil
	}

	v, err, _ := c.group.Do("project-id", func() (any, error) {
		c.mu.Lock()
		cached := c.projectID
		c.mu.Unlock()
		if cached != "" {
			return cached, nil
		}

		body, err := c.get(ctx, computeProjectPath)
		if err != nil {
			return "", metadataError(err, "failed to determine project id from metadata server")
		}

		id := strings.TrimSpace(string(body))
		if id == "" {
			return "", errx.CredentialFetch(nil, "metadata server returned an empty project id")
		}

		c.mu.Lock()
		c.projectID = id
		c.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// get makes exactly one request for a metadata path.
func (c *ComputeEngineCredential) get(ctx context.Context, path string) ([]byte, error) {
	host := os.Getenv(metadataHostEnv)
	if host == "" {
		host = defaultMetadataHost
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+host+"/computeMetadata/v1/"+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Metadata-Flavor", "Google")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataBody))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, metadata.NotDefinedError(path)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata server returned status %d: %s", resp.StatusCode, truncate(body))
	}
	return body, nil
}

func metadataError(err error, msg string) error {
	var nd metadata.NotDefinedError
	if errors.As(err, &nd) {
		return errx.CredentialFetch(err, "%s: %s is not defined", msg, string(nd))
	}
	return errx.CredentialFetch(err, "%s", msg)
}

// ServiceAccountEmail is the email of the instance's default service
// account, used to sign through IAM when there is no private key. It only
// runs when a custom token is minted, so the metadata package's own
// retries are fine here.
func (c *ComputeEngineCredential) ServiceAccountEmail(ctx context.Context) (string, error) {
	email, err := c.client.EmailWithContext(ctx, "default")
	if err != nil {
		return "", metadataError(err, "failed to determine service account email from metadata server")
	}
	return strings.TrimSpace(email), nil
}
