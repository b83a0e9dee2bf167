package authsdk

import (
	"net/http"
	"strings"
	"time"
)

// SDKClient talks to the identity platform's public REST API.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// APIKey is sent as the key query parameter. The emulator ignores it.
	APIKey string
}

// NewSDKClient creates a client for the platform at baseURL. A bare
// host:port is treated as plain http, which is what the emulator speaks.
func NewSDKClient(baseURL string) *SDKClient {
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}
