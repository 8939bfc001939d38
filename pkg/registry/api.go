package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/matzehuels/cratesls/pkg/httputil"
)

// DefaultAPIURL is the crates.io registry API.
const DefaultAPIURL = "https://crates.io/api/v1"

// crates.io requires an identifying User-Agent on every request.
const userAgent = "cratesls/1.0 (https://github.com/matzehuels/cratesls)"

// APIClient fetches crate descriptions from the registry API. The API is
// subject to a strict request-rate policy, so every outbound call,
// retries included, first acquires a permit from the shared [Limiter].
//
// All methods are safe for concurrent use by multiple goroutines.
type APIClient struct {
	http    *http.Client
	baseURL string
	limiter *Limiter
}

// NewAPIClient creates an APIClient against baseURL, gated by limiter.
// An empty baseURL selects [DefaultAPIURL]; a nil limiter gets a fresh one
// at [DefaultRateInterval].
func NewAPIClient(baseURL string, limiter *Limiter) *APIClient {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if limiter == nil {
		limiter = NewLimiter(DefaultRateInterval)
	}
	return &APIClient{
		http:    &http.Client{Timeout: httpTimeout},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		limiter: limiter,
	}
}

// FetchDescription retrieves the human-readable description of the named
// crate. Callers treat any error as "description unavailable"; a failed
// description never poisons the rest of the crate's metadata.
//
// Returns [ErrNotFound] if the API doesn't know the crate, [ErrNetwork]
// for transport failures, and [ErrMalformed] for an undecodable body.
func (c *APIClient) FetchDescription(ctx context.Context, name string) (string, error) {
	url := fmt.Sprintf("%s/crates/%s", c.baseURL, name)

	var desc string
	err := httputil.RetryWithBackoff(ctx, func() error {
		if err := c.limiter.Acquire(ctx); err != nil {
			return err
		}
		var err error
		desc, err = c.fetch(ctx, name, url)
		return err
	})
	if err != nil {
		return "", err
	}
	return desc, nil
}

func (c *APIClient) fetch(ctx context.Context, name, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return "", fmt.Errorf("%w: crate %s", err, name)
	}

	var data crateResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("%w: crate %s api body: %v", ErrMalformed, name, err)
	}
	return data.Crate.Description, nil
}

type crateResponse struct {
	Crate struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"crate"`
}
