package registry

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/matzehuels/cratesls/pkg/httputil"
)

// DefaultIndexURL is the crates.io sparse index.
const DefaultIndexURL = "https://index.crates.io"

const httpTimeout = 10 * time.Second

// IndexClient fetches per-crate version listings from a sparse registry
// index. The index is a static file tree, one newline-delimited JSON file
// per crate, and is not rate limited.
//
// All methods are safe for concurrent use by multiple goroutines.
type IndexClient struct {
	http    *http.Client
	baseURL string
	headers map[string]string
}

// NewIndexClient creates an IndexClient against baseURL. An empty baseURL
// selects [DefaultIndexURL].
func NewIndexClient(baseURL string) *IndexClient {
	if baseURL == "" {
		baseURL = DefaultIndexURL
	}
	return &IndexClient{
		http:    &http.Client{Timeout: httpTimeout},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		headers: map[string]string{"User-Agent": userAgent},
	}
}

// FetchVersions retrieves every published version of the named crate.
// The returned Metadata has versions in ascending semver order and no
// description (that comes from the API source).
//
// Returns [ErrNotFound] if the crate has no index file, [ErrNetwork] for
// transport failures (retried with backoff before surfacing), and
// [ErrMalformed] if no line of the body could be parsed.
func (c *IndexClient) FetchVersions(ctx context.Context, name string) (*Metadata, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, IndexPath(name))

	var meta *Metadata
	err := httputil.RetryWithBackoff(ctx, func() error {
		var err error
		meta, err = c.fetch(ctx, name, url)
		return err
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

func (c *IndexClient) fetch(ctx context.Context, name, url string) (*Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, fmt.Errorf("%w: crate %s", err, name)
	}

	meta := &Metadata{Name: name}
	seen := 0

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		seen++

		// Lines the registry publishes with schema versions we don't
		// understand are skipped individually, never fatal.
		v, ok := parseIndexLine(line)
		if !ok {
			continue
		}
		meta.Versions = append(meta.Versions, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}

	if len(meta.Versions) == 0 {
		if seen == 0 {
			return nil, fmt.Errorf("%w: crate %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("%w: crate %s index", ErrMalformed, name)
	}

	sortVersions(meta.Versions)
	return meta, nil
}

// indexEntry is one line of a sparse index file, per the registry index
// JSON schema. Only the fields consumed here are declared.
type indexEntry struct {
	Name      string              `json:"name"`
	Vers      string              `json:"vers"`
	Yanked    bool                `json:"yanked"`
	Features  map[string][]string `json:"features"`
	Features2 map[string][]string `json:"features2"`
	Cksum     string              `json:"cksum"`
}

func parseIndexLine(line string) (Version, bool) {
	var e indexEntry
	if err := json.Unmarshal([]byte(line), &e); err != nil {
		return Version{}, false
	}
	sv, err := semver.StrictNewVersion(e.Vers)
	if err != nil {
		return Version{}, false
	}

	var feats []Feature
	for name, enables := range e.Features {
		feats = append(feats, Feature{Name: name, Enables: enables})
	}
	// Cargo merges features2 (namespaced/weak syntax) into features.
	for name, enables := range e.Features2 {
		feats = append(feats, Feature{Name: name, Enables: enables})
	}
	sortFeatures(feats)

	return Version{Semver: sv, Raw: e.Vers, Yanked: e.Yanked, Features: feats}, true
}

// IndexPath derives the index file path for a crate name following the
// registry index layout: 1-character names under "1", 2-character under "2",
// 3-character under "3/<first char>", everything else under
// "<first two>/<next two>". Names are matched case-insensitively by the
// index, so the path is derived from the lower-cased name.
func IndexPath(name string) string {
	name = strings.ToLower(name)
	switch len(name) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("1/%s", name)
	case 2:
		return fmt.Sprintf("2/%s", name)
	case 3:
		return fmt.Sprintf("3/%s/%s", name[:1], name)
	default:
		return fmt.Sprintf("%s/%s/%s", name[:2], name[2:4], name)
	}
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound || code == http.StatusGone:
		return ErrNotFound
	case code >= 500:
		return httputil.Retryable(fmt.Errorf("%w: status %d", ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
