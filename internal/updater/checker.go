// Package updater checks GitHub releases for a newer version of the app.
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultBaseURL is the GitHub API base URL.
	DefaultBaseURL = "https://api.github.com"

	// DefaultUserAgent is sent with release queries (GitHub rejects requests without one).
	DefaultUserAgent = "MoeKoe-updater"

	// DefaultTimeout for HTTP requests.
	DefaultTimeout = 30 * time.Second
)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// Release is the subset of a GitHub release the updater uses.
type Release struct {
	TagName    string  `json:"tag_name"`
	Name       string  `json:"name"`
	Body       string  `json:"body"`
	HTMLURL    string  `json:"html_url"`
	Prerelease bool    `json:"prerelease"`
	Assets     []Asset `json:"assets"`
}

// Asset is a downloadable file attached to a release.
type Asset struct {
	Name               string `json:"name"`
	Size               int64  `json:"size"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Version returns the tag without its "v" prefix.
func (r *Release) Version() string {
	return strings.TrimPrefix(r.TagName, "v")
}

// Notes returns the release notes with HTML tags removed.
func (r *Release) Notes() string {
	return strings.TrimSpace(htmlTag.ReplaceAllString(r.Body, ""))
}

// Checker queries the latest release of one repository.
type Checker struct {
	owner      string
	repo       string
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// CheckerOption is a functional option for configuring the checker.
type CheckerOption func(*Checker)

// WithBaseURL sets a custom API base URL (useful for testing).
func WithBaseURL(url string) CheckerOption {
	return func(c *Checker) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) CheckerOption {
	return func(c *Checker) {
		c.httpClient = client
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) CheckerOption {
	return func(c *Checker) {
		c.userAgent = ua
	}
}

// NewChecker creates a checker for github.com/{owner}/{repo}.
func NewChecker(owner, repo string, opts ...CheckerOption) *Checker {
	c := &Checker{
		owner:     owner,
		repo:      repo,
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Latest fetches the latest published release.
func (c *Checker) Latest(ctx context.Context) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, c.owner, c.repo)

	log.Debug().Str("url", url).Msg("Fetching latest release")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("latest release: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rel Release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("decode release: %w", err)
	}
	if rel.TagName == "" {
		return nil, fmt.Errorf("latest release has no tag")
	}

	return &rel, nil
}

// Check fetches the latest release and reports whether it is newer than currentVersion.
func (c *Checker) Check(ctx context.Context, currentVersion string) (*Release, bool, error) {
	rel, err := c.Latest(ctx)
	if err != nil {
		return nil, false, err
	}
	return rel, CompareVersions(rel.TagName, currentVersion) > 0, nil
}

// CompareVersions compares two "vMAJOR.MINOR.PATCH" strings.
// Returns +1 if a > b, -1 if a < b, 0 if equal. A missing component counts as zero
// and a pre-release suffix ("1.2.0-beta") is ignored.
func CompareVersions(a, b string) int {
	pa, pb := parseVersion(a), parseVersion(b)
	for i := range pa {
		if pa[i] > pb[i] {
			return 1
		}
		if pa[i] < pb[i] {
			return -1
		}
	}
	return 0
}

func parseVersion(v string) [3]int {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	v = strings.SplitN(v, "+", 2)[0]
	parts := strings.Split(v, ".")

	var nums [3]int
	for i, p := range parts {
		if i >= len(nums) {
			break
		}
		p = strings.SplitN(p, "-", 2)[0]
		nums[i], _ = strconv.Atoi(p)
	}
	return nums
}
