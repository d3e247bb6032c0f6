package apibase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultProbePath is the endpoint used to check that a base URL serves the API.
	DefaultProbePath = "/register/dev"

	// DefaultProbeTimeout bounds one probe request.
	DefaultProbeTimeout = 8 * time.Second

	// DefaultProbeUserAgent identifies probe requests.
	DefaultProbeUserAgent = "MoeKoe/1.0 (api-base probe)"
)

// Probe error tags.
const (
	ProbeErrTimeout = "timeout"
	ProbeErrNoDFID  = "no_dfid"
)

// ProbeOptions tunes a single probe. Zero values select the defaults.
type ProbeOptions struct {
	Path    string
	Timeout time.Duration
}

// ProbeResult is the outcome of probing a base URL.
//
// A non-2xx response sets Status and StatusText and leaves Error empty. Other failures set
// Error to ProbeErrTimeout, ProbeErrNoDFID or the transport error message.
type ProbeResult struct {
	OK         bool   `json:"ok"`
	Status     int    `json:"status,omitempty"`
	StatusText string `json:"statusText,omitempty"`
	Error      string `json:"error,omitempty"`
	Data       any    `json:"data,omitempty"`
	DFID       string `json:"dfid,omitempty"`
}

// Prober issues connectivity probes against API base URLs.
type Prober struct {
	httpClient *http.Client
	userAgent  string
}

// ProberOption is a functional option for configuring the prober.
type ProberOption func(*Prober)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(client *http.Client) ProberOption {
	return func(p *Prober) {
		p.httpClient = client
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) ProberOption {
	return func(p *Prober) {
		p.userAgent = ua
	}
}

// NewProber creates a prober. The per-request deadline comes from ProbeOptions, so the
// default client carries no timeout of its own.
func NewProber(opts ...ProberOption) *Prober {
	p := &Prober{
		httpClient: &http.Client{},
		userAgent:  DefaultProbeUserAgent,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Probe performs one GET against JoinURL(baseURL, opts.Path) and reports whether it
// answered with a device fingerprint (data.dfid). It never returns an error; every
// failure is described by the result.
func (p *Prober) Probe(ctx context.Context, baseURL string, opts ProbeOptions) ProbeResult {
	path := opts.Path
	if path == "" {
		path = DefaultProbePath
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	target := JoinURL(baseURL, path)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Debug().
		Str("url", target).
		Dur("timeout", timeout).
		Msg("Probing API base URL")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return ProbeResult{Error: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProbeResult{Error: ProbeErrTimeout}
		}
		return ProbeResult{Error: transportMessage(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ProbeResult{
			Status:     resp.StatusCode,
			StatusText: statusText(resp),
		}
	}

	data := decodeBody(resp.Body)

	dfid := extractDFID(data)
	if dfid == "" {
		return ProbeResult{Error: ProbeErrNoDFID, Data: data}
	}

	return ProbeResult{OK: true, Data: data, DFID: dfid}
}

// decodeBody parses a JSON body, yielding nil when it cannot be read or parsed.
func decodeBody(body io.Reader) any {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}
	return data
}

// extractDFID returns data.data.dfid when it is a non-empty string.
func extractDFID(data any) string {
	root, ok := data.(map[string]any)
	if !ok {
		return ""
	}
	inner, ok := root["data"].(map[string]any)
	if !ok {
		return ""
	}
	dfid, _ := inner["dfid"].(string)
	return dfid
}

func statusText(resp *http.Response) string {
	text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))
	text = strings.TrimSpace(text)
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

// transportMessage unwraps *url.Error so the message names the underlying cause.
func transportMessage(err error) string {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Err != nil {
		return uerr.Err.Error()
	}
	return err.Error()
}
