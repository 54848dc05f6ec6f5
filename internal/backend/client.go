// Package backend is the client for the well data service that computes
// pressure aggregates, flow rates and range statistics. The dashboard only
// consumes these results; nothing here does domain arithmetic.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/banshee-data/welldash/internal/httputil"
	"github.com/banshee-data/welldash/internal/monitoring"
)

var logf = monitoring.Component("backend")

// maxBodyBytes caps a decoded response body.
const maxBodyBytes = 32 << 20

// ErrMalformedResponse is returned when a response lacks an expected field or
// is not valid JSON. Callers treat it the same as an empty result.
var ErrMalformedResponse = errors.New("backend: malformed response")

// ErrNoData is returned when the service answers but has nothing for the
// requested range.
var ErrNoData = errors.New("backend: no data for range")

// FetchError reports a transport failure or a non-2xx status. StatusCode is
// zero for transport failures.
type FetchError struct {
	Op         string
	URL        string
	StatusCode int
	Detail     string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		if e.Detail != "" {
			return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Detail)
		}
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client talks to the data service. Requests carry the caller's context and
// are never retried.
type Client struct {
	HTTP    httputil.HTTPClient
	BaseURL string
}

// NewClient returns a client for baseURL. A nil hc uses a standard client
// with a 15s timeout.
func NewClient(hc httputil.HTTPClient, baseURL string) *Client {
	if hc == nil {
		hc = httputil.NewStandardClient(&http.Client{Timeout: 15 * time.Second})
	}
	return &Client{HTTP: hc, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Client) getJSON(ctx context.Context, op, path string, q url.Values, v any) error {
	u := c.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "zstd, gzip")

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		logf("%s failed: %v", op, err)
		return &FetchError{Op: op, URL: u, Err: err}
	}
	defer resp.Body.Close()

	body, err := decodedBody(resp)
	if err != nil {
		return &FetchError{Op: op, URL: u, Err: err}
	}
	defer body.Close()
	limited := io.LimitReader(body, maxBodyBytes)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(limited, 4096))
		fe := &FetchError{Op: op, URL: u, StatusCode: resp.StatusCode, Detail: errorDetail(raw)}
		logf("%s: %v", op, fe)
		return fe
	}

	if err := json.NewDecoder(limited).Decode(v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, op, err)
	}
	logf("%s ok in %s", op, time.Since(start).Round(time.Millisecond))
	return nil
}

// decodedBody unwraps a zstd or gzip encoded response.
func decodedBody(resp *http.Response) (io.ReadCloser, error) {
	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch enc {
	case "", "identity":
		return io.NopCloser(resp.Body), nil
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		return zr, nil
	case "zstd":
		d, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("zstd body: %w", err)
		}
		return d.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", enc)
	}
}

// errorDetail extracts {"detail": "..."} from an error body, falling back to
// the trimmed body text.
func errorDetail(raw []byte) string {
	var d struct {
		Detail any `json:"detail"`
	}
	if json.Unmarshal(raw, &d) == nil && d.Detail != nil {
		if s, ok := d.Detail.(string); ok {
			return s
		}
		b, _ := json.Marshal(d.Detail)
		return string(b)
	}
	return strings.TrimSpace(string(raw))
}

// cycleID accepts a JSON string or number identifier.
type cycleID string

func (id *cycleID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		s = ""
	}
	*id = cycleID(s)
	return nil
}
