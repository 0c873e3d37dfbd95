// Package rest reads table rows from a PostgREST endpoint such as Supabase.
//
// Each table is fetched with a single GET:
//
//	GET {base}/rest/v1/{table}?select=*&order={pk}.asc
//
// Transport errors, 429 and 5xx responses are retried with exponential
// backoff. Responses are decoded into core.Row values so that column order
// and number precision survive unchanged.
package rest

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

	"github.com/JonMunkholm/seedexport/internal/core"
)

// maxErrorBody bounds how much of a failed response is quoted in the error.
const maxErrorBody = 512

// Config configures the REST source.
//
// Zero values are given defaults:
//   - Timeout:        30s
//   - InitialBackoff: 200ms
//   - MaxBackoff:     5s
type Config struct {
	// BaseURL is the project URL, e.g. https://abc.supabase.co
	BaseURL string

	// APIKey is sent as both the apikey header and the bearer token.
	APIKey string

	// Schema selects a non-public schema through Accept-Profile.
	Schema string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// InitialBackoff is the first retry delay; each retry doubles it up to MaxBackoff.
	InitialBackoff time.Duration

	// MaxBackoff caps the retry delay.
	MaxBackoff time.Duration

	// Transport overrides the HTTP round tripper. Used by tests.
	Transport http.RoundTripper
}

// Source fetches rows over PostgREST.
type Source struct {
	base           *url.URL
	apiKey         string
	schema         string
	httpClient     *http.Client
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration

	// sleep waits between attempts; tests replace it to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Source from cfg.
func New(cfg Config) (*Source, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("rest: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("rest: parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("rest: base URL %q must be absolute", cfg.BaseURL)
	}
	if cfg.APIKey == "" {
		return nil, errors.New("rest: API key is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Source{
		base:           base,
		apiKey:         cfg.APIKey,
		schema:         cfg.Schema,
		httpClient:     &http.Client{Timeout: cfg.Timeout, Transport: transport},
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		sleep:          sleepWithContext,
	}, nil
}

// TableURL returns the request URL for table.
func (s *Source) TableURL(table core.TableSpec) string {
	u := *s.base
	u.Path = s.base.Path + "/rest/v1/" + table.Name
	q := url.Values{}
	q.Set("select", "*")
	if table.PrimaryKey != "" {
		q.Set("order", table.PrimaryKey+".asc")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// FetchRows implements core.RowSource.
func (s *Source) FetchRows(ctx context.Context, table core.TableSpec) ([]core.Row, error) {
	resp, err := s.get(ctx, s.TableURL(table))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("rest: GET %s: status %d: %s",
			table.Name, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var rows []core.Row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("rest: decode %s: %w", table.Name, err)
	}
	if rows == nil {
		rows = []core.Row{}
	}
	return rows, nil
}

// get issues a GET with retry. The returned response has a body the caller
// must close; a non-retryable non-2xx status is returned as a response, not
// an error.
func (s *Source) get(ctx context.Context, rawURL string) (*http.Response, error) {
	attempts := s.maxRetries + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("rest: build request: %w", err)
		}
		req.Header.Set("apikey", s.apiKey)
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
		req.Header.Set("Accept", "application/json")
		if s.schema != "" {
			req.Header.Set("Accept-Profile", s.schema)
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = err
		} else {
			if !isRetryableStatus(resp.StatusCode) {
				return resp, nil
			}
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("rest: retryable status %d from %s", resp.StatusCode, rawURL)
		}

		if attempt+1 >= attempts {
			break
		}
		if err := s.sleep(ctx, backoffDuration(s.initialBackoff, attempt, s.maxBackoff)); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("rest: giving up after %d attempts: %w", attempts, lastErr)
}

// isRetryableStatus reports whether code is transient: 429 and 5xx.
func isRetryableStatus(code int) bool {
	if code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// backoffDuration returns initial * 2^attempt, clamped to max.
func backoffDuration(initial time.Duration, attempt int, max time.Duration) time.Duration {
	if attempt <= 0 {
		return min(initial, max)
	}
	d := initial
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
