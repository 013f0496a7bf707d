package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
)

// maxErrorBody caps how much of a non-200 body is kept for diagnostics.
const maxErrorBody = 64 * 1024

// StatusError is returned for any response other than 200 OK.
type StatusError struct {
	StatusCode int
	URL        string
	// Body holds the start of the response body
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d for %s", e.StatusCode, e.URL)
}

// Fetcher handles HTTP requests with retry logic and custom headers.
//
// This structure wraps the retryablehttp client so that transient network
// failures against the catalog API or the image server are retried with
// exponential backoff before a download is reported as failed.
type Fetcher struct {
	client  *retryablehttp.Client
	headers http.Header
}

// Options configures the Fetcher behavior.
type Options struct {
	// UserAgent sets the User-Agent header for requests
	UserAgent string
	// Headers are added to every request made by this Fetcher
	Headers map[string]string
	// MaxRetries sets the maximum number of retry attempts
	MaxRetries int
	// RetryWaitMin is the minimum time to wait between retries
	RetryWaitMin time.Duration
	// RetryWaitMax is the maximum time to wait between retries
	RetryWaitMax time.Duration
	// ResponseHeaderTimeout bounds the wait for response headers. Reading
	// the body has no deadline beyond the request context.
	ResponseHeaderTimeout time.Duration
}

// DefaultOptions returns sensible default options for the Fetcher.
func DefaultOptions() Options {
	return Options{
		UserAgent:             "dc-download/1.0",
		MaxRetries:            3,
		RetryWaitMin:          1 * time.Second,
		RetryWaitMax:          30 * time.Second,
		ResponseHeaderTimeout: 1 * time.Minute,
	}
}

// New creates a new Fetcher with the given options.
//
// The Fetcher uses exponential backoff for retries and will automatically
// retry on network errors and 5xx server errors.
func New(opts Options) *Fetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = opts.MaxRetries
	client.RetryWaitMin = opts.RetryWaitMin
	client.RetryWaitMax = opts.RetryWaitMax
	if t, ok := client.HTTPClient.Transport.(*http.Transport); ok {
		t.ResponseHeaderTimeout = opts.ResponseHeaderTimeout
	}
	client.Logger = nil // Disable default logging

	headers := make(http.Header)
	if opts.UserAgent != "" {
		headers.Set("User-Agent", opts.UserAgent)
	}
	for k, v := range opts.Headers {
		headers.Set(k, v)
	}

	return &Fetcher{
		client:  client,
		headers: headers,
	}
}

// Fetch downloads content from the given URL.
//
// This method will automatically retry failed requests up to MaxRetries times
// with exponential backoff. It returns the response body as a byte slice.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from %s: %w", url, err)
	}

	return body, nil
}

// Stream copies the body of the given URL into w without buffering the
// whole response in memory.
//
// Returns the number of bytes written and any error encountered.
func (f *Fetcher) Stream(ctx context.Context, url string, w io.Writer) (int64, error) {
	resp, err := f.get(ctx, url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read response body from %s: %w", url, err)
	}

	return n, nil
}

// get issues a GET request and rejects any non-200 response.
func (f *Fetcher) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", url, err)
	}

	for k, v := range f.headers {
		req.Header[k] = v
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: url, Body: body}
	}

	return resp, nil
}
