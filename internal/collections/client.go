package collections

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/knpwrs/dc-download/internal/fetcher"
)

// DefaultBaseURL is the Digital Collections API root.
const DefaultBaseURL = "https://api.repo.nypl.org/api/v1"

// MaxPerPage is the largest page size the API accepts.
const MaxPerPage = 500

// Client queries the Digital Collections API for item captures.
type Client struct {
	baseURL string
	perPage int
	fetcher *fetcher.Fetcher
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	Token     string
	PerPage   int
	UserAgent string
	// Fetcher overrides the transport defaults when set
	Fetcher *fetcher.Options
}

// NewClient creates a new Digital Collections client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.PerPage <= 0 || opts.PerPage > MaxPerPage {
		opts.PerPage = MaxPerPage
	}

	fopts := fetcher.DefaultOptions()
	if opts.Fetcher != nil {
		fopts = *opts.Fetcher
	}
	if opts.UserAgent != "" {
		fopts.UserAgent = opts.UserAgent
	}
	fopts.Headers = map[string]string{
		"Authorization": fmt.Sprintf("Token token=%q", opts.Token),
		"Accept":        "application/json",
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		perPage: opts.PerPage,
		fetcher: fetcher.New(fopts),
	}
}

// Captures returns every capture of the item with the given UUID, in API
// order, following pagination until the last page has been read.
func (c *Client) Captures(ctx context.Context, uuid string) ([]Capture, error) {
	var captures []Capture

	for page := 1; ; page++ {
		resp, err := c.capturesPage(ctx, uuid, page)
		if err != nil {
			return nil, err
		}

		captures = append(captures, resp.Response.Captures...)

		total := int(resp.Request.TotalPages)
		slog.Debug("Fetched capture page",
			"uuid", uuid,
			"page", page,
			"total_pages", total,
			"captures", len(resp.Response.Captures))

		if page >= total || len(resp.Response.Captures) == 0 {
			break
		}
	}

	return captures, nil
}

// capturesPage fetches and decodes a single page of captures.
func (c *Client) capturesPage(ctx context.Context, uuid string, page int) (*apiBody, error) {
	q := url.Values{}
	q.Set("per_page", fmt.Sprint(c.perPage))
	q.Set("page", fmt.Sprint(page))
	itemURL := fmt.Sprintf("%s/items/%s?%s", c.baseURL, url.PathEscape(uuid), q.Encode())

	data, err := c.fetcher.Fetch(ctx, itemURL)
	if err != nil {
		var statusErr *fetcher.StatusError
		if errors.As(err, &statusErr) {
			if apiErr := decodeAPIError(statusErr.Body); apiErr != nil {
				return nil, fmt.Errorf("failed to fetch captures for %s: HTTP %d: %w", uuid, statusErr.StatusCode, apiErr)
			}
		}
		return nil, fmt.Errorf("failed to fetch captures for %s: %w", uuid, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode captures response: %w", err)
	}

	if apiErr := env.err(); apiErr != nil {
		return nil, apiErr
	}

	return &env.API, nil
}

// decodeAPIError extracts the API's own error from a non-200 response body.
// Bodies that are not an API envelope yield nil.
func decodeAPIError(body []byte) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil
	}
	return env.err()
}
