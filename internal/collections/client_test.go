package collections

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/knpwrs/dc-download/internal/fetcher"
)

func testClient(baseURL string, perPage int) *Client {
	fopts := fetcher.DefaultOptions()
	fopts.MaxRetries = 0
	fopts.RetryWaitMin = time.Millisecond
	fopts.RetryWaitMax = time.Millisecond

	return NewClient(Options{
		BaseURL: baseURL,
		Token:   "secret",
		PerPage: perPage,
		Fetcher: &fopts,
	})
}

func TestCapturesSinglePage(t *testing.T) {
	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"nyplAPI": {
			"request": {"page": "1", "perPage": "500", "totalPages": "1"},
			"response": {
				"headers": {"status": "success", "code": "200", "message": "ok"},
				"numResults": "2",
				"capture": [
					{"uuid": "c1", "imageID": "101", "sortString": "0000000001|0000000001",
					 "imageLinks": {"imageLink": ["http://images.nypl.org/index.php?id=101&t=b", "http://images.nypl.org/index.php?id=101&t=w"]}},
					{"uuid": "c2", "imageID": "102", "sortString": "0000000001|0000000002",
					 "highResLink": "http://lowres-picturecollection.nypl.org/102.tif",
					 "imageLinks": {"imageLink": "http://images.nypl.org/index.php?id=102&t=b"}}
				]
			}
		}}`)
	}))
	defer server.Close()

	client := testClient(server.URL, 500)
	captures, err := client.Captures(context.Background(), "item-uuid")
	if err != nil {
		t.Fatalf("Captures failed: %v", err)
	}

	if gotAuth != `Token token="secret"` {
		t.Errorf("Unexpected Authorization header: %q", gotAuth)
	}
	if gotPath != "/items/item-uuid" {
		t.Errorf("Unexpected request path: %s", gotPath)
	}

	if len(captures) != 2 {
		t.Fatalf("Expected 2 captures, got %d", len(captures))
	}

	if captures[0].UUID != "c1" || captures[0].ImageID != "101" {
		t.Errorf("Unexpected first capture: %+v", captures[0])
	}
	if len(captures[0].ImageLinks) != 2 {
		t.Errorf("Expected 2 image links, got %d", len(captures[0].ImageLinks))
	}

	// A bare string imageLink decodes as a one element list
	if len(captures[1].ImageLinks) != 1 {
		t.Errorf("Expected 1 image link, got %d", len(captures[1].ImageLinks))
	}
	if captures[1].HighResLink == "" {
		t.Error("Expected high resolution link on second capture")
	}
}

func TestCapturesSingleObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"nyplAPI": {
			"request": {"totalPages": 1},
			"response": {
				"headers": {"status": "success"},
				"capture": {"uuid": "only", "imageID": "7", "sortString": "1|1"}
			}
		}}`)
	}))
	defer server.Close()

	captures, err := testClient(server.URL, 10).Captures(context.Background(), "item")
	if err != nil {
		t.Fatalf("Captures failed: %v", err)
	}

	if len(captures) != 1 || captures[0].UUID != "only" {
		t.Errorf("Expected single capture 'only', got %+v", captures)
	}
}

func TestCapturesPagination(t *testing.T) {
	const totalPages = 3
	var requestedPages []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		requestedPages = append(requestedPages, page)

		if r.URL.Query().Get("per_page") != "2" {
			t.Errorf("Expected per_page=2, got %s", r.URL.Query().Get("per_page"))
		}

		body := map[string]any{
			"nyplAPI": map[string]any{
				"request": map[string]any{"page": page, "totalPages": fmt.Sprint(totalPages)},
				"response": map[string]any{
					"headers": map[string]any{"status": "success"},
					"capture": []map[string]any{
						{"uuid": "p" + page + "-a", "imageID": "1", "sortString": "1|1"},
						{"uuid": "p" + page + "-b", "imageID": "2", "sortString": "1|2"},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(body)
	}))
	defer server.Close()

	captures, err := testClient(server.URL, 2).Captures(context.Background(), "item")
	if err != nil {
		t.Fatalf("Captures failed: %v", err)
	}

	if len(requestedPages) != totalPages {
		t.Errorf("Expected %d requests, got %d (%v)", totalPages, len(requestedPages), requestedPages)
	}
	if len(captures) != 6 {
		t.Fatalf("Expected 6 captures, got %d", len(captures))
	}
	if captures[0].UUID != "p1-a" || captures[5].UUID != "p3-b" {
		t.Errorf("Captures out of order: first=%s last=%s", captures[0].UUID, captures[5].UUID)
	}
}

func TestCapturesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"nyplAPI": {"response": {"headers": {"status": "error", "code": "401", "message": "Invalid token"}}}}`)
	}))
	defer server.Close()

	_, err := testClient(server.URL, 10).Captures(context.Background(), "item")
	if err == nil {
		t.Fatal("Expected error for API error response")
	}
	if !strings.Contains(err.Error(), "Invalid token") {
		t.Errorf("Expected API message in error, got %v", err)
	}
}

func TestCapturesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	if _, err := testClient(server.URL, 10).Captures(context.Background(), "item"); err == nil {
		t.Fatal("Expected error for 401 response")
	}
}

func TestNewClientClampsPerPage(t *testing.T) {
	tests := []struct {
		name     string
		perPage  int
		expected int
	}{
		{name: "zero uses max", perPage: 0, expected: MaxPerPage},
		{name: "too large uses max", perPage: 1000, expected: MaxPerPage},
		{name: "valid kept", perPage: 25, expected: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(Options{PerPage: tt.perPage})
			if c.perPage != tt.expected {
				t.Errorf("Expected perPage %d, got %d", tt.expected, c.perPage)
			}
			if c.baseURL != DefaultBaseURL {
				t.Errorf("Expected default base URL, got %s", c.baseURL)
			}
		})
	}
}

func TestCapturesHTTPErrorKeepsAPIMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"nyplAPI": {"response": {"headers": {"status": "error", "code": "401", "message": "Invalid authentication token"}}}}`)
	}))
	defer server.Close()

	_, err := testClient(server.URL, 10).Captures(context.Background(), "item")
	if err == nil {
		t.Fatal("Expected error for 401 response")
	}

	for _, want := range []string{"401", "Invalid authentication token"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected %q in error, got %v", want, err)
		}
	}
}

func TestCapturesHTTPErrorWithoutEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := testClient(server.URL, 10).Captures(context.Background(), "item")
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Errorf("Expected status code in error, got %v", err)
	}
}
