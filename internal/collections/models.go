package collections

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Capture is one digitized page or image belonging to an item.
type Capture struct {
	UUID           string   `json:"uuid"`
	ImageID        string   `json:"imageID"`
	SortString     string   `json:"sortString"`
	Title          string   `json:"title"`
	ItemLink       string   `json:"itemLink"`
	TypeOfResource string   `json:"typeOfResource"`
	HighResLink    string   `json:"highResLink"`
	ImageLinks     []string `json:"-"`
}

// UnmarshalJSON flattens the API's {"imageLinks": {"imageLink": ...}} nesting.
func (c *Capture) UnmarshalJSON(data []byte) error {
	type plain Capture
	var raw struct {
		plain
		ImageLinks struct {
			ImageLink oneOrMany[string] `json:"imageLink"`
		} `json:"imageLinks"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Capture(raw.plain)
	c.ImageLinks = raw.ImageLinks.ImageLink
	return nil
}

// envelope mirrors the API's response wrapper:
//
//	{"nyplAPI": {"request": {...}, "response": {"headers": {...}, "capture": [...]}}}
type envelope struct {
	API apiBody `json:"nyplAPI"`
}

// err reports a non-success status in the response headers.
func (e envelope) err() error {
	h := e.API.Response.Headers
	if h.Status == "" || h.Status == "success" {
		return nil
	}
	return fmt.Errorf("digital collections API error %s: %s", h.Code, h.Message)
}

type apiBody struct {
	Request struct {
		Page       flexInt `json:"page"`
		PerPage    flexInt `json:"perPage"`
		TotalPages flexInt `json:"totalPages"`
	} `json:"request"`
	Response struct {
		Headers struct {
			Status  string `json:"status"`
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"headers"`
		NumResults flexInt             `json:"numResults"`
		Captures   oneOrMany[Capture] `json:"capture"`
	} `json:"response"`
}

// oneOrMany decodes a JSON value that is either a single element or a list.
// The API collapses one-element lists to a bare value.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var list []T
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*o = list
		return nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = []T{v}
	return nil
}

// flexInt decodes numbers the API sends either as JSON numbers or strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(i)
	return nil
}
