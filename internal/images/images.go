package images

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/knpwrs/dc-download/internal/collections"
)

// DefaultEndpoint is the image server that serves every non-TIFF derivative.
const DefaultEndpoint = "http://images.nypl.org/index.php"

// Size describes one image derivative the image server can produce.
type Size struct {
	Code        string
	Description string
	Extension   string
	// PublicDomainOnly sizes exist only for public domain assets
	PublicDomainOnly bool
}

// Sizes lists every supported derivative, smallest first.
var Sizes = []Size{
	{Code: "b", Description: "center cropped thumbnail .jpeg (100x100 pixels)", Extension: "jpeg"},
	{Code: "f", Description: "cropped .jpeg (140 pixels tall with variable width)", Extension: "jpeg"},
	{Code: "t", Description: "cropped .gif (150 pixels on the long side)", Extension: "gif"},
	{Code: "r", Description: "cropped .jpeg (300 pixels on the long side)", Extension: "jpeg"},
	{Code: "w", Description: "cropped .jpeg (760 pixels on the long side)", Extension: "jpeg"},
	{Code: "q", Description: "cropped .jpeg (1600 pixels on the long side)", Extension: "jpeg", PublicDomainOnly: true},
	{Code: "v", Description: "cropped .jpeg (2560 pixels on the long side)", Extension: "jpeg", PublicDomainOnly: true},
	{Code: "g", Description: "full-size .jpeg", Extension: "jpeg", PublicDomainOnly: true},
	{Code: "T", Description: "full-size .tiff", Extension: "tiff", PublicDomainOnly: true},
}

// TIFF is served from the capture's high resolution link, not the image server.
const TIFF = "T"

// DefaultSize is the size code used when none is given.
const DefaultSize = "q"

// Field names the capture attribute used as the output filename.
type Field struct {
	Name        string
	Description string
}

// Fields lists the supported filename fields.
var Fields = []Field{
	{Name: "image", Description: `uses the image ID as filename (example: "<imageId>.jpeg")`},
	{Name: "uuid", Description: `uses the UUID as filename (example: "<uuid>.jpeg")`},
	{Name: "page", Description: `uses the page number as filename (example: "<page>.jpeg")`},
}

// DefaultField is the filename field used when none is given.
const DefaultField = "uuid"

// LookupSize returns the size for a code. Codes are case sensitive
// ("t" is a gif thumbnail, "T" a full-size tiff).
func LookupSize(code string) (Size, bool) {
	for _, s := range Sizes {
		if s.Code == code {
			return s, true
		}
	}
	return Size{}, false
}

// LookupField returns the filename field with the given name.
func LookupField(name string) (Field, bool) {
	for _, f := range Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// URL builds the image server URL for an image ID and size code.
func URL(endpoint, imageID, code string) string {
	q := url.Values{}
	q.Set("id", imageID)
	q.Set("t", code)
	return endpoint + "?" + q.Encode()
}

// Page extracts the page number from a capture sort string. The page is
// the last "|" separated segment, e.g. "0000000003|0000000012" is page 12.
func Page(sortString string) (int, error) {
	parts := strings.Split(sortString, "|")
	last := strings.TrimSpace(parts[len(parts)-1])

	page, err := strconv.Atoi(last)
	if err != nil {
		return 0, fmt.Errorf("invalid page in sort string %q: %w", sortString, err)
	}
	return page, nil
}

// Target is a single file to download.
type Target struct {
	Capture collections.Capture
	URL     string
	Name    string
	Page    int
}

// Plan derives the download URL and output filename for one capture.
func Plan(c collections.Capture, size Size, field Field, endpoint string) (Target, error) {
	var imageURL string
	if size.Code == TIFF {
		if c.HighResLink == "" {
			return Target{}, fmt.Errorf("TIFF not available for this capture: %s", c.UUID)
		}
		imageURL = c.HighResLink
	} else {
		if !hasSize(c.ImageLinks, size.Code) {
			return Target{}, fmt.Errorf("image size '%s' not available for this capture: %s", size.Code, c.UUID)
		}
		imageURL = URL(endpoint, c.ImageID, size.Code)
	}

	page, pageErr := Page(c.SortString)

	var base string
	switch field.Name {
	case "image":
		base = c.ImageID
	case "uuid":
		base = c.UUID
	case "page":
		if pageErr != nil {
			return Target{}, fmt.Errorf("capture %s: %w", c.UUID, pageErr)
		}
		base = strconv.Itoa(page)
	default:
		return Target{}, fmt.Errorf("unknown filename field %q", field.Name)
	}

	if base == "" {
		return Target{}, fmt.Errorf("capture %s has no %s to use as filename", c.UUID, field.Name)
	}

	return Target{
		Capture: c,
		URL:     imageURL,
		Name:    base + "." + size.Extension,
		Page:    page,
	}, nil
}

// hasSize reports whether any of the capture's image links serves the code.
func hasSize(links []string, code string) bool {
	marker := "&t=" + code
	for _, l := range links {
		if strings.Contains(l, marker) {
			return true
		}
	}
	return false
}
