package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

// Manifest describes one run of the downloader.
type Manifest struct {
	Item      string  `yaml:"item"`
	Size      string  `yaml:"size"`
	Filename  string  `yaml:"filename"`
	OutputDir string  `yaml:"outputdir"`
	Timestamp string  `yaml:"timestamp"`
	Files     []Entry `yaml:"files"`
}

// Entry records a single downloaded image.
type Entry struct {
	CaptureUUID string `yaml:"captureuuid" parquet:"capture_uuid"`
	ImageID     string `yaml:"imageid" parquet:"image_id"`
	SortString  string `yaml:"sortstring" parquet:"sort_string"`
	Page        int64  `yaml:"page" parquet:"page"`
	URL         string `yaml:"url" parquet:"url"`
	Path        string `yaml:"path" parquet:"path"`
	Bytes       int64  `yaml:"bytes" parquet:"bytes"`
	Skipped     bool   `yaml:"skipped,omitempty" parquet:"skipped"`
}

// New returns an empty manifest stamped with the current time.
func New(item, size, filename, outputDir string) *Manifest {
	return &Manifest{
		Item:      item,
		Size:      size,
		Filename:  filename,
		OutputDir: outputDir,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Add appends an entry.
func (m *Manifest) Add(e Entry) {
	m.Files = append(m.Files, e)
}

// Supported reports whether path has an extension Write can produce.
func Supported(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".parquet":
		return nil
	default:
		return fmt.Errorf("unsupported manifest format: %s (supported: .yaml, .yml, .parquet)", filepath.Ext(path))
	}
}

// Write saves the manifest, choosing the format from the file extension.
//
// YAML keeps the run metadata alongside the file list; Parquet stores only
// the file entries, one row each.
func Write(path string, m *Manifest) error {
	if err := Supported(path); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create manifest directory: %w", err)
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return writeParquet(path, m)
	default:
		return writeYAML(path, m)
	}
}

func writeYAML(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}

func writeParquet(path string, m *Manifest) error {
	if err := parquet.WriteFile(path, m.Files); err != nil {
		return fmt.Errorf("failed to write parquet file: %w", err)
	}
	return nil
}
