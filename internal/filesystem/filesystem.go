package filesystem

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileSystem handles file writing and path management for downloaded images.
//
// Every image is written flat into the output directory. Writes go through
// a temporary file that is renamed into place, so an interrupted download
// never leaves a truncated image under its final name.
type FileSystem struct {
	outputDir string
}

// New creates a new FileSystem handler rooted at outputDir.
func New(outputDir string) *FileSystem {
	if outputDir == "" {
		outputDir = "."
	}
	return &FileSystem{outputDir: outputDir}
}

// Dir returns the output directory.
func (fs *FileSystem) Dir() string {
	return fs.outputDir
}

// Path returns the local file path for a file name.
//
// Names are taken from catalog metadata, so any directory components are
// rejected to keep writes inside the output directory.
func (fs *FileSystem) Path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(fs.outputDir, name), nil
}

// WriteStream writes the output of fill to the named file.
//
// fill receives the temporary file to write into; the file is renamed to its
// final name only when fill returns without error.
//
// Returns the local path where the file was written and any error encountered.
func (fs *FileSystem) WriteStream(name string, fill func(w io.Writer) error) (string, error) {
	localPath, err := fs.Path(name)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(fs.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", fs.outputDir, err)
	}

	// Write to temporary file first
	tmpPath := localPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file %s: %w", tmpPath, err)
	}

	if err := fill(f); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write file %s: %w", tmpPath, err)
	}

	// Rename to final path (atomic on most systems)
	if err := os.Rename(tmpPath, localPath); err != nil {
		os.Remove(tmpPath) // Clean up temp file
		return "", fmt.Errorf("failed to rename %s to %s: %w", tmpPath, localPath, err)
	}

	return localPath, nil
}

// FileExists checks if a file already exists under the given name.
func (fs *FileSystem) FileExists(name string) (bool, error) {
	localPath, err := fs.Path(name)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(localPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
