package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/knpwrs/dc-download/internal/collections"
	"github.com/knpwrs/dc-download/internal/fetcher"
	"github.com/knpwrs/dc-download/internal/filesystem"
	"github.com/knpwrs/dc-download/internal/images"
	"github.com/knpwrs/dc-download/internal/manifest"
)

// ErrNoCaptures is returned when an item has no image captures.
var ErrNoCaptures = errors.New("no captures found for item")

// CaptureSource lists the captures of an item.
type CaptureSource interface {
	Captures(ctx context.Context, uuid string) ([]collections.Capture, error)
}

// Downloader runs the capture pipeline for a single item:
// fetch capture metadata, plan one target per capture, then stream each
// image to disk one at a time.
type Downloader struct {
	source        CaptureSource
	fetcher       *fetcher.Fetcher
	fs            *filesystem.FileSystem
	size          images.Size
	field         images.Field
	imageEndpoint string
	manifestPath  string
	skipExisting  bool
	progress      *ProgressTracker
}

// Config holds configuration for the Downloader.
type Config struct {
	OutputDir     string
	Size          images.Size
	Field         images.Field
	ImageEndpoint string
	ManifestPath  string
	SkipExisting  bool
	UserAgent     string
	// Fetcher overrides the image transport defaults when set
	Fetcher *fetcher.Options
	// Quiet suppresses progress lines and the summary
	Quiet bool
	// Out receives progress lines; defaults to stdout
	Out io.Writer
}

// Result summarizes a finished run.
type Result struct {
	Files   []string
	Skipped int
	Bytes   int64
}

// New creates a new Downloader reading captures from source.
func New(source CaptureSource, cfg Config) *Downloader {
	fopts := fetcher.DefaultOptions()
	if cfg.Fetcher != nil {
		fopts = *cfg.Fetcher
	}
	if cfg.UserAgent != "" {
		fopts.UserAgent = cfg.UserAgent
	}

	endpoint := cfg.ImageEndpoint
	if endpoint == "" {
		endpoint = images.DefaultEndpoint
	}

	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	return &Downloader{
		source:        source,
		fetcher:       fetcher.New(fopts),
		fs:            filesystem.New(cfg.OutputDir),
		size:          cfg.Size,
		field:         cfg.Field,
		imageEndpoint: endpoint,
		manifestPath:  cfg.ManifestPath,
		skipExisting:  cfg.SkipExisting,
		progress:      NewProgressTracker(out, !cfg.Quiet),
	}
}

// Download fetches every capture of the item and saves the selected image
// size for each.
//
// All captures are planned before the first byte is written: a capture
// that lacks the requested size aborts the run with nothing downloaded.
// Any download failure stops the run; files already completed are kept.
func (d *Downloader) Download(ctx context.Context, uuid string) (*Result, error) {
	slog.Debug("Fetching captures", "uuid", uuid)
	captures, err := d.source.Captures(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if len(captures) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCaptures, uuid)
	}
	slog.Debug("Found captures", "uuid", uuid, "count", len(captures))

	targets := make([]images.Target, 0, len(captures))
	for _, c := range captures {
		target, err := images.Plan(c, d.size, d.field, d.imageEndpoint)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	d.progress.SetTotalFiles(len(targets))

	var m *manifest.Manifest
	if d.manifestPath != "" {
		m = manifest.New(uuid, d.size.Code, d.field.Name, d.fs.Dir())
	}

	result := &Result{}
	for _, target := range targets {
		entry, err := d.downloadTarget(ctx, target)
		if err != nil {
			return result, err
		}

		if entry.Skipped {
			result.Skipped++
		} else {
			result.Files = append(result.Files, entry.Path)
			result.Bytes += entry.Bytes
		}
		if m != nil {
			m.Add(entry)
		}
	}

	d.progress.PrintSummary()

	if m != nil {
		if err := manifest.Write(d.manifestPath, m); err != nil {
			return result, err
		}
		slog.Info("Wrote manifest", "path", d.manifestPath, "files", len(m.Files))
	}

	return result, nil
}

// downloadTarget streams one image to disk.
func (d *Downloader) downloadTarget(ctx context.Context, target images.Target) (manifest.Entry, error) {
	entry := manifest.Entry{
		CaptureUUID: target.Capture.UUID,
		ImageID:     target.Capture.ImageID,
		SortString:  target.Capture.SortString,
		Page:        int64(target.Page),
		URL:         target.URL,
	}

	if d.skipExisting {
		exists, err := d.fs.FileExists(target.Name)
		if err != nil {
			return entry, err
		}
		if exists {
			entry.Path, _ = d.fs.Path(target.Name)
			entry.Skipped = true
			n := d.progress.Skip()
			slog.Debug("Skipping existing file", "image", n, "path", entry.Path)
			return entry, nil
		}
	}

	n := d.progress.Start()
	slog.Debug("Downloading", "image", n, "url", target.URL, "file", target.Name)

	var written int64
	localPath, err := d.fs.WriteStream(target.Name, func(w io.Writer) error {
		n, err := d.fetcher.Stream(ctx, target.URL, w)
		written = n
		return err
	})
	if err != nil {
		return entry, fmt.Errorf("failed to download capture %s: %w", target.Capture.UUID, err)
	}

	d.progress.Complete(written)
	slog.Debug("Wrote image", "path", localPath, "bytes", written)

	entry.Path = localPath
	entry.Bytes = written
	return entry, nil
}
