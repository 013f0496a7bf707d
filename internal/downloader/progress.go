package downloader

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker tracks download progress and provides formatted output.
//
// Downloads run one at a time, but the tracker is still guarded by a mutex
// so the counters can be read while a stream is in flight.
type ProgressTracker struct {
	mu sync.Mutex
	w  io.Writer

	totalFiles      int
	startedFiles    int
	downloadedFiles int
	skippedFiles    int
	downloadedBytes int64

	startTime time.Time
	enabled   bool
}

// NewProgressTracker creates a new progress tracker writing to w.
func NewProgressTracker(w io.Writer, enabled bool) *ProgressTracker {
	return &ProgressTracker{
		w:         w,
		enabled:   enabled,
		startTime: time.Now(),
	}
}

// SetTotalFiles sets the total number of files to download.
func (p *ProgressTracker) SetTotalFiles(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalFiles = total
}

// Start announces the next image and returns its 1-based number.
func (p *ProgressTracker) Start() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startedFiles++
	if p.enabled {
		fmt.Fprintf(p.w, "  Downloading image %d\n", p.startedFiles)
	}
	return p.startedFiles
}

// Complete records a finished image.
func (p *ProgressTracker) Complete(bytes int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.downloadedFiles++
	p.downloadedBytes += bytes
}

// Skip announces that the next image is already on disk and returns its
// 1-based number. Skipped images keep their place in the numbering.
func (p *ProgressTracker) Skip() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startedFiles++
	p.skippedFiles++
	if p.enabled {
		fmt.Fprintf(p.w, "  Skipping image %d (already present)\n", p.startedFiles)
	}
	return p.startedFiles
}

// PrintSummary prints a final summary of the download.
func (p *ProgressTracker) PrintSummary() {
	if !p.enabled {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime)
	var avgSpeed float64
	if elapsed.Seconds() > 0 {
		avgSpeed = float64(p.downloadedBytes) / elapsed.Seconds()
	}

	fmt.Fprintln(p.w, "Done")
	fmt.Fprintf(p.w, "  Images downloaded: %d/%d\n", p.downloadedFiles, p.totalFiles)
	if p.skippedFiles > 0 {
		fmt.Fprintf(p.w, "  Already present:   %d\n", p.skippedFiles)
	}
	fmt.Fprintf(p.w, "  Total data:        %s\n", formatBytes(p.downloadedBytes))
	fmt.Fprintf(p.w, "  Average speed:     %s/s\n", formatBytes(int64(avgSpeed)))
	fmt.Fprintf(p.w, "  Time elapsed:      %s\n", formatDuration(elapsed))
}

// formatBytes formats bytes into a human-readable string.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	units := []string{"KB", "MB", "GB", "TB"}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), units[exp])
}

// formatDuration formats a duration into a human-readable string.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	} else if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
