// Package models downloads whisper.cpp ggml models for the command backend.
package models

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DefaultBaseURL hosts the ggml models published by whisper.cpp.
const DefaultBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

// DefaultModel is the model the default config points at.
const DefaultModel = "base.en"

// Known lists the model names that can be downloaded.
var Known = []string{
	"tiny", "tiny.en",
	"base", "base.en",
	"small", "small.en",
	"medium", "medium.en",
	"large-v3", "large-v3-turbo",
}

// FileName returns the ggml file name of a model, e.g. ggml-base.en.bin.
func FileName(model string) string {
	return "ggml-" + model + ".bin"
}

// Downloader fetches models into a directory.
type Downloader struct {
	BaseURL string
	Dir     string
	Client  *http.Client
	// Progress receives progress lines. Nil discards them.
	Progress io.Writer
}

// Download fetches model into d.Dir and returns its path. An existing
// non-empty file is kept.
func (d *Downloader) Download(ctx context.Context, model string) (string, error) {
	if !slices.Contains(Known, model) {
		return "", fmt.Errorf("unknown model %q (known: %s)", model, strings.Join(Known, ", "))
	}
	out := d.Progress
	if out == nil {
		out = io.Discard
	}

	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return "", fmt.Errorf("creating models dir: %w", err)
	}

	name := FileName(model)
	destPath := filepath.Join(d.Dir, name)

	// Check if already downloaded
	if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
		fmt.Fprintf(out, "  Model already exists: %s (%.0f MB)\n", destPath, float64(info.Size())/(1024*1024))
		return destPath, nil
	}

	baseURL := d.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	url := strings.TrimRight(baseURL, "/") + "/" + name

	fmt.Fprintf(out, "  Downloading %s...\n", name)
	fmt.Fprintf(out, "  URL: %s\n", url)
	fmt.Fprintf(out, "  Destination: %s\n", destPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	// Write to temp file first, then rename (atomic)
	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	pw := &progressWriter{
		writer: f,
		out:    out,
		total:  resp.ContentLength,
		label:  name,
	}

	written, err := io.Copy(pw, resp.Body)
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing model file: %w", err)
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		os.Remove(tmpPath)
		return "", fmt.Errorf("short download: got %d of %d bytes", written, resp.ContentLength)
	}

	fmt.Fprintf(out, "\n  Downloaded %.1f MB\n", float64(written)/(1024*1024))

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("moving model file: %w", err)
	}
	return destPath, nil
}

// progressWriter wraps an io.Writer and prints download progress.
type progressWriter struct {
	writer  io.Writer
	out     io.Writer
	total   int64
	written int64
	label   string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.total > 0 {
		pct := float64(pw.written) / float64(pw.total) * 100
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB / %.1f MB (%.0f%%)",
			pw.label,
			float64(pw.written)/(1024*1024),
			float64(pw.total)/(1024*1024),
			pct)
	} else {
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB downloaded",
			pw.label,
			float64(pw.written)/(1024*1024))
	}
	return n, err
}
