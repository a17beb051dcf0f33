package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ekisa-team/anubad/internal/config"
)

const (
	defaultRetryDelay = 2 * time.Second
	defaultMaxRetries = 3
	defaultTimeout    = 5 * time.Minute
	markerFilename    = ".anubad-downloaded"
)

// RunFunc runs a command and returns its combined output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// HuggingFaceDownloader downloads a model from Hugging Face with the hf CLI.
type HuggingFaceDownloader struct {
	run        RunFunc
	binary     string
	retryDelay time.Duration
	maxRetries int
	timeout    time.Duration
}

// NewHuggingFaceDownloader returns a downloader that shells out to `hf`.
func NewHuggingFaceDownloader() *HuggingFaceDownloader {
	return &HuggingFaceDownloader{
		run:        execRun,
		binary:     "hf",
		retryDelay: defaultRetryDelay,
		maxRetries: defaultMaxRetries,
		timeout:    defaultTimeout,
	}
}

// NewHuggingFaceDownloaderWithRunner returns a downloader using a custom runner.
func NewHuggingFaceDownloaderWithRunner(run RunFunc, retryDelay time.Duration) *HuggingFaceDownloader {
	d := NewHuggingFaceDownloader()
	d.run = run
	d.retryDelay = retryDelay
	return d
}

// Download downloads Hugging Face model to local cache.
func (d *HuggingFaceDownloader) Download(ctx context.Context, modelConfig *config.ModelConfig, targetDir string) (string, bool, error) {
	src, err := modelConfig.GetSource()
	if err != nil {
		return "", false, fmt.Errorf("failed to get model source: %w", err)
	}

	hfSource, ok := src.(config.HuggingFaceSource)
	if !ok {
		return "", false, fmt.Errorf("invalid source type: %T", src)
	}

	repo := strings.TrimSpace(hfSource.Repo)
	if repo == "" || !filepath.IsLocal(repo) {
		return "", false, fmt.Errorf("invalid repo name: %q", hfSource.Repo)
	}
	// Both must stay inside targetDir.
	if hfSource.Subdir != "" && !filepath.IsLocal(hfSource.Subdir) {
		return "", false, fmt.Errorf("invalid subdir: %q", hfSource.Subdir)
	}

	fullPath := filepath.Join(targetDir, repo)
	bundlePath := filepath.Join(fullPath, hfSource.Subdir)
	markerPath := filepath.Join(fullPath, markerFilename)
	markerContent := d.markerContent(repo, hfSource.Revision)

	if _, err := os.Stat(markerPath); err == nil && !hfSource.ForceDownload {
		if !d.shouldRedownload(markerPath, markerContent) {
			slog.Info("Model already downloaded and up-to-date (marker match), skipping", "repo", repo, "path", fullPath)
			return bundlePath, true, nil
		}
	}

	if err := os.MkdirAll(fullPath, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create directory: %w", err)
	}

	args := d.buildArgs(repo, fullPath, hfSource)

	var lastErr error
	for attempt := range d.maxRetries {
		if attempt > 0 {
			slog.Info("Retrying download", "repo", repo, "attempt", attempt+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return "", false, fmt.Errorf("download canceled: %w", ctx.Err())
			case <-time.After(d.retryDelay):
			}
		} else {
			slog.Info("Downloading model", "repo", repo, "path", fullPath)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
		output, err := d.run(attemptCtx, d.binary, args...)
		attemptErr := attemptCtx.Err()
		cancel()

		if err == nil {
			if err := os.WriteFile(markerPath, []byte(markerContent), 0o644); err != nil {
				slog.Warn("Failed to write download marker", "path", markerPath, "error", err)
			}

			slog.Info("Model downloaded successfully", "repo", repo, "path", fullPath, "attempt", attempt+1)
			return bundlePath, false, nil
		}

		lastErr = err
		slog.Error("Failed to download model", "repo", repo, "path", fullPath, "attempt", attempt+1, "error", err, "output", string(output))

		if errors.Is(attemptErr, context.DeadlineExceeded) {
			slog.Warn("Download timed out", "repo", repo, "path", fullPath, "attempt", attempt+1)
		}
		if ctx.Err() != nil {
			return "", false, fmt.Errorf("download canceled: %w", ctx.Err())
		}
	}

	return "", false, fmt.Errorf("download %s failed after %d attempts: %w", repo, d.maxRetries, lastErr)
}

func (d *HuggingFaceDownloader) buildArgs(repo, fullPath string, hfSource config.HuggingFaceSource) []string {
	args := []string{
		"download",
		repo,
		"--local-dir", fullPath,
	}

	if hfSource.Revision != "" {
		args = append(args, "--revision", hfSource.Revision)
	}
	if hfSource.RepoType != "" {
		args = append(args, "--repo-type", hfSource.RepoType)
	}
	for _, inc := range hfSource.Include {
		args = append(args, "--include", inc)
	}
	for _, exc := range hfSource.Exclude {
		args = append(args, "--exclude", exc)
	}
	if hfSource.ForceDownload {
		args = append(args, "--force-download")
	}
	if hfSource.Token != "" {
		args = append(args, "--token", hfSource.Token)
	}
	if hfSource.MaxWorkers > 0 {
		args = append(args, "--max-workers", fmt.Sprintf("%d", hfSource.MaxWorkers))
	}

	return args
}

// markerContent generates the expected content of the marker file.
// Used to detect if we need to redownload due to config change.
func (d *HuggingFaceDownloader) markerContent(repo, revision string) string {
	return fmt.Sprintf("repo: %s\nrevision: %s\n", repo, revision)
}

// shouldRedownload checks if the model should be redownloaded by comparing marker content.
func (d *HuggingFaceDownloader) shouldRedownload(markerPath, expectedContent string) bool {
	content, err := os.ReadFile(markerPath)
	if err != nil {
		slog.Debug("Marker file missing or unreadable", "path", markerPath, "error", err)
		return true
	}

	if string(content) != expectedContent {
		slog.Info("Model config changed (marker mismatch), will redownload",
			"marker_path", markerPath,
			"expected_snippet", expectedContent,
			"actual_snippet", string(content))
		return true
	}

	return false
}
