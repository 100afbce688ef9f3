package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"scribe/internal/config"
	"scribe/internal/services"
)

// CommandRunner executes a command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Client drives yt-dlp to produce a local audio file for a media URL.
type Client struct {
	binary  string
	format  string
	quality int
	runner  CommandRunner
}

// NewClient builds a downloader client from configuration.
func NewClient(cfg config.Downloader) *Client {
	return &Client{
		binary:  cfg.Binary,
		format:  cfg.AudioFormat,
		quality: cfg.AudioQuality,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *Client) WithCommandRunner(runner CommandRunner) *Client {
	c.runner = runner
	return c
}

// downloadInfo is the subset of yt-dlp's --print-json output we consume.
type downloadInfo struct {
	ID string `json:"id"`
}

// Acquire downloads the best available audio for url into outputDir,
// transcoded to the configured audio format, and returns the resulting
// filename relative to outputDir. Output files are named by media id so a
// re-download of the same URL lands on the same file.
func (c *Client) Acquire(ctx context.Context, url, outputDir string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", services.Wrap(services.ErrValidation, "acquisition", "download", "url required", nil)
	}

	args := []string{
		"--no-progress",
		"--format", "bestaudio",
		"--extract-audio",
		"--audio-format", c.format,
		"--audio-quality", strconv.Itoa(c.quality),
		"--output", outputDir + "/%(id)s.%(ext)s",
		"--print-json",
		url,
	}

	out, err := c.run(ctx, c.binary, args...)
	if err != nil {
		return "", classify(url, err)
	}

	var info downloadInfo
	if err := json.Unmarshal(firstJSONLine(out), &info); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "acquisition", "parse yt-dlp output", "", err)
	}
	if info.ID == "" {
		return "", services.Wrap(services.ErrExternalTool, "acquisition", "parse yt-dlp output", "missing media id", nil)
	}

	return info.ID + "." + c.format, nil
}

func (c *Client) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if c.runner != nil {
		return c.runner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func classify(url string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Unsupported URL"), strings.Contains(msg, "is not a valid URL"):
		return services.Wrap(services.ErrUnsupportedSource, "acquisition", "download", url, err)
	case strings.Contains(msg, "executable file not found"):
		return services.Wrap(services.ErrConfiguration, "acquisition", "download", "yt-dlp not installed", err)
	default:
		return services.Wrap(services.ErrExternalTool, "acquisition", "download", url, err)
	}
}

// firstJSONLine isolates the metadata document; yt-dlp can emit warnings on
// stdout before it under some site extractors.
func firstJSONLine(out []byte) []byte {
	for _, line := range strings.Split(string(out), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "{") {
			return []byte(trimmed)
		}
	}
	return out
}
