package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"scribe/internal/config"
	"scribe/internal/services"
	"scribe/internal/subtitle"
)

// CommandRunner executes a command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Result is a completed transcription: the full transcript plus the ordered
// segment sequence the subtitle builder consumes.
type Result struct {
	Text     string
	Segments []subtitle.Segment
}

// Client drives the whisper CLI.
type Client struct {
	binary   string
	model    string
	language string
	runner   CommandRunner
}

// NewClient builds a transcriber client from configuration.
func NewClient(cfg config.Transcriber) *Client {
	return &Client{
		binary:   cfg.Binary,
		model:    cfg.Model,
		language: cfg.Language,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *Client) WithCommandRunner(runner CommandRunner) *Client {
	c.runner = runner
	return c
}

// Model returns the configured model name for logging.
func (c *Client) Model() string {
	return c.model
}

// whisperOutput mirrors the JSON document whisper writes next to its other
// output formats.
type whisperOutput struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe runs a single whisper pass over mediaPath and returns the full
// transcript with segments. Whisper output files land in a per-call temp
// directory that is removed before returning.
func (c *Client) Transcribe(ctx context.Context, mediaPath string) (Result, error) {
	var result Result

	mediaPath = strings.TrimSpace(mediaPath)
	if mediaPath == "" {
		return result, services.Wrap(services.ErrValidation, "transcription", "run whisper", "media path required", nil)
	}
	if _, err := os.Stat(mediaPath); err != nil {
		return result, services.Wrap(services.ErrNotFound, "transcription", "stat media", mediaPath, err)
	}

	outputDir, err := os.MkdirTemp("", "scribe-transcribe-")
	if err != nil {
		return result, fmt.Errorf("create output dir: %w", err)
	}
	defer os.RemoveAll(outputDir)

	args := []string{
		mediaPath,
		"--model", c.model,
		"--output_format", "json",
		"--output_dir", outputDir,
		"--fp16", "False",
	}
	if c.language != "" {
		args = append(args, "--language", c.language)
	}

	if err := c.run(ctx, c.binary, args...); err != nil {
		if strings.Contains(err.Error(), "executable file not found") {
			return result, services.Wrap(services.ErrConfiguration, "transcription", "run whisper", "whisper not installed", err)
		}
		return result, services.Wrap(services.ErrExternalTool, "transcription", "run whisper", mediaPath, err)
	}

	baseName := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	jsonPath := filepath.Join(outputDir, baseName+".json")
	output, err := loadOutput(jsonPath)
	if err != nil {
		return result, services.Wrap(services.ErrExternalTool, "transcription", "parse whisper output", jsonPath, err)
	}

	result.Text = strings.TrimSpace(output.Text)
	result.Segments = make([]subtitle.Segment, 0, len(output.Segments))
	for _, segment := range output.Segments {
		result.Segments = append(result.Segments, subtitle.Segment{
			Start: segment.Start,
			End:   segment.End,
			Text:  segment.Text,
		})
	}
	return result, nil
}

func (c *Client) run(ctx context.Context, name string, args ...string) error {
	if c.runner != nil {
		return c.runner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func loadOutput(path string) (whisperOutput, error) {
	var output whisperOutput
	data, err := os.ReadFile(path)
	if err != nil {
		return output, err
	}
	if err := json.Unmarshal(data, &output); err != nil {
		return output, err
	}
	if output.Text == "" && len(output.Segments) == 0 {
		return output, errors.New("empty transcription output")
	}
	return output, nil
}
