package media_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"scribe/internal/config"
	"scribe/internal/media"
	"scribe/internal/services"
)

func newClient(runner media.CommandRunner) *media.Client {
	cfg := config.Downloader{Binary: "yt-dlp", AudioFormat: "mp3", AudioQuality: 192}
	return media.NewClient(cfg).WithCommandRunner(runner)
}

func TestAcquireParsesMediaID(t *testing.T) {
	var gotName string
	var gotArgs []string
	client := newClient(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		return []byte(`{"id": "dQw4w9WgXcQ", "ext": "webm"}` + "\n"), nil
	})

	filename, err := client.Acquire(context.Background(), "https://example.com/v", "/tmp/files")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if filename != "dQw4w9WgXcQ.mp3" {
		t.Fatalf("filename = %q", filename)
	}
	if gotName != "yt-dlp" {
		t.Fatalf("binary = %q", gotName)
	}
	joined := strings.Join(gotArgs, " ")
	for _, fragment := range []string{
		"--format bestaudio",
		"--audio-format mp3",
		"--audio-quality 192",
		"--output /tmp/files/%(id)s.%(ext)s",
		"https://example.com/v",
	} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("args missing %q: %v", fragment, gotArgs)
		}
	}
}

func TestAcquireSkipsWarningLines(t *testing.T) {
	client := newClient(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("WARNING: throttled\n{\"id\": \"abc\"}\n"), nil
	})
	filename, err := client.Acquire(context.Background(), "https://example.com/v", t.TempDir())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if filename != "abc.mp3" {
		t.Fatalf("filename = %q", filename)
	}
}

func TestAcquireClassifiesErrors(t *testing.T) {
	cases := []struct {
		name   string
		stderr string
		marker error
	}{
		{"unsupported", "ERROR: Unsupported URL: https://example.com/v", services.ErrUnsupportedSource},
		{"missing binary", `exec: "yt-dlp": executable file not found in $PATH`, services.ErrConfiguration},
		{"network", "ERROR: unable to download video data", services.ErrExternalTool},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newClient(func(ctx context.Context, name string, args ...string) ([]byte, error) {
				return nil, errors.New(tc.stderr)
			})
			_, err := client.Acquire(context.Background(), "https://example.com/v", t.TempDir())
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
		})
	}
}

func TestAcquireRejectsEmptyURL(t *testing.T) {
	client := newClient(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		t.Fatal("runner should not be called")
		return nil, nil
	})
	if _, err := client.Acquire(context.Background(), "  ", t.TempDir()); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAcquireRejectsMissingID(t *testing.T) {
	client := newClient(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte(`{"ext": "mp3"}`), nil
	})
	if _, err := client.Acquire(context.Background(), "https://example.com/v", t.TempDir()); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}
