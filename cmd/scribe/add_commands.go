package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/queue"
)

var mediaFileExtensions = map[string]struct{}{
	".mp3":  {},
	".m4a":  {},
	".wav":  {},
	".flac": {},
	".ogg":  {},
	".mp4":  {},
	".mkv":  {},
	".avi":  {},
	".mov":  {},
	".webm": {},
}

func newAddFileCommand(ctx *commandContext) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "add-file <path>",
		Short: "Queue a local media file for transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}

			info, err := os.Stat(absPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("file does not exist: %s", absPath)
				}
				return fmt.Errorf("inspect file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", absPath)
			}

			ext := strings.ToLower(filepath.Ext(info.Name()))
			if _, ok := mediaFileExtensions[ext]; !ok {
				return fmt.Errorf("unsupported file extension %q", ext)
			}

			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				name := filepath.Base(absPath)
				if err := copyIntoFilesDir(absPath, filepath.Join(cfg.Paths.FilesDir, name)); err != nil {
					return err
				}
				task, err := store.Insert(cmd.Context(), owner, name, "")
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s as task #%d\n", name, task.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&owner, "owner", "o", "", "Email address that receives the transcript")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newAddURLCommand(ctx *commandContext) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "add-url <url>",
		Short: "Queue a media URL for download and transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := strings.TrimSpace(args[0])
			if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
				return fmt.Errorf("unsupported url %q", url)
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				task, err := store.Insert(cmd.Context(), owner, "", url)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s as task #%d\n", url, task.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&owner, "owner", "o", "", "Email address that receives the transcript")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func copyIntoFilesDir(src, dst string) error {
	if src == dst {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("stage media file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy media file: %w", err)
	}
	return out.Close()
}
