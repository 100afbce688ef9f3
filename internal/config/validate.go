package config

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTranscriber(); err != nil {
		return err
	}
	if err := c.validateDownloader(); err != nil {
		return err
	}
	if err := c.validateMail(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateTranscriber() error {
	if strings.TrimSpace(c.Transcriber.Binary) == "" {
		return errors.New("transcriber.binary must be set")
	}
	if strings.TrimSpace(c.Transcriber.Model) == "" {
		return errors.New("transcriber.model must be set")
	}
	return nil
}

func (c *Config) validateDownloader() error {
	if strings.TrimSpace(c.Downloader.Binary) == "" {
		return errors.New("downloader.binary must be set")
	}
	if c.Downloader.AudioQuality <= 0 {
		return errors.New("downloader.audio_quality must be positive")
	}
	return nil
}

func (c *Config) validateMail() error {
	if !c.Mail.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Mail.Host) == "" {
		return errors.New("mail.host must be set when mail is enabled")
	}
	if c.Mail.Port <= 0 || c.Mail.Port > 65535 {
		return fmt.Errorf("mail.port %d out of range", c.Mail.Port)
	}
	from := strings.TrimSpace(c.Mail.From)
	if from == "" {
		from = strings.TrimSpace(c.Mail.Username)
	}
	if from == "" {
		return errors.New("mail.from or mail.username must be set when mail is enabled")
	}
	if _, err := mail.ParseAddress(from); err != nil {
		return fmt.Errorf("mail sender address %q: %w", from, err)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.IdlePollInterval <= 0 {
		return errors.New("workflow.idle_poll_interval must be positive")
	}
	if c.Workflow.BatchPauseInterval < 0 {
		return errors.New("workflow.batch_pause_interval must not be negative")
	}
	if c.Workflow.MaxAttempts <= 0 {
		return errors.New("workflow.max_attempts must be positive")
	}
	if c.Workflow.NotifyMaxAttempts <= 0 {
		return errors.New("workflow.notify_max_attempts must be positive")
	}
	return nil
}

// SenderAddress returns the effective From address for outbound mail.
func (c *Config) SenderAddress() string {
	if from := strings.TrimSpace(c.Mail.From); from != "" {
		return from
	}
	return strings.TrimSpace(c.Mail.Username)
}
