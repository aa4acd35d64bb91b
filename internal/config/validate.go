package config

import (
	"errors"
	"fmt"

	"github.com/menta2k/image-labeler/pkg/captioner"
	"github.com/menta2k/image-labeler/pkg/tags"
	"github.com/menta2k/image-labeler/pkg/types"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTagger(); err != nil {
		return err
	}
	if err := c.validateCaptioner(); err != nil {
		return err
	}
	if err := c.validateHybrid(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTagger() error {
	t := c.Tagger
	if t.Threshold < 0 || t.Threshold > 1 {
		return fmt.Errorf("tagger.threshold must be within [0,1], got %v", t.Threshold)
	}
	if t.CharacterThreshold < 0 || t.CharacterThreshold > 1 {
		return fmt.Errorf("tagger.character_threshold must be within [0,1], got %v", t.CharacterThreshold)
	}
	if t.KeepTokens < 0 {
		return errors.New("tagger.keep_tokens must be >= 0")
	}
	if _, err := tags.ParseOrder(t.Order); err != nil {
		return fmt.Errorf("tagger.order: %w", err)
	}
	return nil
}

func (c *Config) validateCaptioner() error {
	cp := c.Captioner
	switch cp.Provider {
	case "ollama", "llamacpp":
	default:
		return fmt.Errorf("captioner.provider: unsupported value %q (use ollama or llamacpp)", cp.Provider)
	}
	if _, err := captioner.ParseStyle(cp.Style); err != nil {
		return fmt.Errorf("captioner.style: %w", err)
	}
	if _, err := captioner.ParseOutputFormat(cp.Format); err != nil {
		return fmt.Errorf("captioner.format: %w", err)
	}
	switch cp.ImageFormat {
	case "jpg", "png", "webp":
	default:
		return fmt.Errorf("captioner.image_format: unsupported value %q", cp.ImageFormat)
	}
	if cp.Quality < 1 || cp.Quality > 100 {
		return fmt.Errorf("captioner.quality must be within [1,100], got %d", cp.Quality)
	}
	if cp.MaxSide < 0 {
		return errors.New("captioner.max_side must be >= 0")
	}
	if cp.TimeoutSeconds < 0 {
		return errors.New("captioner.timeout_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateHybrid() error {
	if err := c.MergeConfig().Validate(); err != nil {
		return fmt.Errorf("hybrid: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

// MergeConfig returns the hybrid merge settings as a types.MergeConfig.
func (c *Config) MergeConfig() types.MergeConfig {
	return types.MergeConfig{
		Format:     types.MergeFormat(c.Hybrid.MergeFormat),
		Dedupe:     c.Hybrid.Dedupe,
		Shuffle:    c.Hybrid.Shuffle,
		KeepTokens: c.Hybrid.KeepTokens,
		Trigger:    c.Hybrid.Trigger,
		MaxLength:  c.Hybrid.MaxLength,
	}
}
