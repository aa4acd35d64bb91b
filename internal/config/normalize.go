package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeTagger(); err != nil {
		return err
	}
	c.normalizeCaptioner()
	c.normalizeHybrid()
	return c.normalizeLogging()
}

func (c *Config) normalizeTagger() error {
	t := &c.Tagger
	t.Model = strings.TrimSpace(t.Model)
	if t.Model == "" {
		t.Model = defaultTaggerModel
	}
	if strings.TrimSpace(t.ModelDir) == "" {
		t.ModelDir = defaultModelDir
	}
	var err error
	if t.ModelDir, err = expandPath(t.ModelDir); err != nil {
		return fmt.Errorf("tagger.model_dir: %w", err)
	}
	if t.RuntimeLibrary, err = expandPath(strings.TrimSpace(t.RuntimeLibrary)); err != nil {
		return fmt.Errorf("tagger.onnxruntime_lib: %w", err)
	}
	t.Order = strings.ToLower(strings.TrimSpace(t.Order))
	if t.Order == "" {
		t.Order = defaultOrder
	}
	t.Exclude = trimList(t.Exclude)
	t.Include = trimList(t.Include)
	t.Trigger = strings.TrimSpace(t.Trigger)
	return nil
}

func (c *Config) normalizeCaptioner() {
	cp := &c.Captioner
	cp.Provider = strings.ToLower(strings.TrimSpace(cp.Provider))
	if cp.Provider == "" {
		cp.Provider = defaultCaptionerProvider
	}
	cp.URL = strings.TrimSpace(cp.URL)
	if cp.URL == "" {
		cp.URL = DefaultCaptionerURL(cp.Provider)
	}
	cp.Style = strings.ToLower(strings.TrimSpace(cp.Style))
	if cp.Style == "" {
		cp.Style = defaultCaptionStyle
	}
	cp.Format = strings.ToLower(strings.TrimSpace(cp.Format))
	if cp.Format == "" {
		cp.Format = defaultCaptionFormat
	}
	cp.ImageFormat = strings.ToLower(strings.TrimSpace(cp.ImageFormat))
	if cp.ImageFormat == "" || cp.ImageFormat == "jpeg" {
		cp.ImageFormat = defaultImageFormat
	}
	if cp.Quality == 0 {
		cp.Quality = defaultQuality
	}
	if cp.TimeoutSeconds == 0 {
		cp.TimeoutSeconds = defaultCaptionTimeout
	}
	cp.Trigger = strings.TrimSpace(cp.Trigger)
}

func (c *Config) normalizeHybrid() {
	h := &c.Hybrid
	h.MergeFormat = strings.ToLower(strings.TrimSpace(h.MergeFormat))
	if h.MergeFormat == "" {
		h.MergeFormat = defaultMergeFormat
	}
	h.Trigger = strings.TrimSpace(h.Trigger)
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	var err error
	if c.Logging.File, err = expandPath(strings.TrimSpace(c.Logging.File)); err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}
	return nil
}

func trimList(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
