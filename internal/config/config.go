package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Environment variables that override file settings
const (
	EnvRuntimeLibrary = "LABELER_ONNXRUNTIME_LIB"
	EnvModelDir       = "LABELER_MODEL_DIR"
	EnvCaptionerURL   = "LABELER_CAPTIONER_URL"
)

// Tagger contains settings for the ONNX tagger pass.
type Tagger struct {
	Model                string   `toml:"model"`
	ModelDir             string   `toml:"model_dir"`
	RuntimeLibrary       string   `toml:"onnxruntime_lib"`
	Threshold            float64  `toml:"threshold"`
	CharacterThreshold   float64  `toml:"character_threshold"`
	MaxTags              int      `toml:"max_tags"`
	Exclude              []string `toml:"exclude"`
	Include              []string `toml:"include"`
	UseDefaultExclusions bool     `toml:"use_default_exclusions"`
	Order                string   `toml:"order"`
	Normalize            bool     `toml:"normalize"`
	Trigger              string   `toml:"trigger"`
	KeepTokens           int      `toml:"keep_tokens"`
	Shuffle              bool     `toml:"shuffle"`
}

// Captioner contains settings for the vision-language caption pass.
type Captioner struct {
	Provider       string `toml:"provider"`
	URL            string `toml:"url"`
	Model          string `toml:"model"`
	Style          string `toml:"style"`
	Format         string `toml:"format"`
	AvoidGeneric   bool   `toml:"avoid_generic"`
	Prompt         string `toml:"prompt"`
	MaxSide        int    `toml:"max_side"`
	ImageFormat    string `toml:"image_format"`
	Quality        int    `toml:"quality"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Trigger        string `toml:"trigger"`
}

// Hybrid contains the merge settings of the two-pass run.
type Hybrid struct {
	MergeFormat string `toml:"merge_format"`
	Dedupe      bool   `toml:"dedupe"`
	Shuffle     bool   `toml:"shuffle"`
	KeepTokens  int    `toml:"keep_tokens"`
	Trigger     string `toml:"trigger"`
	MaxLength   int    `toml:"max_length"`
	// MaxTags caps the tagger pass when it runs as part of a hybrid job
	MaxTags int `toml:"max_tags"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file"`
}

// Config encapsulates all configuration values.
//
// Sections:
//   - Tagger: model selection, thresholds and tag formatting
//   - Captioner: vision model server and caption style
//   - Hybrid: how the two passes are merged
//   - Logging: log format, level and optional file
type Config struct {
	Tagger    Tagger    `toml:"tagger"`
	Captioner Captioner `toml:"captioner"`
	Hybrid    Hybrid    `toml:"hybrid"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/labeler/config.toml")
}

// Load locates, parses, and validates a configuration file. Environment
// overrides are applied after parsing. It returns the resolved path and
// whether a file was found there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("labeler.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvRuntimeLibrary)); v != "" {
		c.Tagger.RuntimeLibrary = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvModelDir)); v != "" {
		c.Tagger.ModelDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCaptionerURL)); v != "" {
		c.Captioner.URL = v
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
