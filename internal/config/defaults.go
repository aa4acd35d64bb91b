package config

const (
	defaultTaggerModel        = "wd-v1-4-convnext-tagger-v2"
	defaultModelDir           = "~/.local/share/labeler/models"
	defaultThreshold          = 0.35
	defaultCharacterThreshold = 0.7
	defaultMaxTags            = 50
	defaultHybridMaxTags      = 40
	defaultOrder              = "confidence"
	defaultKeepTokens         = 1
	defaultCaptionerProvider  = "ollama"
	defaultOllamaURL          = "http://localhost:11434"
	defaultLlamaCppURL        = "http://localhost:8080"
	defaultCaptionerModel     = "llava"
	defaultCaptionStyle       = "short"
	defaultCaptionFormat      = "tags"
	defaultMaxSide            = 1024
	defaultImageFormat        = "jpg"
	defaultQuality            = 85
	defaultCaptionTimeout     = 300
	defaultMergeFormat        = "trigger_tags_caption"
	defaultMaxLength          = 220
	defaultLogFormat          = "auto"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Tagger: Tagger{
			Model:                defaultTaggerModel,
			ModelDir:             defaultModelDir,
			Threshold:            defaultThreshold,
			CharacterThreshold:   defaultCharacterThreshold,
			MaxTags:              defaultMaxTags,
			UseDefaultExclusions: true,
			Order:                defaultOrder,
			KeepTokens:           defaultKeepTokens,
		},
		Captioner: Captioner{
			Provider:       defaultCaptionerProvider,
			Model:          defaultCaptionerModel,
			Style:          defaultCaptionStyle,
			Format:         defaultCaptionFormat,
			MaxSide:        defaultMaxSide,
			ImageFormat:    defaultImageFormat,
			Quality:        defaultQuality,
			TimeoutSeconds: defaultCaptionTimeout,
		},
		Hybrid: Hybrid{
			MergeFormat: defaultMergeFormat,
			KeepTokens:  defaultKeepTokens,
			MaxLength:   defaultMaxLength,
			MaxTags:     defaultHybridMaxTags,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// DefaultCaptionerURL returns the usual local address of a captioner provider.
func DefaultCaptionerURL(provider string) string {
	if provider == "llamacpp" {
		return defaultLlamaCppURL
	}
	return defaultOllamaURL
}
