package types

import "fmt"

// Category is the vocabulary partition a label belongs to
type Category int

const (
	CategoryGeneral Category = iota
	CategoryCharacter
	CategoryRating
	CategoryOther
)

// String returns the lowercase category name
func (c Category) String() string {
	switch c {
	case CategoryGeneral:
		return "general"
	case CategoryCharacter:
		return "character"
	case CategoryRating:
		return "rating"
	default:
		return "other"
	}
}

// TagRecord is one candidate label for an image as scored by a tagger
type TagRecord struct {
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Score    float64  `json:"score"`
	// Index is the position of the label in the model vocabulary
	Index int `json:"index"`
}

// AnnotationResult is the output of one pass for one image, keyed by image stem
type AnnotationResult struct {
	Stem    string   `json:"stem"`
	Tags    []string `json:"tags,omitempty"`
	Caption string   `json:"caption,omitempty"`
}

// ProgressEvent is a single per-image progress report
type ProgressEvent struct {
	Progress    int    `json:"progress"`
	Total       int    `json:"total"`
	CurrentFile string `json:"current_file"`
	Status      string `json:"status"`
}

// MergeFormat selects how tagger and captioner output are composed
type MergeFormat string

const (
	MergeTagsOnly           MergeFormat = "tags_only"
	MergeTriggerTagsCaption MergeFormat = "trigger_tags_caption"
	MergeTriggerCaptionTags MergeFormat = "trigger_caption_tags"
)

// ParseMergeFormat validates a merge format name
func ParseMergeFormat(s string) (MergeFormat, error) {
	switch f := MergeFormat(s); f {
	case MergeTagsOnly, MergeTriggerTagsCaption, MergeTriggerCaptionTags:
		return f, nil
	default:
		return "", fmt.Errorf("unknown merge format %q (use tags_only, trigger_tags_caption or trigger_caption_tags)", s)
	}
}

// MergeConfig controls how per-image pass outputs become one label
type MergeConfig struct {
	Format     MergeFormat `json:"merge_format" toml:"merge_format"`
	Dedupe     bool        `json:"dedupe" toml:"dedupe"`
	Shuffle    bool        `json:"shuffle" toml:"shuffle"`
	KeepTokens int         `json:"keep_tokens" toml:"keep_tokens"`
	Trigger    string      `json:"trigger" toml:"trigger"`
	MaxLength  int         `json:"max_length" toml:"max_length"`
}

// Validate checks the merge configuration invariants
func (c MergeConfig) Validate() error {
	if _, err := ParseMergeFormat(string(c.Format)); err != nil {
		return err
	}
	if c.KeepTokens < 0 {
		return fmt.Errorf("keep_tokens must be >= 0, got %d", c.KeepTokens)
	}
	return nil
}
