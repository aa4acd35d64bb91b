// Package merge combines tagger and captioner output into a single label.
package merge

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/menta2k/image-labeler/pkg/tags"
	"github.com/menta2k/image-labeler/pkg/types"
)

const separator = ", "

// Engine merges per-image pass outputs with a fixed configuration
type Engine struct {
	cfg     types.MergeConfig
	shuffle tags.Shuffler
}

// Option configures an Engine
type Option func(*Engine)

// WithShuffler replaces the random permutation, mainly for tests
func WithShuffler(s tags.Shuffler) Option {
	return func(e *Engine) {
		e.shuffle = s
	}
}

// NewEngine validates cfg and returns an Engine
func NewEngine(cfg types.MergeConfig, opts ...Option) (*Engine, error) {
	if cfg.Format == "" {
		cfg.Format = types.MergeTriggerTagsCaption
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, shuffle: tags.RandomShuffler}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the effective configuration
func (e *Engine) Config() types.MergeConfig { return e.cfg }

// Merge produces the final label for one image from the raw tagger text and
// the caption. Either may be empty.
func (e *Engine) Merge(tagText, caption string) string {
	return e.compose(ParseTags(tagText), caption)
}

// MergeResults merges the tagger and captioner results for one image stem.
// A zero result stands for a missing pass output.
func (e *Engine) MergeResults(tagged, captioned types.AnnotationResult) string {
	return e.compose(tagged.Tags, captioned.Caption)
}

func (e *Engine) compose(tagList []string, caption string) string {
	seq := Compose(e.cfg.Format, tagList, strings.TrimSpace(caption))
	if e.cfg.Dedupe && len(seq) > 1 {
		seq = Dedupe(seq)
	}
	if e.cfg.Shuffle && len(seq) > e.cfg.KeepTokens {
		seq = tags.ShuffleTail(seq, e.cfg.KeepTokens, e.shuffle)
	}
	if trigger := strings.TrimSpace(e.cfg.Trigger); trigger != "" {
		seq = append([]string{trigger}, seq...)
	}
	return Truncate(strings.Join(seq, separator), e.cfg.MaxLength)
}

// ParseTags splits tagger output on commas, trimming blanks
func ParseTags(text string) []string {
	var out []string
	for _, part := range strings.Split(text, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Compose arranges tags and caption by format. An empty caption is omitted.
func Compose(format types.MergeFormat, tagList []string, caption string) []string {
	out := make([]string, 0, len(tagList)+1)
	switch format {
	case types.MergeTriggerTagsCaption:
		out = append(out, tagList...)
		if caption != "" {
			out = append(out, caption)
		}
	case types.MergeTriggerCaptionTags:
		if caption != "" {
			out = append(out, caption)
		}
		out = append(out, tagList...)
	default:
		out = append(out, tagList...)
	}
	return out
}

// Dedupe drops repeats that match after lowercasing, keeping the first
// spelling. Lowercasing does not expand letters, so "Straße" and "STRASSE"
// stay distinct.
func Dedupe(seq []string) []string {
	lower := cases.Lower(language.Und)
	seen := make(map[string]struct{}, len(seq))
	out := make([]string, 0, len(seq))
	for _, item := range seq {
		key := lower.String(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

// Truncate limits s to maxLen characters, cutting back to the last entry
// boundary inside the limit. A prefix without any comma is kept as cut.
// maxLen <= 0 disables truncation.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	cut := string([]rune(s)[:maxLen])
	if i := strings.LastIndex(cut, separator); i > 0 {
		return cut[:i]
	}
	if i := strings.LastIndex(cut, ","); i > 0 {
		return strings.TrimRight(cut[:i], " ")
	}
	return cut
}
