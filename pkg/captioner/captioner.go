// Package captioner produces natural-language captions through a
// vision-language model server.
package captioner

import (
	"context"
	"fmt"
	"image"
	"regexp"
	"strings"

	"github.com/menta2k/image-labeler/pkg/client"
	"github.com/menta2k/image-labeler/pkg/processing"
	"github.com/menta2k/image-labeler/pkg/types"
)

// Style controls caption length
type Style string

const (
	StyleShort    Style = "short"
	StyleMedium   Style = "medium"
	StyleDetailed Style = "detailed"
)

// OutputFormat selects whether a caption stays a sentence or becomes keywords
type OutputFormat string

const (
	FormatSentence OutputFormat = "sentence"
	FormatTags     OutputFormat = "tags"
)

var prompts = map[Style]string{
	StyleShort:    "What is this? Answer with one short phrase.",
	StyleMedium:   "What is in this image? Answer with one sentence.",
	StyleDetailed: "Describe this image in detail in two or three sentences. Do not guess real identities.",
}

var maxTokens = map[Style]int{
	StyleShort:    40,
	StyleMedium:   60,
	StyleDetailed: 100,
}

// GenericPrefixes are openings that carry no information in a training label
var GenericPrefixes = []string{
	"a picture of ",
	"an image of ",
	"a photo of ",
	"a photograph of ",
	"a person ",
	"a man ",
	"a woman ",
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "in": {}, "on": {}, "at": {}, "to": {}, "for": {},
	"of": {}, "with": {}, "is": {}, "are": {}, "and": {}, "or": {}, "but": {},
	"it": {}, "this": {}, "that": {},
}

var wordPattern = regexp.MustCompile(`\b\w+\b`)

// ParseStyle validates a style name
func ParseStyle(s string) (Style, error) {
	switch st := Style(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StyleShort, nil
	case StyleShort, StyleMedium, StyleDetailed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown caption style %q", s)
	}
}

// ParseOutputFormat validates an output format name
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatSentence, nil
	case FormatSentence, FormatTags:
		return f, nil
	default:
		return "", fmt.Errorf("unknown caption format %q", s)
	}
}

// Options controls caption generation and cleanup
type Options struct {
	Style        Style
	Format       OutputFormat
	AvoidGeneric bool
	// Prompt overrides the style prompt when set
	Prompt      string
	Temperature float64
}

// Captioner describes images with a vision client
type Captioner struct {
	client    client.VisionClient
	backend   types.CaptionerBackend
	processor *processing.Processor
	opts      Options
}

// New creates a captioner for the given backend
func New(c client.VisionClient, backend types.CaptionerBackend, opts Options) (*Captioner, error) {
	if backend.Model == "" {
		return nil, fmt.Errorf("captioner model is required")
	}
	if opts.Style == "" {
		opts.Style = StyleShort
	}
	if opts.Format == "" {
		opts.Format = FormatSentence
	}
	if _, ok := prompts[opts.Style]; !ok {
		return nil, fmt.Errorf("unknown caption style %q", opts.Style)
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.7
	}
	return &Captioner{client: c, backend: backend, processor: processing.NewProcessor(), opts: opts}, nil
}

// Prompt returns the prompt sent with every image
func (c *Captioner) Prompt() string {
	if c.opts.Prompt != "" {
		return c.opts.Prompt
	}
	return prompts[c.opts.Style]
}

// CaptionFile loads the image at path and captions it. Decode failures are
// returned as *types.DecodeError.
func (c *Captioner) CaptionFile(ctx context.Context, path string) (string, error) {
	img, err := c.processor.LoadImage(path)
	if err != nil {
		return "", err
	}
	return c.Caption(ctx, img)
}

// Caption encodes img for the backend and returns the cleaned caption
func (c *Captioner) Caption(ctx context.Context, img image.Image) (string, error) {
	imgB64, err := c.processor.PrepareImageForModel(img, c.backend.Format, c.backend.MaxSide, c.backend.Quality)
	if err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}
	raw, err := c.client.Describe(ctx, client.Request{
		Model:       c.backend.Model,
		Prompt:      c.Prompt(),
		ImageB64:    imgB64,
		MIME:        mimeFor(c.backend.Format),
		MaxTokens:   maxTokens[c.opts.Style],
		Temperature: c.opts.Temperature,
	})
	if err != nil {
		return "", err
	}
	return Clean(raw, c.opts), nil
}

// Clean normalizes raw model output into a caption
func Clean(raw string, opts Options) string {
	caption := sanitize(raw)
	if opts.AvoidGeneric {
		caption = StripGeneric(caption)
	}
	if opts.Format == FormatTags {
		return strings.Join(Keywords(caption), ", ")
	}
	return caption
}

// StripGeneric removes one leading generic phrase, matched case-insensitively
func StripGeneric(caption string) string {
	lower := strings.ToLower(caption)
	for _, p := range GenericPrefixes {
		if strings.HasPrefix(lower, p) {
			caption = caption[len(p):]
			break
		}
	}
	return strings.TrimSpace(caption)
}

// Keywords lowercases a sentence into words longer than two characters,
// dropping common stopwords.
func Keywords(sentence string) []string {
	var out []string
	for _, w := range wordPattern.FindAllString(strings.ToLower(sentence), -1) {
		if len([]rune(w)) <= 2 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}

// sanitize strips code fences, wrapping quotes, a "Caption:" style lead-in,
// and collapses whitespace so the caption fits on one line.
func sanitize(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	for _, lead := range []string{"caption:", "answer:", "description:"} {
		if len(raw) >= len(lead) && strings.EqualFold(raw[:len(lead)], lead) {
			raw = raw[len(lead):]
			break
		}
	}
	raw = strings.Join(strings.Fields(raw), " ")
	return strings.Trim(raw, `"'`)
}

func mimeFor(format string) string {
	switch strings.ToLower(format) {
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
