// Package annotate runs a single annotation pass over a batch of images,
// reporting progress per image and writing one label file per image.
package annotate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/menta2k/image-labeler/internal/utils"
	"github.com/menta2k/image-labeler/pkg/inference"
	"github.com/menta2k/image-labeler/pkg/progress"
	"github.com/menta2k/image-labeler/pkg/tags"
	"github.com/menta2k/image-labeler/pkg/types"
)

// Predictor scores one image file
type Predictor interface {
	Predict(path string) (inference.Prediction, error)
}

// Describer captions one image file
type Describer interface {
	CaptionFile(ctx context.Context, path string) (string, error)
}

// Summary counts the outcome of one pass
type Summary struct {
	Total   int
	Written int
	Skipped int
}

// Discover returns the images to process: the single file when set,
// otherwise every image directly inside dir.
func Discover(dir, file string) ([]string, error) {
	if file != "" {
		if !utils.FileExists(file) {
			return nil, fmt.Errorf("image %s does not exist", file)
		}
		if !utils.IsImageFile(file) {
			return nil, &types.EmptyInputError{Dir: filepath.Dir(file)}
		}
		return []string{file}, nil
	}
	images, err := utils.ListImageFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	if len(images) == 0 {
		return nil, &types.EmptyInputError{Dir: dir}
	}
	return images, nil
}

// labelFunc produces the label text for one image
type labelFunc func(ctx context.Context, path string) (string, error)

// run drives the shared per-image loop. Progress for an image is emitted
// before work on it starts. Per-image failures are logged and skipped.
func run(ctx context.Context, images []string, status string, out *progress.Writer, logger *slog.Logger, label labelFunc) (Summary, error) {
	summary := Summary{Total: len(images)}
	emitter := progress.NewEmitter(out, len(images), status)

	for _, path := range images {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		name := filepath.Base(path)
		if _, err := emitter.Next(name); err != nil {
			return summary, err
		}

		text, err := label(ctx, path)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return summary, err
			}
			summary.Skipped++
			attrs := []any{"file", name, "error", err}
			if errors.Is(err, types.ErrDecode) {
				logger.Warn("skipping unreadable image", attrs...)
			} else {
				logger.Warn("skipping image", attrs...)
			}
			continue
		}

		if err := utils.WriteLabel(utils.LabelPath(path), text); err != nil {
			summary.Skipped++
			logger.Warn("write label failed", "file", name, "error", err)
			continue
		}
		summary.Written++
		logger.Debug("labeled image", "file", name, "label", text)
	}
	return summary, nil
}

// TagPass writes tagger labels
type TagPass struct {
	Predictor Predictor
	Options   tags.Options
	// Shuffler defaults to tags.RandomShuffler
	Shuffler tags.Shuffler
	Progress *progress.Writer
	Logger   *slog.Logger
}

// Run tags every image in order
func (p *TagPass) Run(ctx context.Context, images []string) (Summary, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "tagger")
	logger.Info(fmt.Sprintf("Found %d images. Starting inference...", len(images)))

	summary, err := run(ctx, images, progress.StatusTagging, p.Progress, logger, func(_ context.Context, path string) (string, error) {
		pred, err := p.Predictor.Predict(path)
		if err != nil {
			return "", err
		}
		return tags.Format(tags.Process(pred.Tags, p.Options, p.Shuffler)), nil
	})
	if err == nil {
		logger.Info("tagging complete", "written", summary.Written, "skipped", summary.Skipped)
	}
	return summary, err
}

// CaptionPass writes captioner labels
type CaptionPass struct {
	Describer Describer
	// Trigger is prepended to each caption when set
	Trigger  string
	Progress *progress.Writer
	Logger   *slog.Logger
}

// Run captions every image in order
func (p *CaptionPass) Run(ctx context.Context, images []string) (Summary, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "captioner")
	logger.Info(fmt.Sprintf("Found %d images to caption", len(images)))

	trigger := strings.TrimSpace(p.Trigger)
	summary, err := run(ctx, images, progress.StatusCaptioning, p.Progress, logger, func(ctx context.Context, path string) (string, error) {
		caption, err := p.Describer.CaptionFile(ctx, path)
		if err != nil {
			return "", err
		}
		if trigger != "" {
			if caption == "" {
				return trigger, nil
			}
			return trigger + ", " + caption, nil
		}
		return caption, nil
	})
	if err == nil {
		logger.Info("captioning complete", "written", summary.Written, "skipped", summary.Skipped)
	}
	return summary, err
}
