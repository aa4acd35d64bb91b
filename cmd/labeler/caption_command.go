package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/menta2k/image-labeler/internal/config"
	"github.com/menta2k/image-labeler/pkg/annotate"
	"github.com/menta2k/image-labeler/pkg/captioner"
	"github.com/menta2k/image-labeler/pkg/client"
	"github.com/menta2k/image-labeler/pkg/llamacpp"
	"github.com/menta2k/image-labeler/pkg/ollama"
	"github.com/menta2k/image-labeler/pkg/progress"
	"github.com/menta2k/image-labeler/pkg/types"
)

type captionerFlags struct {
	provider     string
	url          string
	model        string
	style        string
	format       string
	avoidGeneric bool
	prompt       string
	maxSide      int
	imageFormat  string
	quality      int
	timeout      int
	trigger      string
}

func (f *captionerFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.provider, "provider", "", "Vision model server (ollama, llamacpp)")
	flags.StringVar(&f.url, "url", "", "Vision model server URL")
	flags.StringVarP(&f.model, "model", "m", "", "Vision model name")
	flags.StringVar(&f.style, "style", "", "Caption style (short, medium, detailed)")
	flags.StringVar(&f.format, "format", "", "Caption output (sentence, tags)")
	flags.BoolVar(&f.avoidGeneric, "avoid-generic", false, "Strip leading phrases such as \"a picture of\"")
	flags.StringVar(&f.prompt, "prompt", "", "Prompt overriding the style prompt")
	flags.IntVar(&f.maxSide, "max-side", 0, "Longest image side sent to the model (0 keeps the original)")
	flags.StringVar(&f.imageFormat, "image-format", "", "Encoding of the image sent to the model (jpg, png, webp)")
	flags.IntVar(&f.quality, "quality", 0, "Encoding quality of the image sent to the model (1-100)")
	flags.IntVar(&f.timeout, "timeout", 0, "Seconds allowed per image")
	flags.StringVar(&f.trigger, "trigger", "", "Trigger word prepended to every caption")
}

// apply overrides c with every flag set on the command line
func (f *captionerFlags) apply(cmd *cobra.Command, c *config.Captioner) error {
	changed := cmd.Flags().Changed
	if changed("provider") {
		c.Provider = strings.ToLower(strings.TrimSpace(f.provider))
		if !changed("url") {
			c.URL = config.DefaultCaptionerURL(c.Provider)
		}
	}
	if changed("url") {
		c.URL = f.url
	}
	if changed("model") {
		c.Model = f.model
	}
	if changed("style") {
		c.Style = f.style
	}
	if changed("format") {
		c.Format = f.format
	}
	if changed("avoid-generic") {
		c.AvoidGeneric = f.avoidGeneric
	}
	if changed("prompt") {
		c.Prompt = f.prompt
	}
	if changed("max-side") {
		c.MaxSide = f.maxSide
	}
	if changed("image-format") {
		c.ImageFormat = strings.ToLower(f.imageFormat)
	}
	if changed("quality") {
		c.Quality = f.quality
	}
	if changed("timeout") {
		c.TimeoutSeconds = f.timeout
	}
	if changed("trigger") {
		c.Trigger = f.trigger
	}
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("quality must be within [1,100], got %d", c.Quality)
	}
	return nil
}

func newVisionClient(provider, url string) (client.VisionClient, error) {
	switch provider {
	case "ollama":
		c, err := ollama.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		return c, nil
	case "llamacpp":
		c, err := llamacpp.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("create llama.cpp client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown captioner provider %q (use ollama or llamacpp)", provider)
	}
}

// timeoutDescriber bounds every caption request
type timeoutDescriber struct {
	inner   annotate.Describer
	timeout time.Duration
}

func (d timeoutDescriber) CaptionFile(ctx context.Context, path string) (string, error) {
	if d.timeout <= 0 {
		return d.inner.CaptionFile(ctx, path)
	}
	imgCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	caption, err := d.inner.CaptionFile(imgCtx, path)
	// Only the parent context aborts the batch; a slow image is skipped
	if err != nil && ctx.Err() == nil && imgCtx.Err() != nil {
		return "", fmt.Errorf("caption timed out after %s", d.timeout)
	}
	return caption, err
}

func newCaptionCommand(ctx *commandContext) *cobra.Command {
	var input inputFlags
	var flags captionerFlags

	cmd := &cobra.Command{
		Use:   "caption",
		Short: "Caption images with a vision-language model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			c := cfg.Captioner
			if err := flags.apply(cmd, &c); err != nil {
				return err
			}
			style, err := captioner.ParseStyle(c.Style)
			if err != nil {
				return err
			}
			format, err := captioner.ParseOutputFormat(c.Format)
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}

			images, _, err := input.resolve()
			if err != nil {
				return err
			}

			vc, err := newVisionClient(c.Provider, c.URL)
			if err != nil {
				return err
			}
			if err := vc.Ping(cmd.Context()); err != nil {
				return &types.BackendLoadError{Model: c.Model, Err: fmt.Errorf("%s server at %s: %w", c.Provider, c.URL, err)}
			}
			capt, err := captioner.New(vc, types.CaptionerBackend{
				Provider: c.Provider,
				URL:      c.URL,
				Model:    c.Model,
				MaxSide:  c.MaxSide,
				Format:   c.ImageFormat,
				Quality:  c.Quality,
			}, captioner.Options{
				Style:        style,
				Format:       format,
				AvoidGeneric: c.AvoidGeneric,
				Prompt:       c.Prompt,
			})
			if err != nil {
				return &types.BackendLoadError{Model: c.Model, Err: err}
			}
			logger.Info("captioning with vision model", "provider", c.Provider, "model", c.Model, "style", style, "format", format)

			pass := &annotate.CaptionPass{
				Describer: timeoutDescriber{inner: capt, timeout: time.Duration(c.TimeoutSeconds) * time.Second},
				Trigger:   c.Trigger,
				Progress:  progress.NewWriter(cmd.OutOrStdout()),
				Logger:    logger,
			}
			_, err = pass.Run(cmd.Context(), images)
			return err
		},
	}

	input.register(cmd)
	flags.register(cmd)
	return cmd
}
