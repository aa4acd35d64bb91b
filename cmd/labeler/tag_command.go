package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/menta2k/image-labeler/internal/config"
	"github.com/menta2k/image-labeler/pkg/annotate"
	"github.com/menta2k/image-labeler/pkg/inference"
	"github.com/menta2k/image-labeler/pkg/progress"
	"github.com/menta2k/image-labeler/pkg/tags"
	"github.com/menta2k/image-labeler/pkg/vocab"
)

type taggerFlags struct {
	model               string
	modelDir            string
	runtimeLibrary      string
	threshold           float64
	characterThreshold  float64
	maxTags             int
	exclude             []string
	include             []string
	noDefaultExclusions bool
	order               string
	normalize           bool
	trigger             string
	keepTokens          int
	shuffle             bool
}

func (f *taggerFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.model, "model", "m", "", "Tagger model key, alias or directory")
	flags.StringVar(&f.modelDir, "model-dir", "", "Directory holding downloaded tagger models")
	flags.StringVar(&f.runtimeLibrary, "onnxruntime-lib", "", "Path to the ONNX Runtime shared library")
	flags.Float64VarP(&f.threshold, "threshold", "t", 0, "Minimum confidence for general tags")
	flags.Float64Var(&f.characterThreshold, "character-threshold", 0, "Minimum confidence for character tags (0 uses --threshold)")
	flags.IntVar(&f.maxTags, "max-tags", 0, "Maximum tags per image (0 for unlimited)")
	flags.StringSliceVar(&f.exclude, "exclude", nil, "Tags to drop, comma separated")
	flags.StringSliceVar(&f.include, "include", nil, "Tags never dropped by exclusions, comma separated")
	flags.BoolVar(&f.noDefaultExclusions, "no-default-exclusions", false, "Disable the built-in exclusion list")
	flags.StringVar(&f.order, "order", "", "Tag order (confidence, alphabetical, model)")
	flags.BoolVar(&f.normalize, "normalize", false, "Lowercase tags and join words with underscores")
	flags.StringVar(&f.trigger, "trigger", "", "Trigger word prepended to every label")
	flags.IntVar(&f.keepTokens, "keep-tokens", 0, "Leading tags kept in place when shuffling")
	flags.BoolVar(&f.shuffle, "shuffle", false, "Shuffle tags after the kept prefix")
}

// apply overrides t with every flag set on the command line
func (f *taggerFlags) apply(cmd *cobra.Command, t *config.Tagger) error {
	changed := cmd.Flags().Changed
	if changed("model") {
		t.Model = f.model
	}
	if changed("model-dir") {
		dir, err := config.ExpandPath(f.modelDir)
		if err != nil {
			return fmt.Errorf("resolve model dir: %w", err)
		}
		t.ModelDir = dir
	}
	if changed("onnxruntime-lib") {
		t.RuntimeLibrary = f.runtimeLibrary
	}
	if changed("threshold") {
		t.Threshold = f.threshold
	}
	if changed("character-threshold") {
		t.CharacterThreshold = f.characterThreshold
	}
	if changed("max-tags") {
		t.MaxTags = f.maxTags
	}
	if changed("exclude") {
		t.Exclude = append(t.Exclude, splitAll(f.exclude)...)
	}
	if changed("include") {
		t.Include = append(t.Include, splitAll(f.include)...)
	}
	if changed("no-default-exclusions") {
		t.UseDefaultExclusions = !f.noDefaultExclusions
	}
	if changed("order") {
		t.Order = f.order
	}
	if changed("normalize") {
		t.Normalize = f.normalize
	}
	if changed("trigger") {
		t.Trigger = f.trigger
	}
	if changed("keep-tokens") {
		t.KeepTokens = f.keepTokens
	}
	if changed("shuffle") {
		t.Shuffle = f.shuffle
	}
	if t.Threshold < 0 || t.Threshold > 1 {
		return fmt.Errorf("threshold must be within [0,1], got %v", t.Threshold)
	}
	if t.CharacterThreshold < 0 || t.CharacterThreshold > 1 {
		return fmt.Errorf("character threshold must be within [0,1], got %v", t.CharacterThreshold)
	}
	if t.KeepTokens < 0 {
		return fmt.Errorf("keep tokens must be >= 0, got %d", t.KeepTokens)
	}
	return nil
}

func splitAll(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, vocab.SplitList(v)...)
	}
	return out
}

func newTagCommand(ctx *commandContext) *cobra.Command {
	var input inputFlags
	var flags taggerFlags

	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Tag images with a WD14-style ONNX tagger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			t := cfg.Tagger
			if err := flags.apply(cmd, &t); err != nil {
				return err
			}
			order, err := tags.ParseOrder(t.Order)
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

			spec := inference.ResolveSpec(t.Model, t.ModelDir)
			logger.Info("loading tagger model", "model", spec.Name, "source", spec.ResourceID)
			tagger, err := inference.Load(spec, inference.LoadOptions{
				RuntimeLibrary: t.RuntimeLibrary,
				Extract: inference.ExtractOptions{
					GeneralThreshold:   t.Threshold,
					CharacterThreshold: t.CharacterThreshold,
					Exclude:            vocab.ExclusionSet(t.UseDefaultExclusions, t.Exclude...),
					Include:            vocab.NewSet(t.Include...),
				},
			})
			if err != nil {
				return err
			}
			defer tagger.Close()

			pass := &annotate.TagPass{
				Predictor: tagger,
				Options: tags.Options{
					Order:      order,
					MaxTags:    t.MaxTags,
					Normalize:  t.Normalize,
					Shuffle:    t.Shuffle,
					KeepTokens: t.KeepTokens,
					Trigger:    t.Trigger,
				},
				Progress: progress.NewWriter(cmd.OutOrStdout()),
				Logger:   logger,
			}
			_, err = pass.Run(cmd.Context(), images)
			return err
		},
	}

	input.register(cmd)
	flags.register(cmd)
	return cmd
}
