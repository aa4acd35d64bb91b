package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/menta2k/image-labeler/internal/config"
	"github.com/menta2k/image-labeler/pkg/merge"
	"github.com/menta2k/image-labeler/pkg/orchestrator"
	"github.com/menta2k/image-labeler/pkg/progress"
)

type hybridFlags struct {
	mergeFormat        string
	dedupe             bool
	shuffle            bool
	keepTokens         int
	trigger            string
	maxLength          int
	maxTags            int
	taggerModel        string
	captionerModel     string
	provider           string
	url                string
	threshold          float64
	characterThreshold float64
	exclude            []string
	include            []string
	order              string
	normalize          bool
	style              string
	avoidGeneric       bool
}

func (f *hybridFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.mergeFormat, "merge-format", "", "Label layout (tags_only, trigger_tags_caption, trigger_caption_tags)")
	flags.BoolVar(&f.dedupe, "dedupe", false, "Drop repeated entries, case-insensitively")
	flags.BoolVar(&f.shuffle, "shuffle", false, "Shuffle entries after the kept prefix")
	flags.IntVar(&f.keepTokens, "keep-tokens", 0, "Leading entries kept in place when shuffling")
	flags.StringVar(&f.trigger, "trigger", "", "Trigger word prepended to every label")
	flags.IntVar(&f.maxLength, "max-length", 0, "Maximum label length in characters (0 for unlimited)")
	flags.IntVar(&f.maxTags, "max-tags", 0, "Maximum tags from the tagger pass")
	flags.StringVar(&f.taggerModel, "tagger-model", "", "Tagger model key, alias or directory")
	flags.StringVar(&f.captionerModel, "captioner-model", "", "Vision model name for the caption pass")
	flags.StringVar(&f.provider, "provider", "", "Vision model server (ollama, llamacpp)")
	flags.StringVar(&f.url, "url", "", "Vision model server URL")
	flags.Float64Var(&f.threshold, "threshold", 0, "Minimum confidence for general tags")
	flags.Float64Var(&f.characterThreshold, "character-threshold", 0, "Minimum confidence for character tags")
	flags.StringSliceVar(&f.exclude, "exclude", nil, "Tags to drop, comma separated")
	flags.StringSliceVar(&f.include, "include", nil, "Tags never dropped by exclusions, comma separated")
	flags.StringVar(&f.order, "order", "", "Tag order (confidence, alphabetical, model)")
	flags.BoolVar(&f.normalize, "normalize", false, "Lowercase tags and join words with underscores")
	flags.StringVar(&f.style, "style", "", "Caption style (short, medium, detailed)")
	flags.BoolVar(&f.avoidGeneric, "avoid-generic", false, "Strip leading phrases such as \"a picture of\"")
}

// apply overrides h with every merge flag set on the command line
func (f *hybridFlags) apply(cmd *cobra.Command, h *config.Hybrid) {
	changed := cmd.Flags().Changed
	if changed("merge-format") {
		h.MergeFormat = strings.ToLower(strings.TrimSpace(f.mergeFormat))
	}
	if changed("dedupe") {
		h.Dedupe = f.dedupe
	}
	if changed("shuffle") {
		h.Shuffle = f.shuffle
	}
	if changed("keep-tokens") {
		h.KeepTokens = f.keepTokens
	}
	if changed("trigger") {
		h.Trigger = strings.TrimSpace(f.trigger)
	}
	if changed("max-length") {
		h.MaxLength = f.maxLength
	}
	if changed("max-tags") {
		h.MaxTags = f.maxTags
	}
}

// childArgs holds what every child invocation inherits from the parent
type childArgs struct {
	exe        string
	configPath string
	logLevel   string
}

func (c childArgs) base(sub string, dir string) []string {
	args := []string{sub, "--input-dir", dir, "--log-format", "console"}
	if c.configPath != "" {
		args = append(args, "--config", c.configPath)
	}
	if c.logLevel != "" {
		args = append(args, "--log-level", c.logLevel)
	}
	return args
}

// hybridPasses builds the two child invocations. Children never add the
// trigger or shuffle; the merge owns both.
func hybridPasses(c childArgs, h config.Hybrid, f *hybridFlags, cmd *cobra.Command) (orchestrator.Pass, orchestrator.Pass) {
	changed := cmd.Flags().Changed
	tagger := orchestrator.Pass{
		Name:  "Tagger",
		Label: "Tagging",
		Command: func(dir string) orchestrator.Command {
			args := append(c.base("tag", dir), "--trigger=", "--shuffle=false", "--max-tags", strconv.Itoa(h.MaxTags))
			if changed("tagger-model") {
				args = append(args, "--model", f.taggerModel)
			}
			if changed("threshold") {
				args = append(args, "--threshold", strconv.FormatFloat(f.threshold, 'g', -1, 64))
			}
			if changed("character-threshold") {
				args = append(args, "--character-threshold", strconv.FormatFloat(f.characterThreshold, 'g', -1, 64))
			}
			if changed("exclude") {
				args = append(args, "--exclude="+strings.Join(f.exclude, ","))
			}
			if changed("include") {
				args = append(args, "--include="+strings.Join(f.include, ","))
			}
			if changed("order") {
				args = append(args, "--order", f.order)
			}
			if changed("normalize") {
				args = append(args, "--normalize="+strconv.FormatBool(f.normalize))
			}
			return orchestrator.Command{Path: c.exe, Args: args}
		},
	}
	captioner := orchestrator.Pass{
		Name:  "Captioner",
		Label: "Captioning",
		Command: func(dir string) orchestrator.Command {
			args := append(c.base("caption", dir), "--trigger=", "--format", "sentence")
			if changed("captioner-model") {
				args = append(args, "--model", f.captionerModel)
			}
			if changed("provider") {
				args = append(args, "--provider", f.provider)
			}
			if changed("url") {
				args = append(args, "--url", f.url)
			}
			if changed("style") {
				args = append(args, "--style", f.style)
			}
			if changed("avoid-generic") {
				args = append(args, "--avoid-generic="+strconv.FormatBool(f.avoidGeneric))
			}
			return orchestrator.Command{Path: c.exe, Args: args}
		},
	}
	return tagger, captioner
}

func newHybridCommand(ctx *commandContext) *cobra.Command {
	var input inputFlags
	var flags hybridFlags

	cmd := &cobra.Command{
		Use:   "hybrid",
		Short: "Tag and caption images, then merge both into one label",
		Long: "Runs the tag and caption commands as child processes over private copies\n" +
			"of the input images and merges their output into one label per image.\n" +
			"Labels in the input directory are only written when both passes succeed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			h := cfg.Hybrid
			flags.apply(cmd, &h)
			merged := *cfg
			merged.Hybrid = h
			engine, err := merge.NewEngine(merged.MergeConfig())
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}

			images, dir, err := input.resolve()
			if err != nil {
				return err
			}

			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("locate labeler executable: %w", err)
			}
			child := childArgs{exe: exe, logLevel: strings.TrimSpace(*ctx.logLevel)}
			if child.logLevel == "" {
				child.logLevel = cfg.Logging.Level
			}
			if ctx.configExists {
				child.configPath = ctx.configPath
			}
			tagger, captioner := hybridPasses(child, h, &flags, cmd)

			job, err := orchestrator.NewJob(orchestrator.Options{
				InputDir:  dir,
				Images:    images,
				Tagger:    tagger,
				Captioner: captioner,
				Merge:     engine,
				Progress:  progress.NewWriter(cmd.OutOrStdout()),
				Logger:    logger,
			})
			if err != nil {
				return err
			}
			if _, err := job.Run(cmd.Context()); err != nil {
				return err
			}
			return nil
		},
	}

	input.register(cmd)
	flags.register(cmd)
	return cmd
}
