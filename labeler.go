// Package labeler generates training labels for image datasets.
//
// Labels come from two kinds of annotator: a WD14-style ONNX tagger that
// scores a fixed tag vocabulary, and a vision-language captioner. The hybrid
// mode runs both and merges them into one comma separated label per image.
//
// Basic usage:
//
//	package main
//
//	import (
//		"fmt"
//		"log"
//
//		labeler "github.com/menta2k/image-labeler"
//		"github.com/menta2k/image-labeler/pkg/inference"
//		"github.com/menta2k/image-labeler/pkg/tags"
//		"github.com/menta2k/image-labeler/pkg/types"
//	)
//
//	func main() {
//		tagger, err := labeler.LoadTagger("convnext", "models", "", inference.ExtractOptions{
//			GeneralThreshold: 0.35,
//		})
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer tagger.Close()
//
//		tagText, err := labeler.TagImage(tagger, "photo.png", tags.Options{MaxTags: 30})
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		label, err := labeler.MergeLabel(types.MergeConfig{
//			Format:  types.MergeTriggerTagsCaption,
//			Trigger: "mychar",
//		}, tagText, "a girl standing in a field")
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(label)
//	}
//
// The package is a thin facade over:
//
//  1. Inference (pkg/inference): model catalogue, ONNX scoring, tag extraction
//  2. Tags (pkg/tags): ordering, truncation and shuffling of extracted tags
//  3. Captioner (pkg/captioner): prompts and cleanup for vision-language models
//  4. Merge (pkg/merge): composition of tagger and captioner output
//  5. Orchestrator (pkg/orchestrator): the two-pass hybrid job
package labeler

import (
	"fmt"

	"github.com/menta2k/image-labeler/pkg/annotate"
	"github.com/menta2k/image-labeler/pkg/inference"
	"github.com/menta2k/image-labeler/pkg/merge"
	"github.com/menta2k/image-labeler/pkg/tags"
	"github.com/menta2k/image-labeler/pkg/types"
)

// Version of the labeler library
const Version = "1.0.0"

// LoadTagger loads a catalogue model (by key or alias) from modelDir, or a
// model directory when the name is not in the catalogue.
func LoadTagger(model, modelDir, runtimeLibrary string, extract inference.ExtractOptions) (*inference.Tagger, error) {
	return inference.Load(inference.ResolveSpec(model, modelDir), inference.LoadOptions{
		RuntimeLibrary: runtimeLibrary,
		Extract:        extract,
	})
}

// TagImage scores one image and returns its formatted tag label
func TagImage(p annotate.Predictor, path string, opts tags.Options) (string, error) {
	pred, err := p.Predict(path)
	if err != nil {
		return "", err
	}
	return tags.Format(tags.Process(pred.Tags, opts, nil)), nil
}

// MergeLabel composes one hybrid label from raw tagger text and a caption
func MergeLabel(cfg types.MergeConfig, tagText, caption string) (string, error) {
	engine, err := merge.NewEngine(cfg)
	if err != nil {
		return "", fmt.Errorf("merge config: %w", err)
	}
	return engine.Merge(tagText, caption), nil
}
