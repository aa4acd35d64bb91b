package inference

import (
	"fmt"

	"github.com/menta2k/image-labeler/pkg/processing"
	"github.com/menta2k/image-labeler/pkg/types"
	"github.com/menta2k/image-labeler/pkg/vocab"
)

const (
	DefaultGeneralThreshold   = 0.35
	DefaultCharacterThreshold = 0.7
)

// ExtractOptions controls which scored labels become candidates
type ExtractOptions struct {
	GeneralThreshold float64
	// CharacterThreshold falls back to GeneralThreshold when zero
	CharacterThreshold float64
	Exclude            vocab.Set
	// Include lists labels the exclusion set never removes
	Include vocab.Set
}

// Tagger couples a loaded scorer with its vocabulary and declared contract
type Tagger struct {
	spec      types.ModelSpec
	contract  types.TaggerBackend
	scorer    Scorer
	vocab     *vocab.Vocabulary
	layout    processing.Layout
	processor *processing.Processor
	opts      ExtractOptions
}

// NewTagger validates the scorer against the vocabulary and resolves the input
// layout once from the declared input shape.
func NewTagger(spec types.ModelSpec, scorer Scorer, v *vocab.Vocabulary, opts ExtractOptions) (*Tagger, error) {
	contract, ok := spec.Backend.(types.TaggerBackend)
	if !ok {
		return nil, fmt.Errorf("model %s is not a tagger", spec.Name)
	}
	if v == nil || v.Len() == 0 {
		return nil, fmt.Errorf("model %s has an empty vocabulary", spec.Name)
	}
	shape := scorer.InputShape()
	layout, err := ResolveLayout(shape)
	if err != nil {
		return nil, err
	}
	if size := declaredSize(shape, layout); size > 0 {
		contract.InputSize = size
	}
	if contract.InputSize <= 0 {
		return nil, fmt.Errorf("model %s declares no input size", spec.Name)
	}
	if opts.CharacterThreshold == 0 {
		opts.CharacterThreshold = opts.GeneralThreshold
	}
	return &Tagger{
		spec:      spec,
		contract:  contract,
		scorer:    scorer,
		vocab:     v,
		layout:    layout,
		processor: processing.NewProcessor(),
		opts:      opts,
	}, nil
}

// Spec returns the model this tagger was built from
func (t *Tagger) Spec() types.ModelSpec { return t.spec }

// Layout returns the tensor layout resolved at load time
func (t *Tagger) Layout() processing.Layout { return t.layout }

// InputSize returns the square input edge length
func (t *Tagger) InputSize() int { return t.contract.InputSize }

// Close releases the scorer
func (t *Tagger) Close() error {
	return t.scorer.Close()
}

// Scores preprocesses the image at path and returns the dense score vector
func (t *Tagger) Scores(path string) ([]float32, error) {
	tensor, err := t.processor.Preprocess(path, t.contract)
	if err != nil {
		return nil, err
	}
	tensor, err = tensor.WithLayout(t.layout)
	if err != nil {
		return nil, err
	}
	scores, err := t.scorer.Score(tensor)
	if err != nil {
		return nil, fmt.Errorf("inference %s: %w", path, err)
	}
	if len(scores) < t.vocab.Len() {
		return nil, fmt.Errorf("inference %s: %d scores for %d labels", path, len(scores), t.vocab.Len())
	}
	return scores, nil
}

// Prediction is the extracted output of one image
type Prediction struct {
	Tags []types.TagRecord
	// Ratings are computed for diagnostics and never become label text
	Ratings map[string]float64
}

// Predict returns the candidate tags for the image at path
func (t *Tagger) Predict(path string) (Prediction, error) {
	scores, err := t.Scores(path)
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{
		Tags:    Extract(scores, t.vocab, t.opts),
		Ratings: Ratings(scores, t.vocab),
	}, nil
}

// Extract keeps general and character labels at or above their thresholds,
// drops excluded labels, and returns the survivors in vocabulary order.
// Rating labels are never returned.
func Extract(scores []float32, v *vocab.Vocabulary, opts ExtractOptions) []types.TagRecord {
	charThreshold := opts.CharacterThreshold
	if charThreshold == 0 {
		charThreshold = opts.GeneralThreshold
	}

	keep := func(idx int) bool {
		name := v.Names[idx]
		if opts.Exclude.Contains(name) && !opts.Include.Contains(name) {
			return false
		}
		return true
	}

	var out []types.TagRecord
	g, c := v.General, v.Character
	// Merge both index lists so the result stays in vocabulary order
	for len(g) > 0 || len(c) > 0 {
		var idx int
		var threshold float64
		if len(c) == 0 || (len(g) > 0 && g[0] < c[0]) {
			idx, threshold, g = g[0], opts.GeneralThreshold, g[1:]
		} else {
			idx, threshold, c = c[0], charThreshold, c[1:]
		}
		if idx >= len(scores) {
			continue
		}
		score := float64(scores[idx])
		if score < threshold || !keep(idx) {
			continue
		}
		out = append(out, types.TagRecord{
			Name:     v.Names[idx],
			Category: v.Categories[idx],
			Score:    score,
			Index:    idx,
		})
	}
	return out
}

// Ratings returns the rating label scores. They are informational only.
func Ratings(scores []float32, v *vocab.Vocabulary) map[string]float64 {
	out := make(map[string]float64, len(v.Rating))
	for _, idx := range v.Rating {
		if idx < len(scores) {
			out[v.Names[idx]] = float64(scores[idx])
		}
	}
	return out
}
