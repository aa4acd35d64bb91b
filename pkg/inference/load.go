package inference

import (
	"fmt"
	"os"

	"github.com/menta2k/image-labeler/pkg/types"
	"github.com/menta2k/image-labeler/pkg/vocab"
)

// LoadOptions configures Load
type LoadOptions struct {
	// RuntimeLibrary is the path to the onnxruntime shared library
	RuntimeLibrary string
	Extract        ExtractOptions
}

// Load resolves the model files of spec, opens an ONNX session and returns a
// ready Tagger. Every failure is reported as a *types.BackendLoadError.
func Load(spec types.ModelSpec, opts LoadOptions) (*Tagger, error) {
	fail := func(err error) (*Tagger, error) {
		return nil, &types.BackendLoadError{Model: spec.Name, Err: err}
	}

	backend, ok := spec.Backend.(types.TaggerBackend)
	if !ok {
		return fail(fmt.Errorf("backend kind %q is not a tagger", spec.Kind()))
	}
	for _, p := range []string{backend.ModelPath, backend.TagsPath} {
		if _, err := os.Stat(p); err != nil {
			return fail(fmt.Errorf("model file: %w", err))
		}
	}

	v, err := vocab.LoadFile(backend.TagsPath)
	if err != nil {
		return fail(err)
	}
	if err := InitRuntime(opts.RuntimeLibrary); err != nil {
		return fail(err)
	}
	scorer, err := NewONNXScorer(backend.ModelPath, v.Len())
	if err != nil {
		return fail(err)
	}
	tagger, err := NewTagger(spec, scorer, v, opts.Extract)
	if err != nil {
		scorer.Close()
		return fail(err)
	}
	return tagger, nil
}
