package inference

import (
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-labeler/pkg/processing"
	"github.com/menta2k/image-labeler/pkg/types"
	"github.com/menta2k/image-labeler/pkg/vocab"
)

type fakeScorer struct {
	shape  []int64
	scores []float32
	last   processing.Tensor
	closed bool
}

func (f *fakeScorer) InputShape() []int64 { return f.shape }

func (f *fakeScorer) Score(t processing.Tensor) ([]float32, error) {
	f.last = t
	return f.scores, nil
}

func (f *fakeScorer) Close() error {
	f.closed = true
	return nil
}

func testVocab() *vocab.Vocabulary {
	v := &vocab.Vocabulary{}
	v.Add("general", types.CategoryRating)
	v.Add("1girl", types.CategoryGeneral)
	v.Add("blue_hair", types.CategoryGeneral)
	v.Add("masterpiece", types.CategoryGeneral)
	v.Add("hatsune_miku", types.CategoryCharacter)
	v.Add("red_eyes", types.CategoryGeneral)
	return v
}

func testSpec() types.ModelSpec {
	return types.ModelSpec{
		Name: "test-tagger",
		Backend: types.TaggerBackend{
			InputSize:    8,
			ChannelOrder: types.ChannelsBGR,
			ValueRange:   types.Range255,
		},
	}
}

func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	img := imaging.New(16, 8, color.NRGBA{10, 20, 30, 255})
	require.NoError(t, imaging.Save(img, path))
	return path
}

func TestResolveLayout(t *testing.T) {
	l, err := ResolveLayout([]int64{1, 448, 448, 3})
	require.NoError(t, err)
	assert.Equal(t, processing.ChannelsLast, l)

	l, err = ResolveLayout([]int64{1, 3, 448, 448})
	require.NoError(t, err)
	assert.Equal(t, processing.ChannelsFirst, l)

	_, err = ResolveLayout([]int64{1, 448, 448})
	assert.Error(t, err)
	_, err = ResolveLayout([]int64{1, 4, 448, 448})
	assert.Error(t, err)
}

func TestExtractThresholdAndExclusion(t *testing.T) {
	v := testVocab()
	scores := []float32{0.8, 0.9, 0.4, 0.95, 0.1, 0.2}
	opts := ExtractOptions{
		GeneralThreshold: 0.35,
		Exclude:          vocab.ExclusionSet(true),
	}

	got := Extract(scores, v, opts)
	require.Len(t, got, 2)
	assert.Equal(t, "1girl", got[0].Name)
	assert.Equal(t, "blue_hair", got[1].Name)
	assert.InDelta(t, 0.9, got[0].Score, 1e-6)
	assert.Equal(t, types.CategoryGeneral, got[0].Category)
}

func TestExtractCharacterThreshold(t *testing.T) {
	v := testVocab()
	scores := []float32{0, 0, 0, 0, 0.6, 0}

	got := Extract(scores, v, ExtractOptions{GeneralThreshold: 0.35, CharacterThreshold: 0.7})
	assert.Empty(t, got)

	// Zero falls back to the general threshold
	got = Extract(scores, v, ExtractOptions{GeneralThreshold: 0.35})
	require.Len(t, got, 1)
	assert.Equal(t, "hatsune_miku", got[0].Name)
	assert.Equal(t, types.CategoryCharacter, got[0].Category)
}

func TestExtractIncludeOverridesExclude(t *testing.T) {
	v := testVocab()
	scores := []float32{0, 0.9, 0, 0.95, 0, 0}
	opts := ExtractOptions{
		GeneralThreshold: 0.35,
		Exclude:          vocab.ExclusionSet(true),
		Include:          vocab.NewSet("Masterpiece"),
	}
	got := Extract(scores, v, opts)
	require.Len(t, got, 2)
	assert.Equal(t, "masterpiece", got[1].Name)
}

func TestExtractNeverReturnsRatings(t *testing.T) {
	v := testVocab()
	scores := []float32{0.99, 0, 0, 0, 0, 0}
	assert.Empty(t, Extract(scores, v, ExtractOptions{GeneralThreshold: 0.1}))

	ratings := Ratings(scores, v)
	assert.InDelta(t, 0.99, ratings["general"], 1e-6)
}

func TestNewTaggerResolvesContract(t *testing.T) {
	scorer := &fakeScorer{shape: []int64{1, 3, 32, 32}}
	tagger, err := NewTagger(testSpec(), scorer, testVocab(), ExtractOptions{GeneralThreshold: 0.35})
	require.NoError(t, err)

	assert.Equal(t, processing.ChannelsFirst, tagger.Layout())
	assert.Equal(t, 32, tagger.InputSize())
	require.NoError(t, tagger.Close())
	assert.True(t, scorer.closed)
}

func TestNewTaggerRejectsCaptioner(t *testing.T) {
	spec := types.ModelSpec{Name: "cap", Backend: types.CaptionerBackend{Model: "llava"}}
	_, err := NewTagger(spec, &fakeScorer{shape: []int64{1, 8, 8, 3}}, testVocab(), ExtractOptions{})
	assert.Error(t, err)
}

func TestPredict(t *testing.T) {
	dir := t.TempDir()
	path := writeImage(t, dir, "a.png")

	scorer := &fakeScorer{
		shape:  []int64{1, -1, -1, 3},
		scores: []float32{0.5, 0.9, 0.4, 0.95, 0.1, 0.2},
	}
	tagger, err := NewTagger(testSpec(), scorer, testVocab(), ExtractOptions{
		GeneralThreshold: 0.35,
		Exclude:          vocab.ExclusionSet(true),
	})
	require.NoError(t, err)

	pred, err := tagger.Predict(path)
	require.NoError(t, err)
	require.Len(t, pred.Tags, 2)
	assert.Equal(t, "1girl", pred.Tags[0].Name)
	assert.Contains(t, pred.Ratings, "general")

	// Dynamic spatial dims keep the declared input size
	assert.Equal(t, []int64{1, 8, 8, 3}, scorer.last.Shape())
}

func TestPredictShortScoreVector(t *testing.T) {
	dir := t.TempDir()
	path := writeImage(t, dir, "a.png")

	scorer := &fakeScorer{shape: []int64{1, 8, 8, 3}, scores: []float32{0.1}}
	tagger, err := NewTagger(testSpec(), scorer, testVocab(), ExtractOptions{GeneralThreshold: 0.35})
	require.NoError(t, err)

	_, err = tagger.Predict(path)
	assert.Error(t, err)
}

func TestPredictDecodeError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	tagger, err := NewTagger(testSpec(), &fakeScorer{shape: []int64{1, 8, 8, 3}}, testVocab(), ExtractOptions{})
	require.NoError(t, err)

	_, err = tagger.Predict(path)
	assert.True(t, errors.Is(err, types.ErrDecode))
}

func TestLoadMissingFiles(t *testing.T) {
	spec := ResolveSpec("convnext", t.TempDir())
	_, err := Load(spec, LoadOptions{})
	require.Error(t, err)

	var loadErr *types.BackendLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "wd-v1-4-convnext-tagger-v2", loadErr.Model)
	assert.ErrorIs(t, err, types.ErrBackendLoad)
}

func TestCatalogueLookup(t *testing.T) {
	m, ok := Lookup("legacy")
	require.True(t, ok)
	assert.Equal(t, "wd-v1-4-vit-tagger-v2", m.Key)

	m, ok = Lookup("SmilingWolf/wd-eva02-large-tagger-v3")
	require.True(t, ok)
	assert.Equal(t, 448, m.InputSize)

	_, ok = Lookup("nope")
	assert.False(t, ok)

	spec := ResolveSpec("moat", "/models")
	backend := spec.Backend.(types.TaggerBackend)
	assert.Equal(t, filepath.Join("/models", "wd-v1-4-moat-tagger-v2", "model.onnx"), backend.ModelPath)
	assert.Equal(t, types.ChannelsBGR, backend.ChannelOrder)
	assert.Contains(t, Keys(), "convnext")
}
