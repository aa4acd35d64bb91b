package tags

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-labeler/pkg/inference"
	"github.com/menta2k/image-labeler/pkg/types"
	"github.com/menta2k/image-labeler/pkg/vocab"
)

func records() []types.TagRecord {
	return []types.TagRecord{
		{Name: "1girl", Score: 0.9, Index: 3},
		{Name: "blue_hair", Score: 0.4, Index: 7},
		{Name: "Long Hair", Score: 0.6, Index: 5},
		{Name: "solo", Score: 0.6, Index: 1},
	}
}

func reverse(s []string) []string {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
	return s
}

func TestProcessOrders(t *testing.T) {
	got := Process(records(), Options{Order: OrderConfidence}, nil)
	// Ties keep input order
	assert.Equal(t, []string{"1girl", "Long Hair", "solo", "blue_hair"}, got)

	got = Process(records(), Options{Order: OrderAlphabetical}, nil)
	assert.Equal(t, []string{"1girl", "Long Hair", "blue_hair", "solo"}, got)

	got = Process(records(), Options{Order: OrderModel}, nil)
	assert.Equal(t, []string{"solo", "1girl", "Long Hair", "blue_hair"}, got)
}

func TestProcessScenario(t *testing.T) {
	in := []types.TagRecord{
		{Name: "1girl", Score: 0.9, Index: 0},
		{Name: "blue_hair", Score: 0.4, Index: 1},
	}
	got := Process(in, Options{Order: OrderConfidence}, nil)
	assert.Equal(t, "1girl, blue_hair", Format(got))
}

func TestExtractThroughFormatScenario(t *testing.T) {
	v := &vocab.Vocabulary{}
	v.Add("1girl", types.CategoryGeneral)
	v.Add("blue_hair", types.CategoryGeneral)
	v.Add("masterpiece", types.CategoryGeneral)
	scores := []float32{0.9, 0.4, 0.95}

	recs := inference.Extract(scores, v, inference.ExtractOptions{
		GeneralThreshold: 0.35,
		Exclude:          vocab.ExclusionSet(true),
	})
	assert.Equal(t, "1girl, blue_hair", Format(Process(recs, Options{Order: OrderConfidence}, nil)))

	recs = inference.Extract(scores, v, inference.ExtractOptions{GeneralThreshold: 0.35})
	assert.Equal(t, "masterpiece, 1girl, blue_hair", Format(Process(recs, Options{Order: OrderConfidence}, nil)))
}

func TestProcessMaxTagsExcludesTrigger(t *testing.T) {
	got := Process(records(), Options{Order: OrderConfidence, MaxTags: 2, Trigger: "mychar"}, nil)
	assert.Equal(t, []string{"mychar", "1girl", "Long Hair"}, got)
}

func TestProcessNormalize(t *testing.T) {
	got := Process(records(), Options{Order: OrderModel, Normalize: true}, nil)
	assert.Equal(t, []string{"solo", "1girl", "long_hair", "blue_hair"}, got)
}

func TestProcessShuffleKeepsPrefixAndTriggerFirst(t *testing.T) {
	opts := Options{Order: OrderConfidence, Shuffle: true, KeepTokens: 1, Trigger: "mychar"}
	got := Process(records(), opts, reverse)
	assert.Equal(t, []string{"mychar", "1girl", "blue_hair", "solo", "Long Hair"}, got)
}

func TestProcessIdempotentWithoutShuffle(t *testing.T) {
	opts := Options{Order: OrderConfidence, MaxTags: 3, Normalize: true, Trigger: "x"}
	a := Format(Process(records(), opts, nil))
	b := Format(Process(records(), opts, nil))
	assert.Equal(t, a, b)
}

func TestShuffleTailKeepPrefixProperty(t *testing.T) {
	seq := []string{"a", "b", "c", "d", "e", "f", "g"}
	rng := rand.New(rand.NewPCG(1, 2))
	seeded := func(s []string) []string {
		rng.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
		return s
	}
	for k := 0; k <= len(seq)+1; k++ {
		out := ShuffleTail(seq, k, seeded)
		require.Len(t, out, len(seq))
		n := min(k, len(seq))
		assert.Equal(t, seq[:n], out[:n], "keep=%d", k)
		assert.ElementsMatch(t, seq, out)
	}
	// Input is never mutated
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g"}, seq)
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, OrderConfidence, o)

	o, err = ParseOrder("Alphabetical")
	require.NoError(t, err)
	assert.Equal(t, OrderAlphabetical, o)

	_, err = ParseOrder("random")
	assert.Error(t, err)
}
