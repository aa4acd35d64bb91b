package merge

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-labeler/pkg/tags"
	"github.com/menta2k/image-labeler/pkg/types"
)

func newEngine(t *testing.T, cfg types.MergeConfig, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, opts...)
	require.NoError(t, err)
	return e
}

func TestMergeScenario(t *testing.T) {
	e := newEngine(t, types.MergeConfig{Format: types.MergeTriggerTagsCaption, Trigger: "mychar"})
	assert.Equal(t, "mychar, 1girl, solo, a girl standing", e.Merge("1girl, solo", "a girl standing"))
}

func TestMergeScenarioMaxLength(t *testing.T) {
	e := newEngine(t, types.MergeConfig{Format: types.MergeTriggerTagsCaption, Trigger: "mychar", MaxLength: 20})
	assert.Equal(t, "mychar, 1girl", e.Merge("1girl, solo", "a girl standing"))
}

func TestMergeFormats(t *testing.T) {
	tests := []struct {
		format  types.MergeFormat
		caption string
		want    string
	}{
		{types.MergeTagsOnly, "a cat", "1girl, solo"},
		{types.MergeTriggerTagsCaption, "a cat", "1girl, solo, a cat"},
		{types.MergeTriggerCaptionTags, "a cat", "a cat, 1girl, solo"},
		{types.MergeTriggerCaptionTags, "   ", "1girl, solo"},
		{types.MergeTriggerTagsCaption, "", "1girl, solo"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%q", tt.format, tt.caption), func(t *testing.T) {
			e := newEngine(t, types.MergeConfig{Format: tt.format})
			assert.Equal(t, tt.want, e.Merge(" 1girl ,, solo,", tt.caption))
		})
	}
}

func TestMergeMissingPassOutput(t *testing.T) {
	e := newEngine(t, types.MergeConfig{Format: types.MergeTriggerTagsCaption, Trigger: "tok"})
	assert.Equal(t, "tok, a dog", e.Merge("", "a dog"))
	assert.Equal(t, "tok", e.Merge("", ""))
}

func TestMergeResults(t *testing.T) {
	e := newEngine(t, types.MergeConfig{Format: types.MergeTriggerCaptionTags, Trigger: "mychar"})
	tagged := types.AnnotationResult{Stem: "a", Tags: []string{"1girl", "solo"}}
	captioned := types.AnnotationResult{Stem: "a", Caption: " a girl standing "}

	assert.Equal(t, "mychar, a girl standing, 1girl, solo", e.MergeResults(tagged, captioned))
	assert.Equal(t, "mychar, 1girl, solo", e.MergeResults(tagged, types.AnnotationResult{}))
	assert.Equal(t, "mychar", e.MergeResults(types.AnnotationResult{}, types.AnnotationResult{}))
}

func TestMergeDedupeKeepsFirstCasing(t *testing.T) {
	e := newEngine(t, types.MergeConfig{Format: types.MergeTriggerTagsCaption, Dedupe: true, Trigger: "Solo"})
	got := e.Merge("Solo, 1girl, solo, SOLO, smile", "smile")
	// Trigger is never deduped against
	assert.Equal(t, "Solo, Solo, 1girl, smile", got)
}

func TestDedupeInvariant(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	words := []string{"cat", "Cat", "CAT", "dog", "Dog", "bird", "BIRD"}
	for i := 0; i < 200; i++ {
		n := rng.IntN(10)
		seq := make([]string, n)
		for j := range seq {
			seq[j] = words[rng.IntN(len(words))]
		}
		out := Dedupe(seq)

		firsts := map[string]string{}
		for _, s := range seq {
			k := strings.ToLower(s)
			if _, ok := firsts[k]; !ok {
				firsts[k] = s
			}
		}
		seen := map[string]bool{}
		for _, s := range out {
			k := strings.ToLower(s)
			assert.False(t, seen[k], "duplicate %q in %v", s, out)
			seen[k] = true
			assert.Equal(t, firsts[k], s)
		}
	}
}

func TestDedupeLowercasesWithoutFolding(t *testing.T) {
	assert.Equal(t, []string{"Straße", "STRASSE", "Ärger"},
		Dedupe([]string{"Straße", "STRASSE", "straße", "Ärger", "ÄRGER"}))
}

func TestMergeShuffleKeepsPrefix(t *testing.T) {
	reverse := func(s []string) []string {
		for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
			s[i], s[j] = s[j], s[i]
		}
		return s
	}
	cfg := types.MergeConfig{Format: types.MergeTagsOnly, Shuffle: true, KeepTokens: 1, Trigger: "trg"}
	e := newEngine(t, cfg, WithShuffler(reverse))
	assert.Equal(t, "trg, a, d, c, b", e.Merge("a, b, c, d", ""))

	cfg.KeepTokens = 4
	e = newEngine(t, cfg, WithShuffler(reverse))
	assert.Equal(t, "trg, a, b, c, d", e.Merge("a, b, c, d", ""))
}

func TestMergeIdentityShuffleIsStable(t *testing.T) {
	cfg := types.MergeConfig{Format: types.MergeTagsOnly, Shuffle: true}
	e := newEngine(t, cfg, WithShuffler(tags.Identity))
	assert.Equal(t, "a, b, c", e.Merge("a,b,c", ""))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 20))
	assert.Equal(t, "unlimited, text", Truncate("unlimited, text", 0))
	assert.Equal(t, "nocommasatall", Truncate("nocommasatallhere", 13))
	assert.Equal(t, "a,b", Truncate("a,b,c", 4))
	assert.Equal(t, "ünï, cödé", Truncate("ünï, cödé, wörds", 12))
}

func TestTruncateInvariant(t *testing.T) {
	entries := []string{"mychar", "1girl", "solo", "long hair", "a girl standing in a field", "x"}
	full := strings.Join(entries, separator)
	for l := 1; l <= utf8.RuneCountInString(full)+2; l++ {
		out := Truncate(full, l)
		assert.LessOrEqual(t, utf8.RuneCountInString(out), l, "max_length %d", l)

		prefix := string([]rune(full)[:min(l, utf8.RuneCountInString(full))])
		if !strings.Contains(prefix, ",") || out == full {
			continue
		}
		// Output ends exactly at an entry boundary
		assert.True(t, strings.HasPrefix(full, out+separator), "max_length %d gave %q", l, out)
	}
}

func TestNewEngineValidates(t *testing.T) {
	_, err := NewEngine(types.MergeConfig{Format: "bogus"})
	assert.Error(t, err)
	_, err = NewEngine(types.MergeConfig{KeepTokens: -1})
	assert.Error(t, err)

	e, err := NewEngine(types.MergeConfig{})
	require.NoError(t, err)
	assert.Equal(t, types.MergeTriggerTagsCaption, e.Config().Format)
}
