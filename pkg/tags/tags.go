// Package tags turns extracted tagger records into the final ordered tag list.
package tags

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/menta2k/image-labeler/pkg/types"
	"github.com/menta2k/image-labeler/pkg/vocab"
)

// Order selects how candidate tags are sorted before truncation
type Order string

const (
	OrderConfidence   Order = "confidence"
	OrderAlphabetical Order = "alphabetical"
	// OrderModel keeps vocabulary order
	OrderModel Order = "model"
)

// ParseOrder accepts the order names used by the CLI and config file
func ParseOrder(s string) (Order, error) {
	switch Order(strings.ToLower(strings.TrimSpace(s))) {
	case "", OrderConfidence:
		return OrderConfidence, nil
	case OrderAlphabetical, "alpha":
		return OrderAlphabetical, nil
	case OrderModel, "vocabulary":
		return OrderModel, nil
	default:
		return "", fmt.Errorf("unknown tag order %q", s)
	}
}

// Options controls post-processing of one image's tags
type Options struct {
	Order Order
	// MaxTags keeps the first N tags after ordering, <= 0 keeps all
	MaxTags   int
	Normalize bool
	Shuffle   bool
	// KeepTokens pins the first N tags in place when shuffling
	KeepTokens int
	// Trigger is prepended after shuffling and never counts toward MaxTags
	Trigger string
}

// Shuffler permutes a slice in place and returns it
type Shuffler func([]string) []string

// RandomShuffler shuffles with math/rand/v2
func RandomShuffler(s []string) []string {
	rand.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
	return s
}

// Identity leaves the slice unchanged
func Identity(s []string) []string { return s }

// ShuffleTail shuffles everything after the first keep items. The prefix is
// never moved. A nil shuffler uses RandomShuffler.
func ShuffleTail(seq []string, keep int, shuffle Shuffler) []string {
	if keep < 0 {
		keep = 0
	}
	if len(seq) <= keep {
		return seq
	}
	if shuffle == nil {
		shuffle = RandomShuffler
	}
	tail := append([]string(nil), seq[keep:]...)
	tail = shuffle(tail)
	out := make([]string, 0, len(seq))
	out = append(out, seq[:keep]...)
	return append(out, tail...)
}

// Process orders, truncates, normalizes, shuffles and prefixes the trigger
func Process(records []types.TagRecord, opts Options, shuffle Shuffler) []string {
	ordered := append([]types.TagRecord(nil), records...)
	switch opts.Order {
	case OrderAlphabetical:
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })
	case OrderModel:
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })
	default:
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Score > ordered[j].Score })
	}
	if opts.MaxTags > 0 && len(ordered) > opts.MaxTags {
		ordered = ordered[:opts.MaxTags]
	}

	names := make([]string, 0, len(ordered)+1)
	for _, r := range ordered {
		name := r.Name
		if opts.Normalize {
			name = vocab.Normalize(name)
		}
		names = append(names, name)
	}

	if opts.Shuffle {
		names = ShuffleTail(names, opts.KeepTokens, shuffle)
	}
	if trigger := strings.TrimSpace(opts.Trigger); trigger != "" {
		names = append([]string{trigger}, names...)
	}
	return names
}

// Format joins tags with the label separator
func Format(names []string) string {
	return strings.Join(names, ", ")
}
