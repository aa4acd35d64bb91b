package inference

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/menta2k/image-labeler/pkg/types"
)

const (
	modelFile = "model.onnx"
	tagsFile  = "selected_tags.csv"
)

// ModelInfo describes a known tagger model and its declared input contract
type ModelInfo struct {
	Key     string
	RepoID  string
	Label   string
	SizeMB  int
	Aliases []string
	// Input contract of the published ONNX export
	InputSize    int
	ChannelOrder types.ChannelOrder
	ValueRange   types.ValueRange
}

// Catalogue lists the supported WD tagger exports. All of them take 448px
// BGR input with raw 0-255 values.
var Catalogue = []ModelInfo{
	{
		Key: "wd-v1-4-convnext-tagger-v2", RepoID: "SmilingWolf/wd-v1-4-convnext-tagger-v2",
		Label: "WD v1.4 ConvNeXt (Recommended)", SizeMB: 255, Aliases: []string{"convnext"},
		InputSize: 448, ChannelOrder: types.ChannelsBGR, ValueRange: types.Range255,
	},
	{
		Key: "wd-v1-4-swinv2-tagger-v2", RepoID: "SmilingWolf/wd-v1-4-swinv2-tagger-v2",
		Label: "WD v1.4 SwinV2", SizeMB: 447, Aliases: []string{"swinv2"},
		InputSize: 448, ChannelOrder: types.ChannelsBGR, ValueRange: types.Range255,
	},
	{
		Key: "wd-v1-4-moat-tagger-v2", RepoID: "SmilingWolf/wd-v1-4-moat-tagger-v2",
		Label: "WD v1.4 MoAT", SizeMB: 344, Aliases: []string{"moat"},
		InputSize: 448, ChannelOrder: types.ChannelsBGR, ValueRange: types.Range255,
	},
	{
		Key: "wd-v1-4-vit-tagger-v2", RepoID: "SmilingWolf/wd-v1-4-vit-tagger-v2",
		Label: "WD v1.4 ViT", SizeMB: 312, Aliases: []string{"vit", "legacy"},
		InputSize: 448, ChannelOrder: types.ChannelsBGR, ValueRange: types.Range255,
	},
	{
		Key: "wd-eva02-large-tagger-v3", RepoID: "SmilingWolf/wd-eva02-large-tagger-v3",
		Label: "WD EVA02-Large v3 (Best Quality)", SizeMB: 921, Aliases: []string{"eva02-large"},
		InputSize: 448, ChannelOrder: types.ChannelsBGR, ValueRange: types.Range255,
	},
}

// Lookup finds a catalogue entry by key, alias, or repository id
func Lookup(name string) (ModelInfo, bool) {
	name = strings.TrimSpace(name)
	for _, m := range Catalogue {
		if strings.EqualFold(name, m.Key) || strings.EqualFold(name, m.RepoID) {
			return m, true
		}
		for _, a := range m.Aliases {
			if strings.EqualFold(name, a) {
				return m, true
			}
		}
	}
	return ModelInfo{}, false
}

// Keys returns every accepted model name, sorted
func Keys() []string {
	var keys []string
	for _, m := range Catalogue {
		keys = append(keys, m.Key)
		keys = append(keys, m.Aliases...)
	}
	sort.Strings(keys)
	return keys
}

// ResolveSpec builds the ModelSpec for a catalogue model whose files live in
// modelDir/<key>/. Unknown names are treated as a directory holding a model
// with the default WD contract.
func ResolveSpec(name, modelDir string) types.ModelSpec {
	info, ok := Lookup(name)
	if !ok {
		dir := name
		if !filepath.IsAbs(dir) && modelDir != "" {
			dir = filepath.Join(modelDir, name)
		}
		return types.ModelSpec{
			Name:       name,
			ResourceID: dir,
			Backend: types.TaggerBackend{
				InputSize:    448,
				ChannelOrder: types.ChannelsBGR,
				ValueRange:   types.Range255,
				ModelPath:    filepath.Join(dir, modelFile),
				TagsPath:     filepath.Join(dir, tagsFile),
			},
		}
	}
	dir := filepath.Join(modelDir, info.Key)
	return types.ModelSpec{
		Name:       info.Key,
		ResourceID: info.RepoID,
		Backend: types.TaggerBackend{
			InputSize:    info.InputSize,
			ChannelOrder: info.ChannelOrder,
			ValueRange:   info.ValueRange,
			ModelPath:    filepath.Join(dir, modelFile),
			TagsPath:     filepath.Join(dir, tagsFile),
		},
	}
}

func (m ModelInfo) String() string {
	return fmt.Sprintf("%s (%s)", m.Key, m.RepoID)
}
