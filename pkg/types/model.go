package types

// BackendKind tags which annotator contract a model satisfies
type BackendKind string

const (
	BackendTagger    BackendKind = "tagger"
	BackendCaptioner BackendKind = "captioner"
)

// ChannelOrder is the pixel channel order a tagger expects
type ChannelOrder int

const (
	ChannelsRGB ChannelOrder = iota
	ChannelsBGR
)

// ValueRange is the numeric range of tensor values a tagger expects
type ValueRange int

const (
	// Range255 keeps raw 8-bit intensities as floats in [0,255]
	Range255 ValueRange = iota
	// RangeUnit scales intensities into [0,1]
	RangeUnit
)

// Backend is the closed set of per-kind model contracts.
// Only TaggerBackend and CaptionerBackend implement it.
type Backend interface {
	Kind() BackendKind
	isBackend()
}

// TaggerBackend declares the preprocessing contract of an image tagger
type TaggerBackend struct {
	InputSize    int
	ChannelOrder ChannelOrder
	ValueRange   ValueRange
	ModelPath    string
	TagsPath     string
}

func (TaggerBackend) Kind() BackendKind { return BackendTagger }
func (TaggerBackend) isBackend()        {}

// CaptionerBackend declares how images are handed to a vision-language model
type CaptionerBackend struct {
	Provider string
	URL      string
	Model    string
	// MaxSide bounds the long edge of the image sent to the model, 0 keeps the original
	MaxSide int
	Format  string
	Quality int
}

func (CaptionerBackend) Kind() BackendKind { return BackendCaptioner }
func (CaptionerBackend) isBackend()        {}

// ModelSpec identifies a loaded annotator backend
type ModelSpec struct {
	Name       string
	ResourceID string
	Backend    Backend
}

// Kind reports the backend kind, or "" when no backend is set
func (m ModelSpec) Kind() BackendKind {
	if m.Backend == nil {
		return ""
	}
	return m.Backend.Kind()
}
