package inference

import (
	"fmt"

	"github.com/menta2k/image-labeler/pkg/processing"
)

// Scorer runs a tagger network on one preprocessed image
type Scorer interface {
	// InputShape is the declared model input shape; dynamic dimensions are <= 0
	InputShape() []int64
	// Score returns one probability per vocabulary label
	Score(t processing.Tensor) ([]float32, error)
	Close() error
}

// ResolveLayout decides the tensor layout from a declared 4-D input shape
func ResolveLayout(shape []int64) (processing.Layout, error) {
	if len(shape) != 4 {
		return 0, fmt.Errorf("expected 4-D input shape, got %v", shape)
	}
	switch {
	case shape[3] == 3:
		return processing.ChannelsLast, nil
	case shape[1] == 3:
		return processing.ChannelsFirst, nil
	default:
		return 0, fmt.Errorf("cannot find a 3-channel axis in input shape %v", shape)
	}
}

// declaredSize returns the square spatial size fixed by the shape, or 0 if dynamic
func declaredSize(shape []int64, layout processing.Layout) int {
	h := shape[1]
	if layout == processing.ChannelsFirst {
		h = shape[2]
	}
	if h <= 0 {
		return 0
	}
	return int(h)
}
