package processing

import "fmt"

// Layout is the memory order of a single-image tensor
type Layout int

const (
	// ChannelsLast is NHWC
	ChannelsLast Layout = iota
	// ChannelsFirst is NCHW
	ChannelsFirst
)

func (l Layout) String() string {
	if l == ChannelsFirst {
		return "NCHW"
	}
	return "NHWC"
}

// Tensor is a dense float32 image tensor with an implicit batch size of one
type Tensor struct {
	Data     []float32
	Height   int
	Width    int
	Channels int
	Layout   Layout
}

// Shape returns the 4-D shape including the batch dimension
func (t Tensor) Shape() []int64 {
	if t.Layout == ChannelsFirst {
		return []int64{1, int64(t.Channels), int64(t.Height), int64(t.Width)}
	}
	return []int64{1, int64(t.Height), int64(t.Width), int64(t.Channels)}
}

// WithLayout returns the tensor rearranged into the requested layout.
// The receiver is never modified.
func (t Tensor) WithLayout(l Layout) (Tensor, error) {
	if t.Layout == l {
		return t, nil
	}
	n := t.Height * t.Width * t.Channels
	if len(t.Data) != n {
		return Tensor{}, fmt.Errorf("tensor data length %d does not match %dx%dx%d", len(t.Data), t.Height, t.Width, t.Channels)
	}
	out := Tensor{Data: make([]float32, n), Height: t.Height, Width: t.Width, Channels: t.Channels, Layout: l}
	plane := t.Height * t.Width
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			for c := 0; c < t.Channels; c++ {
				hwc := (y*t.Width+x)*t.Channels + c
				chw := c*plane + y*t.Width + x
				if l == ChannelsFirst {
					out.Data[chw] = t.Data[hwc]
				} else {
					out.Data[hwc] = t.Data[chw]
				}
			}
		}
	}
	return out, nil
}
