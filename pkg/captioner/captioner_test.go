package captioner

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-labeler/pkg/client"
	"github.com/menta2k/image-labeler/pkg/types"
)

type stubClient struct {
	reply string
	err   error
	got   client.Request
}

func (s *stubClient) Describe(_ context.Context, req client.Request) (string, error) {
	s.got = req
	return s.reply, s.err
}

func (s *stubClient) Ping(context.Context) error { return nil }

func backend() types.CaptionerBackend {
	return types.CaptionerBackend{Provider: "ollama", Model: "llava", MaxSide: 64, Format: "png"}
}

func TestCaptionSendsEncodedImage(t *testing.T) {
	stub := &stubClient{reply: "  A photo of a cat sitting on a red chair.  "}
	c, err := New(stub, backend(), Options{Style: StyleMedium, AvoidGeneric: true})
	require.NoError(t, err)

	got, err := c.Caption(context.Background(), imaging.New(200, 100, color.NRGBA{0, 0, 255, 255}))
	require.NoError(t, err)
	assert.Equal(t, "a cat sitting on a red chair.", got)

	assert.Equal(t, "llava", stub.got.Model)
	assert.Equal(t, prompts[StyleMedium], stub.got.Prompt)
	assert.Equal(t, 60, stub.got.MaxTokens)
	assert.Equal(t, "image/png", stub.got.MIME)

	raw, err := base64.StdEncoding.DecodeString(stub.got.ImageB64)
	require.NoError(t, err)
	img, err := imaging.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())
}

func TestCaptionFileDecodeError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jpg")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	c, err := New(&stubClient{}, backend(), Options{})
	require.NoError(t, err)
	_, err = c.CaptionFile(context.Background(), path)
	assert.ErrorIs(t, err, types.ErrDecode)
}

func TestCaptionPropagatesClientError(t *testing.T) {
	boom := errors.New("connection refused")
	c, err := New(&stubClient{err: boom}, backend(), Options{})
	require.NoError(t, err)
	_, err = c.Caption(context.Background(), imaging.New(8, 8, color.NRGBA{A: 255}))
	assert.ErrorIs(t, err, boom)
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		opts Options
		want string
	}{
		{"fences and lead-in", "```\nCaption: \"a dog\nrunning\"\n```", Options{}, "a dog running"},
		{"generic kept", "An image of a forest", Options{}, "An image of a forest"},
		{"generic stripped", "An image of a forest", Options{AvoidGeneric: true}, "a forest"},
		{"only first generic", "a man a woman", Options{AvoidGeneric: true}, "a woman"},
		{"tags format", "A girl is standing in the rain with an umbrella", Options{Format: FormatTags}, "girl, standing, rain, umbrella"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.raw, tt.opts))
		})
	}
}

func TestNewValidates(t *testing.T) {
	_, err := New(&stubClient{}, types.CaptionerBackend{}, Options{})
	assert.Error(t, err)

	_, err = New(&stubClient{}, backend(), Options{Style: "epic"})
	assert.Error(t, err)

	_, err = ParseStyle("huge")
	assert.Error(t, err)
	s, err := ParseStyle("Detailed")
	require.NoError(t, err)
	assert.Equal(t, StyleDetailed, s)

	f, err := ParseOutputFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatSentence, f)
}

func TestPromptOverride(t *testing.T) {
	c, err := New(&stubClient{}, backend(), Options{Prompt: "Tag this."})
	require.NoError(t, err)
	assert.Equal(t, "Tag this.", c.Prompt())
}
