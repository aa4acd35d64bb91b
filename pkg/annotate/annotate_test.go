package annotate

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-labeler/internal/logging"
	"github.com/menta2k/image-labeler/pkg/inference"
	"github.com/menta2k/image-labeler/pkg/progress"
	"github.com/menta2k/image-labeler/pkg/tags"
	"github.com/menta2k/image-labeler/pkg/types"
)

type stubPredictor map[string]inference.Prediction

func (s stubPredictor) Predict(path string) (inference.Prediction, error) {
	pred, ok := s[filepath.Base(path)]
	if !ok {
		return inference.Prediction{}, &types.DecodeError{Path: path, Err: errors.New("bad header")}
	}
	return pred, nil
}

type stubDescriber struct {
	captions map[string]string
	err      error
}

func (s stubDescriber) CaptionFile(_ context.Context, path string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.captions[filepath.Base(path)], nil
}

func makeImages(t *testing.T, names ...string) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(p, []byte("img"), 0o644))
		paths = append(paths, p)
	}
	return dir, paths
}

func readLabel(t *testing.T, dir, stem string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, stem+".txt"))
	require.NoError(t, err)
	return string(data)
}

func parseEvents(t *testing.T, buf *bytes.Buffer) []types.ProgressEvent {
	t.Helper()
	var events []types.ProgressEvent
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		if ev, ok := progress.Parse(sc.Text()); ok {
			events = append(events, ev)
		}
	}
	return events
}

func TestDiscover(t *testing.T) {
	dir, paths := makeImages(t, "b.png", "a.JPG", "notes.txt")

	images, err := Discover(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{paths[1], paths[0]}, images)

	images, err = Discover("", paths[0])
	require.NoError(t, err)
	assert.Equal(t, []string{paths[0]}, images)

	_, err = Discover(t.TempDir(), "")
	assert.ErrorIs(t, err, types.ErrEmptyInput)

	_, err = Discover("", filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestTagPassWritesLabelsAndSkipsDecodeErrors(t *testing.T) {
	dir, images := makeImages(t, "a.png", "broken.png", "c.webp")
	predictor := stubPredictor{
		"a.png": {Tags: []types.TagRecord{
			{Name: "blue_hair", Score: 0.4, Index: 2},
			{Name: "1girl", Score: 0.9, Index: 1},
		}},
		"c.webp": {},
	}
	var out, errOut bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Stdout: &out, Stderr: &errOut})
	require.NoError(t, err)

	pass := &TagPass{
		Predictor: predictor,
		Options:   tags.Options{Order: tags.OrderConfidence, Trigger: "mychar"},
		Progress:  progress.NewWriter(&out),
		Logger:    logger,
	}
	summary, err := pass.Run(context.Background(), images)
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 3, Written: 2, Skipped: 1}, summary)

	assert.Equal(t, "mychar, 1girl, blue_hair", readLabel(t, dir, "a"))
	assert.Equal(t, "mychar", readLabel(t, dir, "c"))
	_, err = os.Stat(filepath.Join(dir, "broken.txt"))
	assert.True(t, os.IsNotExist(err))
	assert.Contains(t, errOut.String(), "broken.png")

	events := parseEvents(t, &out)
	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, i+1, ev.Progress)
		assert.Equal(t, 3, ev.Total)
		assert.Equal(t, progress.StatusTagging, ev.Status)
		assert.Equal(t, filepath.Base(images[i]), ev.CurrentFile)
	}
}

func TestTagPassOverwritesExistingLabel(t *testing.T) {
	dir, images := makeImages(t, "a.png")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("stale, stale, stale"), 0o644))

	pass := &TagPass{
		Predictor: stubPredictor{"a.png": {Tags: []types.TagRecord{{Name: "solo", Score: 0.8}}}},
		Logger:    logging.NewNop(),
	}
	_, err := pass.Run(context.Background(), images)
	require.NoError(t, err)
	assert.Equal(t, "solo", readLabel(t, dir, "a"))
}

func TestCaptionPass(t *testing.T) {
	dir, images := makeImages(t, "a.png", "b.png")
	var out bytes.Buffer
	pass := &CaptionPass{
		Describer: stubDescriber{captions: map[string]string{"a.png": "a girl standing", "b.png": ""}},
		Trigger:   "tok",
		Progress:  progress.NewWriter(&out),
		Logger:    logging.NewNop(),
	}
	summary, err := pass.Run(context.Background(), images)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Written)
	assert.Equal(t, "tok, a girl standing", readLabel(t, dir, "a"))
	assert.Equal(t, "tok", readLabel(t, dir, "b"))
	assert.Len(t, parseEvents(t, &out), 2)
}

func TestCaptionPassRecoversFromServerErrors(t *testing.T) {
	_, images := makeImages(t, "a.png", "b.png")
	pass := &CaptionPass{
		Describer: stubDescriber{err: errors.New("server returned status 500")},
		Logger:    logging.NewNop(),
	}
	summary, err := pass.Run(context.Background(), images)
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 2, Skipped: 2}, summary)
}

func TestPassStopsOnCancel(t *testing.T) {
	_, images := makeImages(t, "a.png", "b.png")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pass := &CaptionPass{Describer: stubDescriber{}, Logger: logging.NewNop()}
	summary, err := pass.Run(ctx, images)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Written)
}
