package progress

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-labeler/pkg/types"
)

func TestWriterFormat(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Write(types.ProgressEvent{Progress: 1, Total: 2, CurrentFile: "a.png", Status: StatusTagging}))

	assert.Equal(t, `PROGRESS:{"progress":1,"total":2,"current_file":"a.png","status":"tagging"}`+"\n", buf.String())
}

func TestWriterFlushesBufferedOutput(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriterSize(&buf, 4096)
	w := NewWriter(bw)
	require.NoError(t, w.Write(types.ProgressEvent{Progress: 1, Total: 1}))
	assert.True(t, strings.HasPrefix(buf.String(), Prefix))
}

func TestEmitterMonotonic(t *testing.T) {
	var buf bytes.Buffer
	files := []string{"a.png", "b.jpg", "c.webp", "d.jpeg"}
	e := NewEmitter(NewWriter(&buf), len(files), StatusCaptioning)
	for _, f := range files {
		_, err := e.Next(f)
		require.NoError(t, err)
	}
	_, err := e.Next("extra.png")
	assert.Error(t, err)

	var events []types.ProgressEvent
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		ev, ok := Parse(scanner.Text())
		require.True(t, ok)
		events = append(events, ev)
	}
	require.Len(t, events, len(files))
	for i, ev := range events {
		assert.Equal(t, i+1, ev.Progress)
		assert.Equal(t, len(files), ev.Total)
		assert.Equal(t, files[i], ev.CurrentFile)
	}
}

func TestParseRejectsLogLines(t *testing.T) {
	for _, line := range []string{
		"Loading model...",
		"",
		"PROGRESS:",
		"PROGRESS:{not json",
		" PROGRESS:{}",
	} {
		_, ok := Parse(line)
		assert.False(t, ok, "line %q", line)
	}

	ev, ok := Parse(`PROGRESS:{"progress":3,"total":5,"current_file":"x.png","status":"Tagging"}` + "\r\n")
	require.True(t, ok)
	assert.Equal(t, 3, ev.Progress)
	assert.Equal(t, "x.png", ev.CurrentFile)
}

func TestRelabel(t *testing.T) {
	ev := Relabel(types.ProgressEvent{CurrentFile: "a.png"}, PassLabel(1, 2, "Tagging"))
	assert.Equal(t, "[Pass 1/2 Tagging] a.png", ev.CurrentFile)

	ev = Relabel(types.ProgressEvent{CurrentFile: "a.png"}, "")
	assert.Equal(t, "a.png", ev.CurrentFile)
}
