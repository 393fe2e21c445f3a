package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftl/replayscope/stream"
)

func writeSamples[S stream.Sample](t *testing.T, samples []S) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "samples.raw")
	err := os.WriteFile(filename, stream.Encode(nil, samples), 0644)
	require.NoError(t, err)
	return filename
}

func TestLoopingSourceWrapsAround(t *testing.T) {
	samples := []float32{1, 2, 3, 4, 5}
	filename := writeSamples(t, samples)

	source, err := OpenFile[float32](filename, FileOptions{Repeat: true})
	require.NoError(t, err)
	defer source.Close()
	assert.Equal(t, int64(5), source.Samples())

	buf := make([]float32, 13)
	n, err := source.Read(context.Background(), buf)
	require.NoError(t, err)
	require.Equal(t, 13, n)

	for i := range buf {
		assert.Equal(t, samples[i%len(samples)], buf[i], "sample %d", i)
	}
}

func TestLoopingSourceWrapsAcrossReads(t *testing.T) {
	samples := []complex64{complex(1, -1), complex(2, -2), complex(3, -3)}
	filename := writeSamples(t, samples)

	source, err := OpenFile[complex64](filename, FileOptions{Repeat: true})
	require.NoError(t, err)
	defer source.Close()

	received := make([]complex64, 0, 10)
	buf := make([]complex64, 2)
	for len(received) < 10 {
		n, err := source.Read(context.Background(), buf)
		require.NoError(t, err)
		received = append(received, buf[:n]...)
	}

	for i, s := range received {
		assert.Equal(t, samples[i%len(samples)], s, "sample %d", i)
	}
}

func TestSourceWithoutRepeatEnds(t *testing.T) {
	filename := writeSamples(t, []float32{1, 2, 3})

	source, err := OpenFile[float32](filename, FileOptions{})
	require.NoError(t, err)
	defer source.Close()

	buf := make([]float32, 2)
	n, err := source.Read(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, buf[:n])

	n, err = source.Read(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, []float32{3}, buf[:n])

	_, err = source.Read(context.Background(), buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestSourceSection(t *testing.T) {
	filename := writeSamples(t, []float32{0, 1, 2, 3, 4, 5})

	source, err := OpenFile[float32](filename, FileOptions{Repeat: true, Offset: 2, Length: 3})
	require.NoError(t, err)
	defer source.Close()

	buf := make([]float32, 7)
	n, err := source.Read(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 3, 4, 2, 3, 4, 2}, buf[:n])
}

func TestOpenFileFailsFast(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.raw")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	partial := filepath.Join(dir, "partial.cfile")
	require.NoError(t, os.WriteFile(partial, []byte{1, 2, 3, 4, 5}, 0644))

	tt := []struct {
		desc     string
		filename string
		options  FileOptions
		empty    bool
	}{
		{desc: "missing", filename: filepath.Join(dir, "missing.raw")},
		{desc: "directory", filename: dir},
		{desc: "empty", filename: empty, empty: true},
		{desc: "less than one complex sample", filename: partial, empty: true},
		{desc: "offset beyond end", filename: partial, options: FileOptions{Offset: 10}, empty: true},
		{desc: "negative offset", filename: partial, options: FileOptions{Offset: -1}},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := OpenFile[complex64](tc.filename, tc.options)
			require.Error(t, err)
			if tc.empty {
				assert.ErrorIs(t, err, ErrEmptyFile)
			}
		})
	}
}

func TestReadRespectsContext(t *testing.T) {
	filename := writeSamples(t, []float32{1})

	source, err := OpenFile[float32](filename, FileOptions{Repeat: true})
	require.NoError(t, err)
	defer source.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = source.Read(ctx, make([]float32, 4))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadAfterClose(t *testing.T) {
	filename := writeSamples(t, []float32{1})

	source, err := OpenFile[float32](filename, FileOptions{Repeat: true})
	require.NoError(t, err)
	require.NoError(t, source.Close())
	require.NoError(t, source.Close())

	_, err = source.Read(context.Background(), make([]float32, 4))
	assert.ErrorIs(t, err, os.ErrClosed)
}
