package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockBufferReadsBlocksInOrder(t *testing.T) {
	buffer := newBlockBuffer(4)
	buffer.Put([]float32{1, 2, 3})
	buffer.Put([]float32{4, 5})

	buf := make([]float32, 4)
	n, err := buffer.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []float32{1, 2, 3, 4}, buf)

	n, err = buffer.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []float32{5, 0, 0, 0}, buf)
}

func TestBlockBufferPlaysSilenceWhenEmpty(t *testing.T) {
	buffer := newBlockBuffer(1)
	buf := []float32{7, 7}

	n, err := buffer.Read(buf)

	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []float32{0, 0}, buf)
}

func TestBlockBufferDropsWhenFull(t *testing.T) {
	buffer := newBlockBuffer(1)
	buffer.Put([]float32{1})
	buffer.Put([]float32{2})

	buf := make([]float32, 2)
	buffer.Read(buf)

	assert.Equal(t, []float32{1, 0}, buf)
}

func TestNewMonitorRejectsInvalidSampleRate(t *testing.T) {
	_, err := NewMonitor("test", 0)
	assert.Error(t, err)
}
