// Package dsp provides the few DSP functionalities the display sinks need.
package dsp

import "golang.org/x/exp/constraints"

type Number interface {
	constraints.Integer | constraints.Float
}

// Block represents a block of values that are processed as one unit.
type Block[T Number] []T

// Size returns the blocksize.
func (b Block[T]) Size() int {
	return len(b)
}

// Max imum value in the given section of this block.
func (b Block[T]) Max(from, to int) (T, int) {
	maxValue := b[from]
	maxI := from
	for i := from; i <= to; i++ {
		if maxValue < b[i] {
			maxValue = b[i]
			maxI = i
		}
	}
	return maxValue, maxI
}

// Min imum value in the given section of this block.
func (b Block[T]) Min(from, to int) (T, int) {
	minValue := b[from]
	minI := from
	for i := from; i <= to; i++ {
		if minValue > b[i] {
			minValue = b[i]
			minI = i
		}
	}
	return minValue, minI
}

// ExponentialAverage smoothes a sequence of blocks: avg = alpha*block + (1-alpha)*avg.
// An alpha of 1 disables the averaging.
type ExponentialAverage[T Number] struct {
	alpha  float64
	values Block[T]
}

// NewExponentialAverage with the given alpha in (0, 1].
func NewExponentialAverage[T Number](alpha float64) *ExponentialAverage[T] {
	return &ExponentialAverage[T]{alpha: alpha}
}

// Alpha returns the averaging factor.
func (a *ExponentialAverage[T]) Alpha() float64 {
	return a.alpha
}

// Put a new block into the average and write the averaged values back into it.
func (a *ExponentialAverage[T]) Put(block Block[T]) {
	if len(a.values) != len(block) {
		a.values = make(Block[T], len(block))
		copy(a.values, block)
		return
	}
	if a.alpha >= 1 {
		copy(a.values, block)
		return
	}
	for i, v := range block {
		a.values[i] = T(a.alpha*float64(v) + (1-a.alpha)*float64(a.values[i]))
		block[i] = a.values[i]
	}
}

// Reset the average.
func (a *ExponentialAverage[T]) Reset() {
	a.values = nil
}
