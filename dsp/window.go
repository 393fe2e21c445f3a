package dsp

import (
	"fmt"
	"math"
	"strings"

	"github.com/mjibson/go-dsp/window"
)

// Window selects the window function that is applied to a block before the FFT.
type Window string

const (
	BlackmanHarris Window = "blackman-harris"
	Blackman       Window = "blackman"
	Hamming        Window = "hamming"
	Hann           Window = "hann"
	Bartlett       Window = "bartlett"
	FlatTop        Window = "flattop"
	Rectangular    Window = "rectangular"
)

var windowFunctions = map[Window]func(int) []float64{
	BlackmanHarris: blackmanHarris,
	Blackman:       window.Blackman,
	Hamming:        window.Hamming,
	Hann:           window.Hann,
	Bartlett:       window.Bartlett,
	FlatTop:        window.FlatTop,
	Rectangular:    window.Rectangular,
}

// ParseWindow parses the name of a window function. An empty name selects Blackman-Harris.
func ParseWindow(s string) (Window, error) {
	name := Window(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	if name == "" {
		return BlackmanHarris, nil
	}
	if _, ok := windowFunctions[name]; !ok {
		return "", fmt.Errorf("unknown window function %q", s)
	}
	return name, nil
}

// Coefficients of this window for a block of n samples.
func (w Window) Coefficients(n int) []float64 {
	f, ok := windowFunctions[w]
	if !ok {
		f = window.Rectangular
	}
	if n == 1 {
		return []float64{1}
	}
	return f(n)
}

// 4-term Blackman-Harris window (-92 dB side lobes), the default of most spectrum displays.
func blackmanHarris(n int) []float64 {
	const (
		a0 = 0.35875
		a1 = 0.48829
		a2 = 0.14128
		a3 = 0.01168
	)
	result := make([]float64, n)
	m := float64(n - 1)
	for i := range result {
		x := 2 * math.Pi * float64(i) / m
		result[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x) - a3*math.Cos(3*x)
	}
	return result
}
