// Package stream defines the sample types that flow through a replayscope channel
// and the raw binary format used to store them.
package stream

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Sample is the type of a single stream element: a real float or a complex pair of floats.
type Sample interface {
	float32 | complex64
}

// Kind distinguishes real from complex streams.
type Kind string

const (
	Real    Kind = "real"
	Complex Kind = "complex"
)

// ParseKind parses the textual representation of a stream kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case Real, "float", "f":
		return Real, nil
	case Complex, "cfloat", "c":
		return Complex, nil
	default:
		return "", fmt.Errorf("unknown stream kind %q", s)
	}
}

// Width is the number of bytes one sample of this kind occupies in a raw file.
func (k Kind) Width() int {
	switch k {
	case Real:
		return 4
	case Complex:
		return 8
	default:
		return 0
	}
}

// KindOf returns the kind of the sample type S.
func KindOf[S Sample]() Kind {
	var s S
	switch any(s).(type) {
	case complex64:
		return Complex
	default:
		return Real
	}
}

// WidthOf returns the raw width of the sample type S in bytes.
func WidthOf[S Sample]() int {
	return KindOf[S]().Width()
}

// Decode fills samples from the little-endian raw bytes. It returns the number of samples decoded.
// Bytes that do not form a whole sample are ignored.
func Decode[S Sample](samples []S, raw []byte) int {
	switch dst := any(samples).(type) {
	case []float32:
		n := min(len(dst), len(raw)/4)
		for i := 0; i < n; i++ {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return n
	case []complex64:
		n := min(len(dst), len(raw)/8)
		for i := 0; i < n; i++ {
			re := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*8:]))
			im := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*8+4:]))
			dst[i] = complex(re, im)
		}
		return n
	}
	return 0
}

// Encode appends the little-endian raw representation of the samples to raw.
func Encode[S Sample](raw []byte, samples []S) []byte {
	switch src := any(samples).(type) {
	case []float32:
		for _, s := range src {
			raw = binary.LittleEndian.AppendUint32(raw, math.Float32bits(s))
		}
	case []complex64:
		for _, s := range src {
			raw = binary.LittleEndian.AppendUint32(raw, math.Float32bits(real(s)))
			raw = binary.LittleEndian.AppendUint32(raw, math.Float32bits(imag(s)))
		}
	}
	return raw
}

// ToComplex converts the samples into the working buffer of the FFT. Real samples get a zero imaginary part.
func ToComplex[S Sample](dst []complex128, samples []S) {
	switch src := any(samples).(type) {
	case []float32:
		for i := range dst {
			dst[i] = complex(float64(src[i]), 0)
		}
	case []complex64:
		for i := range dst {
			dst[i] = complex128(src[i])
		}
	}
}

// Split converts the samples into their real and imaginary parts. For real samples, im stays untouched.
func Split[S Sample](re []float64, im []float64, samples []S) {
	switch src := any(samples).(type) {
	case []float32:
		for i := range re {
			re[i] = float64(src[i])
		}
	case []complex64:
		for i := range re {
			re[i] = float64(real(src[i]))
			im[i] = float64(imag(src[i]))
		}
	}
}
