// Package source provides the sample sources of a replayscope channel.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/ftl/replayscope/stream"
)

// Source produces a stream of samples.
type Source[S stream.Sample] interface {
	// Read fills buf with the next samples and returns how many were read. It blocks until at least one sample
	// is available, the source is exhausted (io.EOF), or the context is done.
	Read(ctx context.Context, buf []S) (int, error)
	Close() error
}

// RateNotifier is implemented by sources whose sample rate is announced by the remote side.
type RateNotifier interface {
	// SampleRate returns the announced sample rate, 0 while it is unknown.
	SampleRate() int
	RateChanged() <-chan struct{}
}

// ErrEmptyFile is returned when a file does not contain a single whole sample.
var ErrEmptyFile = errors.New("file does not contain any samples")

// FileOptions configure a FileSource. The zero value reads the whole file once.
type FileOptions struct {
	// Repeat restarts from the beginning at the end of the file.
	Repeat bool
	// Offset is the number of samples to skip at the beginning of the file.
	Offset int64
	// Length is the number of samples to read, starting at Offset. 0 means up to the end of the file.
	Length int64
}

// FileSource reads raw samples from a file. With Repeat, it loops over the file endlessly.
type FileSource[S stream.Sample] struct {
	filename string
	repeat   bool
	width    int64
	samples  int64

	file    *os.File
	section *io.SectionReader
	raw     []byte
}

// OpenFile opens the given file as sample source. It fails if the file cannot be read or if the selected
// section does not contain at least one whole sample.
func OpenFile[S stream.Sample](filename string, options FileOptions) (*FileSource[S], error) {
	if options.Offset < 0 || options.Length < 0 {
		return nil, fmt.Errorf("invalid section of %s: offset %d length %d", filename, options.Offset, options.Length)
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot open sample file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("cannot stat sample file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("cannot read samples from directory %s", filename)
	}

	width := int64(stream.WidthOf[S]())
	available := info.Size()/width - options.Offset
	samples := available
	if options.Length > 0 {
		samples = min(options.Length, available)
	}
	if samples <= 0 {
		file.Close()
		return nil, fmt.Errorf("%s: %w", filename, ErrEmptyFile)
	}

	result := &FileSource[S]{
		filename: filename,
		repeat:   options.Repeat,
		width:    width,
		samples:  samples,
		file:     file,
		section:  io.NewSectionReader(file, options.Offset*width, samples*width),
	}
	log.Printf("opened %s: %d samples of %d bytes", filename, samples, width)

	return result, nil
}

// Filename of this source.
func (s *FileSource[S]) Filename() string {
	return s.filename
}

// Samples is the number of samples in one pass over the file.
func (s *FileSource[S]) Samples() int64 {
	return s.samples
}

func (s *FileSource[S]) Read(ctx context.Context, buf []S) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	if s.file == nil {
		return 0, os.ErrClosed
	}

	size := len(buf) * int(s.width)
	if cap(s.raw) < size {
		s.raw = make([]byte, size)
	}
	raw := s.raw[:size]

	filled := 0
	for filled < size {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}

		n, err := s.section.Read(raw[filled:])
		filled += n
		if err == io.EOF {
			if !s.repeat {
				break
			}
			_, err = s.section.Seek(0, io.SeekStart)
			if err != nil {
				return 0, fmt.Errorf("cannot rewind %s: %w", s.filename, err)
			}
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("cannot read %s: %w", s.filename, err)
		}
	}

	n := stream.Decode(buf, raw[:filled])
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (s *FileSource[S]) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
