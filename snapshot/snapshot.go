// Package snapshot stores the latest buffers of the sinks as NumPy .npy files.
package snapshot

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sbinet/npyio"

	"github.com/ftl/replayscope/scope"
)

const timestampFormat = "20060102_150405.000"

type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) Dir() string {
	return w.dir
}

// Write stores every snapshot that holds samples. The raw buffer goes to <dir>/<timestamp>_<sink>.npy,
// the waterfall history to <dir>/<timestamp>_<sink>_history.npy. It returns the names of the written files.
func (w *Writer) Write(now time.Time, snapshots ...scope.Snapshot) ([]string, error) {
	err := os.MkdirAll(w.dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("cannot create snapshot directory: %w", err)
	}

	prefix := now.Format(timestampFormat)
	var filenames []string
	var errs []error
	for _, snapshot := range snapshots {
		if snapshot.Samples == nil {
			continue
		}
		name := fmt.Sprintf("%s_%s", prefix, sanitize(string(snapshot.Stream)))

		filename := filepath.Join(w.dir, name+".npy")
		err := writeFile(filename, snapshot.Samples)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		filenames = append(filenames, filename)

		if snapshot.History == nil {
			continue
		}
		filename = filepath.Join(w.dir, name+"_history.npy")
		err = writeFile(filename, snapshot.History)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		filenames = append(filenames, filename)
	}

	log.Printf("wrote %d snapshot files to %s", len(filenames), w.dir)
	return filenames, errors.Join(errs...)
}

func writeFile(filename string, value any) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cannot create snapshot file: %w", err)
	}
	err = npyio.Write(f, value)
	if err != nil {
		f.Close()
		return fmt.Errorf("cannot write snapshot %s: %w", filename, err)
	}
	return f.Close()
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '_'
		}
	}, name)
}
