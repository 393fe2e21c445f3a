// Package settings persists the window state between runs. All failures are logged and otherwise
// ignored, the window state is a convenience.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

const geometryKey = "geometry"

// Geometry describes the position and size of a window in screen pixels.
type Geometry struct {
	X      int `mapstructure:"x" json:"x"`
	Y      int `mapstructure:"y" json:"y"`
	Width  int `mapstructure:"width" json:"width"`
	Height int `mapstructure:"height" json:"height"`
}

func (g Geometry) Valid() bool {
	return g.Width > 0 && g.Height > 0
}

type Store struct {
	filename string
	lock     *sync.Mutex
	values   *viper.Viper
}

// Open loads the settings of the given application from <user config dir>/<organization>/<application>.yaml.
func Open(organization, application string) *Store {
	configDir, err := os.UserConfigDir()
	if err != nil {
		log.Printf("cannot find the user configuration directory, using the working directory: %v", err)
		configDir = "."
	}
	return OpenFile(filepath.Join(configDir, organization, application+".yaml"))
}

// OpenFile loads the settings from the given YAML file. A missing file is not an error.
func OpenFile(filename string) *Store {
	result := &Store{
		filename: filename,
		lock:     &sync.Mutex{},
		values:   viper.New(),
	}
	result.values.SetConfigFile(filename)
	result.values.SetConfigType("yaml")

	err := result.values.ReadInConfig()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("cannot load settings from %s: %v", filename, err)
	}
	return result
}

func (s *Store) Filename() string {
	return s.filename
}

// Geometry returns the stored window geometry, if there is a valid one.
func (s *Store) Geometry() (Geometry, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.values.IsSet(geometryKey) {
		return Geometry{}, false
	}
	var result Geometry
	err := s.values.UnmarshalKey(geometryKey, &result)
	if err != nil {
		log.Printf("cannot read the stored window geometry: %v", err)
		return Geometry{}, false
	}
	return result, result.Valid()
}

func (s *Store) SetGeometry(geometry Geometry) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.values.Set(geometryKey, map[string]any{
		"x":      geometry.X,
		"y":      geometry.Y,
		"width":  geometry.Width,
		"height": geometry.Height,
	})
}

// Save writes the settings to the file, creating the directory if necessary.
func (s *Store) Save() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	err := os.MkdirAll(filepath.Dir(s.filename), 0o755)
	if err != nil {
		return fmt.Errorf("cannot create settings directory: %w", err)
	}
	err = s.values.WriteConfigAs(s.filename)
	if err != nil {
		return fmt.Errorf("cannot save settings to %s: %w", s.filename, err)
	}
	return nil
}
