package analytics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ModelStore persists trained model bundles as JSON on disk. Writes
// go through a temp file and rename so a crash mid write never leaves
// a truncated artifact.
type ModelStore struct {
	path string
}

func NewModelStore(path string) *ModelStore {
	return &ModelStore{path: path}
}

func (s *ModelStore) Path() string { return s.path }

// Load reads the saved bundle. A missing file returns (nil, nil); any
// other failure returns a ModelLoadError.
func (s *ModelStore) Load() (*modelBundle, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &ModelLoadError{Path: s.path, Err: err}
	}

	var bundle modelBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, &ModelLoadError{Path: s.path, Err: err}
	}
	if bundle.Model == nil || len(bundle.Model.Trees) == 0 {
		return nil, &ModelLoadError{Path: s.path, Err: fmt.Errorf("artifact has no trees")}
	}
	return &bundle, nil
}

// Save writes the bundle atomically.
func (s *ModelStore) Save(bundle *modelBundle) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create model directory: %w", err)
	}

	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace model: %w", err)
	}
	return nil
}
