package state

import (
	"context"
	"os"
	"path/filepath"

	"github.com/ajitpratap0/tap-hookdeck/pkg/errors"
	"github.com/ajitpratap0/tap-hookdeck/pkg/singer"
)

// FileStore keeps state in a local JSON file, replaced atomically on save.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the state file. A missing file is an empty state.
func (s *FileStore) Load(_ context.Context) (*singer.State, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return singer.NewState(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to read state file").WithDetail("path", s.path)
	}
	return singer.ParseState(data)
}

// Save writes to a temporary file and renames it over the old one.
func (s *FileStore) Save(_ context.Context, st *singer.State) error {
	data, err := st.Marshal()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to encode state")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to create state directory").WithDetail("path", dir)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to create temporary state file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.ErrorTypeState, "failed to write state file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to write state file")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to replace state file").WithDetail("path", s.path)
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

// Location returns the file path.
func (s *FileStore) Location() string { return "file://" + s.path }
