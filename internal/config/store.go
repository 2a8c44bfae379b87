package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the parameter store's conventional name.
const DefaultFileName = "params.yaml"

const storeHeader = `# spiral parameter store
# Stages read this file once per pulse. Only the orchestrator writes it.
`

// ErrDecode is returned when params.yaml exists but cannot be decoded or fails
// validation. Stages treat it as fatal at startup.
var ErrDecode = errors.New("config: decode parameter store")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Store reads and writes the parameter file. It performs no locking: a writer
// overwrites the whole file and a concurrent reader may see a partial write.
type Store struct {
	path string
	base string
}

// NewStore binds a store to path. Relative partition paths inside the file are
// resolved against path's directory.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultFileName
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", path, err)
	}
	return &Store{path: abs, base: filepath.Dir(abs)}, nil
}

// Path returns the absolute location of params.yaml.
func (s *Store) Path() string {
	return s.path
}

// Load returns a fresh snapshot. A missing file is created with defaults; any
// key absent from the file keeps its default.
func (s *Store) Load() (Params, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		params := Default()
		if err := s.Save(params); err != nil {
			return Params{}, err
		}
		params.Paths.resolve(s.base)
		return params, nil
	}
	if err != nil {
		return Params{}, fmt.Errorf("config: read %s: %w", s.path, err)
	}
	params, err := Decode(data)
	if err != nil {
		return Params{}, fmt.Errorf("%w %s: %v", ErrDecode, s.path, err)
	}
	params.Paths.resolve(s.base)
	return params, nil
}

// Save overwrites params.yaml with p.
func (s *Store) Save(p Params) error {
	if err := Validate(p); err != nil {
		return err
	}
	p.Paths.relativeTo(s.base)
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("config: encode parameters: %w", err)
	}
	if err := os.MkdirAll(s.base, 0o755); err != nil {
		return fmt.Errorf("config: ensure %s: %w", s.base, err)
	}
	if err := os.WriteFile(s.path, append([]byte(storeHeader), data...), 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", s.path, err)
	}
	return nil
}

// Decode parses a params.yaml document on top of the defaults.
func Decode(data []byte) (Params, error) {
	params := Default()
	if err := yaml.Unmarshal(data, &params); err != nil {
		return Params{}, err
	}
	if err := Validate(params); err != nil {
		return Params{}, err
	}
	return params, nil
}

// Validate checks ranges and required paths.
func Validate(p Params) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("config: invalid parameters: %w", err)
	}
	return nil
}

// EnsureDirs creates every partition and side-channel directory.
func EnsureDirs(p Params) error {
	dirs := []string{
		p.Paths.Raw, p.Paths.Rejected, p.Paths.Valid,
		p.Paths.Archive, p.Paths.ArchiveOlympian, p.Paths.ArchiveChthonic,
		p.Paths.Graveyard, p.Paths.Abyss, p.Paths.Sandbox,
		p.Paths.Results, p.Paths.ChaosLog, p.Paths.LogDir,
		filepath.Dir(p.Paths.Journal),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: ensure %s: %w", dir, err)
		}
	}
	return nil
}
