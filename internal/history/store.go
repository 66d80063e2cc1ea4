package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sweeney/heat-controller/internal/logic"
)

// DefaultPath is where history is kept unless configured otherwise.
const DefaultPath = "~/.heat-controller/history.json"

// ErrCorrupt is returned by Load when the history file exists but cannot be decoded.
var ErrCorrupt = errors.New("history file corrupt")

// fileFormat is the on-disk layout. Not read by anything else.
type fileFormat struct {
	Capacity int             `json:"capacity"`
	Readings []logic.Reading `json:"readings"`
}

// Store loads and saves a Ring at a fixed path.
// A single process is assumed to own the file.
type Store struct {
	path     string
	capacity int
}

// NewStore creates a store for path. A leading "~/" is expanded to the
// current user's home directory.
func NewStore(path string, capacity int) (*Store, error) {
	expanded, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	if capacity < 1 {
		return nil, fmt.Errorf("history capacity must be positive, got %d", capacity)
	}
	return &Store{path: expanded, capacity: capacity}, nil
}

// Path returns the resolved file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted history. A missing or empty file yields an empty
// ring; anything present but undecodable is an error wrapping ErrCorrupt.
func (s *Store) Load() (*Ring, error) {
	ring := NewRing(s.capacity)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return ring, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if len(data) == 0 {
		return ring, nil
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}

	// Keep only the newest entries if capacity shrank since the last run.
	readings := f.Readings
	if len(readings) > s.capacity {
		readings = readings[len(readings)-s.capacity:]
	}
	for _, r := range readings {
		ring.Push(r)
	}
	return ring, nil
}

// Persist overwrites the history file with the full contents of ring.
// The data is written to a temporary file and renamed into place, so a crash
// mid-write leaves the previous file intact.
func (s *Store) Persist(ring *Ring) error {
	data, err := json.Marshal(fileFormat{
		Capacity: ring.Cap(),
		Readings: ring.Readings(),
	})
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close history: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

// Append pushes reading onto ring and persists the result. The ring is
// updated even when persisting fails.
func (s *Store) Append(ring *Ring, reading logic.Reading) error {
	ring.Push(reading)
	return s.Persist(ring)
}

func expandHome(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}
