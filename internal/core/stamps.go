package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Stamp records the digest a task was last successfully built from.
type Stamp struct {
	Task   string `json:"task"`
	Digest Digest `json:"digest"`
}

// StampStore persists stamps between runs.
//
// It backs content freshness: a task whose inputs were touched but not
// changed is still up to date when its stamp matches.
type StampStore interface {
	// Get returns the stamp for task, or ok=false when none exists.
	Get(task string) (stamp Stamp, ok bool, err error)

	// Put stores or replaces the stamp for stamp.Task.
	Put(stamp Stamp) error
}

// FileStampStore implements StampStore on disk.
//
// Structure:
//
//	{Dir}/
//	  {sha256(task)[0:2]}/
//	    {sha256(task)}.json
type FileStampStore struct {
	Dir string
}

// NewFileStampStore creates a filesystem stamp store rooted at dir.
func NewFileStampStore(dir string) *FileStampStore {
	return &FileStampStore{Dir: dir}
}

// Get reads the stamp for task.
func (s *FileStampStore) Get(task string) (Stamp, bool, error) {
	data, err := os.ReadFile(s.path(task))
	if err != nil {
		if os.IsNotExist(err) {
			return Stamp{}, false, nil
		}
		return Stamp{}, false, fmt.Errorf("reading stamp: %w", err)
	}
	var st Stamp
	if err := json.Unmarshal(data, &st); err != nil {
		// A corrupt stamp only costs a rebuild.
		return Stamp{}, false, nil
	}
	if st.Task != task {
		return Stamp{}, false, nil
	}
	return st, true, nil
}

// Put writes the stamp atomically.
func (s *FileStampStore) Put(stamp Stamp) error {
	if stamp.Task == "" {
		return fmt.Errorf("stamp task is empty")
	}
	p := s.path(stamp.Task)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating stamp directory: %w", err)
	}
	data, err := json.MarshalIndent(stamp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling stamp: %w", err)
	}
	if err := WriteFileAtomic(p, data, 0o644); err != nil {
		return fmt.Errorf("writing stamp: %w", err)
	}
	return nil
}

func (s *FileStampStore) path(task string) string {
	sum := sha256.Sum256([]byte(task))
	key := hex.EncodeToString(sum[:])
	return filepath.Join(s.Dir, key[:2], key+".json")
}

// MemoryStampStore implements StampStore in memory.
// Useful for tests and short-lived processes.
type MemoryStampStore struct {
	mu     sync.Mutex
	stamps map[string]Stamp
}

// NewMemoryStampStore creates an empty in-memory store.
func NewMemoryStampStore() *MemoryStampStore {
	return &MemoryStampStore{stamps: make(map[string]Stamp)}
}

func (s *MemoryStampStore) Get(task string) (Stamp, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stamps[task]
	return st, ok, nil
}

func (s *MemoryStampStore) Put(stamp Stamp) error {
	if stamp.Task == "" {
		return fmt.Errorf("stamp task is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamps[stamp.Task] = stamp
	return nil
}

// WriteFileAtomic writes data to a temp file in the destination directory
// and renames it over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	_ = tmp.Sync() // best-effort durability
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
