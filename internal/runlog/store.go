package runlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Store persists run history under:
//
//	<root>/runs/<run-id>/run.json
//	<root>/runs/<run-id>/targets.json
//	<root>/runs/<run-id>/failure.json   (failed runs only)
//
// Writes are atomic (temp file, fsync, rename, directory fsync).
type Store struct {
	root string
}

// NewStore returns a store rooted at root, typically <workdir>/.smpybuild.
func NewStore(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("state directory is required")
	}
	return &Store{root: root}, nil
}

func (s *Store) runsDir() string { return filepath.Join(s.root, "runs") }

func (s *Store) runDir(runID string) string { return filepath.Join(s.runsDir(), runID) }

// ListRunIDs returns the run IDs on disk, sorted. Run IDs are time-ordered,
// so the last entry is the most recent run.
func (s *Store) ListRunIDs() ([]string, error) {
	entries, err := os.ReadDir(s.runsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// LatestRunID returns the most recent run ID, or "" when there is none.
func (s *Store) LatestRunID() (string, error) {
	ids, err := s.ListRunIDs()
	if err != nil || len(ids) == 0 {
		return "", err
	}
	return ids[len(ids)-1], nil
}

// Recent loads up to limit runs, newest first. limit <= 0 means all.
// Run directories that cannot be read are skipped.
func (s *Store) Recent(limit int) ([]Run, error) {
	ids, err := s.ListRunIDs()
	if err != nil {
		return nil, err
	}
	var runs []Run
	for i := len(ids) - 1; i >= 0; i-- {
		if limit > 0 && len(runs) == limit {
			break
		}
		run, err := s.LoadRun(ids[i])
		if err != nil {
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Prune deletes all but the keep most recent runs and returns the removed IDs.
func (s *Store) Prune(keep int) ([]string, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep must be >= 0")
	}
	ids, err := s.ListRunIDs()
	if err != nil || len(ids) <= keep {
		return nil, err
	}
	victims := ids[:len(ids)-keep]
	for _, id := range victims {
		if err := os.RemoveAll(s.runDir(id)); err != nil {
			return nil, fmt.Errorf("removing run %s: %w", id, err)
		}
	}
	return victims, nil
}

func (s *Store) SaveRun(run Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	if run.Targets == nil {
		run.Targets = []string{}
	}
	return s.save(run.RunID, "run.json", run)
}

func (s *Store) LoadRun(runID string) (Run, error) {
	var run Run
	if err := s.load(runID, "run.json", &run); err != nil {
		return Run{}, err
	}
	if err := run.Validate(); err != nil {
		return Run{}, fmt.Errorf("invalid run on disk: %w", err)
	}
	return run, nil
}

func (s *Store) SaveTargets(runID string, records []TargetRecord) error {
	if records == nil {
		records = []TargetRecord{}
	}
	return s.save(runID, "targets.json", records)
}

func (s *Store) LoadTargets(runID string) ([]TargetRecord, error) {
	var records []TargetRecord
	if err := s.load(runID, "targets.json", &records); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return records, nil
}

func (s *Store) SaveFailure(runID string, failure Failure) error {
	if err := failure.Validate(); err != nil {
		return fmt.Errorf("invalid failure: %w", err)
	}
	return s.save(runID, "failure.json", failure)
}

// LoadFailure returns nil when the run has no failure record.
func (s *Store) LoadFailure(runID string) (*Failure, error) {
	var failure Failure
	if err := s.load(runID, "failure.json", &failure); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if err := failure.Validate(); err != nil {
		return nil, fmt.Errorf("invalid failure on disk: %w", err)
	}
	return &failure, nil
}

func (s *Store) save(runID, name string, v any) error {
	if strings.TrimSpace(runID) == "" {
		return errors.New("runID is required")
	}
	dir := s.runDir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure run dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := writeFileAtomicDurable(filepath.Join(dir, name), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (s *Store) load(runID, name string, dst any) error {
	if strings.TrimSpace(runID) == "" {
		return errors.New("runID is required")
	}
	return readJSONStrict(filepath.Join(s.runDir(runID), name), dst)
}

func readJSONStrict(path string, dst any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("decoding %s: trailing content", filepath.Base(path))
	}
	return nil
}

func writeFileAtomicDurable(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return fsyncDir(dir)
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
