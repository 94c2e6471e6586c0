package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"os"
	"path/filepath"
	"sort"
)

// Digest identifies the content a task was last built from.
//
// Includes: step descriptions, declared env, declared outputs, input paths
// and input contents. Excludes: timestamps, host environment.
type Digest string

// String returns the hex form of the digest.
func (d Digest) String() string { return string(d) }

// TaskHasher computes content digests for tasks.
type TaskHasher struct {
	// BaseDir is where relative input paths are read from.
	BaseDir string
}

// NewTaskHasher creates a new TaskHasher.
func NewTaskHasher(baseDir string) *TaskHasher {
	return &TaskHasher{BaseDir: baseDir}
}

// ComputeDigest hashes the task recipe and the content of its resolved inputs.
//
// All variable-length fields are length-prefixed and every collection is
// sorted, so the digest depends only on content.
func (h *TaskHasher) ComputeDigest(task *Task, inputs []Input) (Digest, error) {
	d := sha256.New()

	writeCount(d, len(task.Steps))
	for _, s := range task.Steps {
		writeField(d, []byte(s.Describe()))
	}

	envKeys := make([]string, 0, len(task.Env))
	for k := range task.Env {
		envKeys = append(envKeys, k)
	}
	sort.Strings(envKeys)
	writeCount(d, len(envKeys))
	for _, k := range envKeys {
		writeField(d, []byte(k))
		writeField(d, []byte(task.Env[k]))
	}

	outputs := append([]string(nil), task.Outputs...)
	sort.Strings(outputs)
	writeCount(d, len(outputs))
	for _, o := range outputs {
		writeField(d, []byte(o))
	}

	// Inputs arrive sorted from InputResolver.
	writeCount(d, len(inputs))
	for _, in := range inputs {
		content, err := os.ReadFile(absUnder(h.BaseDir, filepath.FromSlash(in.Path)))
		if err != nil {
			return "", fmt.Errorf("reading input %q: %w", in.Path, err)
		}
		writeField(d, []byte(in.Path))
		writeField(d, content)
	}

	return Digest(hex.EncodeToString(d.Sum(nil))), nil
}

func writeField(h hash.Hash, data []byte) {
	writeCount(h, len(data))
	h.Write(data)
}

func writeCount(h hash.Hash, n int) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	h.Write(buf[:])
}
