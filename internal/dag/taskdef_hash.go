package dag

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"

	"smpybuild/internal/core"
)

// computeTaskDefHash hashes the declarative fields of a target: name,
// phony flag, inputs, outputs, env and step descriptions.
//
// Inputs and outputs are treated as sets and sorted; env is sorted by key.
// All fields are length-prefixed.
func computeTaskDefHash(t core.Task) TaskDefHash {
	h := sha256.New()

	writeField(h, []byte(t.Name))
	if t.Phony {
		writeField(h, []byte{1})
	} else {
		writeField(h, []byte{0})
	}

	writeSortedSet(h, t.Inputs)
	writeSortedSet(h, t.Outputs)

	envKeys := make([]string, 0, len(t.Env))
	for k := range t.Env {
		envKeys = append(envKeys, k)
	}
	sort.Strings(envKeys)
	writeCount(h, len(envKeys))
	for _, k := range envKeys {
		writeField(h, []byte(k))
		writeField(h, []byte(t.Env[k]))
	}

	writeCount(h, len(t.Steps))
	for _, s := range t.Steps {
		writeField(h, []byte(s.Describe()))
	}

	return TaskDefHash(hex.EncodeToString(h.Sum(nil)))
}

func writeSortedSet(h hash.Hash, values []string) {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	writeCount(h, len(sorted))
	for _, v := range sorted {
		writeField(h, []byte(v))
	}
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
