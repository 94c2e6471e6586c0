package core

import "time"

// Input is a resolved path on disk.
//
// Path is slash-separated and relative to the resolver's base directory
// when the pattern was relative; absolute patterns keep absolute paths.
type Input struct {
	Path    string
	ModTime time.Time
	Size    int64
	IsDir   bool
}

// newest returns the latest modification time in the set.
func newest(in []Input) time.Time {
	var t time.Time
	for _, i := range in {
		if i.ModTime.After(t) {
			t = i.ModTime
		}
	}
	return t
}

// oldest returns the earliest modification time in the set.
func oldest(in []Input) time.Time {
	var t time.Time
	for n, i := range in {
		if n == 0 || i.ModTime.Before(t) {
			t = i.ModTime
		}
	}
	return t
}
