package patternstore

import (
	"os"
	"path/filepath"

	"github.com/c360/gaze/errors"
)

// atomicWrite replaces path with data without ever exposing a torn file.
// Content goes to a temp file in the same directory, is fsynced, renamed
// over the destination, and then the directory itself is fsynced so the
// rename survives a crash. A failure before the rename leaves the old
// file untouched.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "PatternStore", "atomicWrite", "create temp file")
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return errors.Wrap(err, "PatternStore", "atomicWrite", "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return errors.Wrap(err, "PatternStore", "atomicWrite", "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "PatternStore", "atomicWrite", "close temp file")
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "PatternStore", "atomicWrite", "rename temp file")
	}

	return syncDir(dir)
}

// syncDir forces the directory entry to stable storage. Required after a
// rename; without it the new name may be lost on crash.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return errors.Wrap(err, "PatternStore", "atomicWrite", "open directory")
	}
	defer d.Close()

	if err := d.Sync(); err != nil {
		return errors.Wrap(err, "PatternStore", "atomicWrite", "sync directory")
	}
	return nil
}
