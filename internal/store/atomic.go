// Package store implements the file-backed mirror: it writes a provider's metadata, keys, and
// documents to a directory tree that FileSource can later read as a Source in its own right
// (spec §6). Atomic writes are copied and generalized from the teacher's
// internal/cache/fs.go atomicWrite/atomicWriteBytes helpers.
package store

import (
	"io"
	"os"
	"path/filepath"
)

// atomicWriteBytes writes data to dst via a temp file in the same directory, then renames it
// into place, so a concurrent reader never observes a partially written file.
func atomicWriteBytes(dst string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, dst)
}

// atomicWrite streams r to dst via the same temp-file-then-rename sequence, for callers that
// hold a reader rather than a fully buffered slice.
func atomicWrite(dst string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, dst)
}
