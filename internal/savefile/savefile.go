// Package savefile provides atomic file writes for map saving.
//
// Content is written to a temporary file next to the target and renamed
// over it on Commit, so a failed or interrupted save never leaves a
// truncated map file behind.
package savefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Mode selects how content is written.
type Mode int

const (
	// Binary writes content exactly as given.
	Binary Mode = iota

	// Text normalizes line endings to "\n" before writing.
	Text
)

// ErrNotOpen is returned when writing to an unopened or committed file.
var ErrNotOpen = errors.New("save file is not open")

// SaveFile writes a file atomically.
type SaveFile struct {
	path string
	mode Mode
	tmp  *os.File
	err  error
}

// New creates a SaveFile targeting the given path.
func New(path string, mode Mode) *SaveFile {
	return &SaveFile{path: path, mode: mode}
}

// Open creates the temporary file. The target directory must exist.
func (s *SaveFile) Open() error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		s.err = err
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	s.tmp = tmp
	return nil
}

// Write appends content to the pending file.
func (s *SaveFile) Write(data []byte) (int, error) {
	if s.tmp == nil {
		return 0, ErrNotOpen
	}
	if s.mode == Text {
		data = normalize(data)
	}
	n, err := s.tmp.Write(data)
	if err != nil {
		s.err = err
	}
	return n, err
}

// WriteString appends string content to the pending file.
func (s *SaveFile) WriteString(data string) (int, error) {
	return s.Write([]byte(data))
}

// Error returns the first error encountered since Open.
func (s *SaveFile) Error() error {
	return s.err
}

// Commit syncs the temporary file and renames it over the target.
// After Commit the SaveFile cannot be reused.
func (s *SaveFile) Commit() error {
	if s.tmp == nil {
		return ErrNotOpen
	}
	tmp := s.tmp
	s.tmp = nil

	if s.err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return s.err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close: %w", err)
	}

	// Preserve the permissions of an existing target.
	if info, err := os.Stat(s.path); err == nil {
		_ = os.Chmod(tmp.Name(), info.Mode())
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

// Discard abandons the pending write and removes the temporary file.
func (s *SaveFile) Discard() {
	if s.tmp == nil {
		return
	}
	name := s.tmp.Name()
	s.tmp.Close()
	os.Remove(name)
	s.tmp = nil
}

// WriteFile atomically writes data to path in one call.
func WriteFile(path string, data []byte, mode Mode) error {
	sf := New(path, mode)
	if err := sf.Open(); err != nil {
		return err
	}
	if _, err := sf.Write(data); err != nil {
		sf.Discard()
		return err
	}
	return sf.Commit()
}

// normalize converts CRLF and lone CR line endings to LF.
func normalize(data []byte) []byte {
	s := string(data)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return []byte(s)
}
