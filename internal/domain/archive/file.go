package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/GriffinCanCode/tabsession/internal/domain/session"
	"github.com/GriffinCanCode/tabsession/internal/shared/atomicfile"
)

const quarantineDirName = "quarantine"

// File is the archive file of one profile
type File struct {
	path string
	now  func() time.Time
}

// NewFile returns the archive stored at path
func NewFile(path string) *File {
	return &File{path: path, now: time.Now}
}

// Path returns the archive location
func (f *File) Path() string {
	return f.path
}

// Load reads and decodes the archive. A missing file yields no records and
// no error. A corrupt file is moved into the quarantine directory next to it
// and reported as ErrCorruptArchive.
func (f *File) Load() ([]session.Record, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	records, err := Decode(data)
	if err != nil {
		if qerr := f.quarantine(); qerr != nil {
			return nil, fmt.Errorf("%w (quarantine failed: %v)", err, qerr)
		}
		return nil, err
	}
	return records, nil
}

// Peek decodes the archive without side effects and reports its format
// version. A missing file yields no records, version 0 and no error.
func (f *File) Peek() ([]session.Record, byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to read archive: %w", err)
	}

	version, err := Version(data)
	if err != nil {
		return nil, 0, err
	}
	records, err := Decode(data)
	if err != nil {
		return nil, version, err
	}
	return records, version, nil
}

// Save encodes records and atomically replaces the archive.
// It returns the number of bytes written.
func (f *File) Save(records []session.Record) (int, error) {
	data, err := Encode(records)
	if err != nil {
		return 0, err
	}
	if err := atomicfile.Save(f.path, data, 0o600); err != nil {
		return 0, fmt.Errorf("failed to write archive: %w", err)
	}
	return len(data), nil
}

// Remove deletes the archive. Removing a missing archive succeeds.
func (f *File) Remove() error {
	if err := atomicfile.Remove(f.path); err != nil {
		return fmt.Errorf("failed to remove archive: %w", err)
	}
	return nil
}

// Exists reports whether an archive file is present
func (f *File) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

func (f *File) quarantine() error {
	dir := filepath.Join(filepath.Dir(f.path), quarantineDirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	stamp := f.now().UTC().Format("20060102-150405.000")
	target := filepath.Join(dir, filepath.Base(f.path)+"-"+stamp)
	return os.Rename(f.path, target)
}
