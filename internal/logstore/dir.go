package logstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type fileHandle struct {
	name string
	path string
}

func (h fileHandle) Name() string { return h.name }

// Dir stores each log as a file below a root directory, e.g. the mount
// point of the SD card.
type Dir struct {
	root string
}

// OpenDir checks that root exists and is writable.
func OpenDir(root string) (*Dir, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrUnavailable, root)
	}
	probe, err := os.CreateTemp(root, ".probe-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return &Dir{root: root}, nil
}

// Open creates the file if needed. Existing content is kept.
func (d *Dir) Open(name string) (Handle, error) {
	path := filepath.Join(d.root, filepath.Clean("/"+strings.TrimPrefix(name, "/")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", path, err)
	}
	return fileHandle{name: name, path: path}, nil
}

// Append opens, writes and closes the file so a power cut loses at most
// the line being written.
func (d *Dir) Append(h Handle, line string) error {
	fh, ok := h.(fileHandle)
	if !ok {
		return fmt.Errorf("append: foreign handle %T", h)
	}
	f, err := os.OpenFile(fh.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("append %s: %w", fh.path, err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("append %s: %w", fh.path, err)
	}
	return f.Close()
}

// Close is a no-op; files are closed after every append.
func (d *Dir) Close() error { return nil }
