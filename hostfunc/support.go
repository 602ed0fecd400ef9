package hostfunc

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// ErrFileNotFound matches any *FileNotFoundError via errors.Is.
var ErrFileNotFound = errors.New("file not found")

// FileNotFoundError reports a support file that no mount could resolve.
type FileNotFoundError struct {
	Name string
}

func (e *FileNotFoundError) Error() string {
	return "File not found: '" + e.Name + "'"
}

func (e *FileNotFoundError) Is(target error) bool {
	return target == ErrFileNotFound
}

// Mount maps a virtual directory to a directory on the host. Support files
// are always read-only.
type Mount struct {
	VirtualPath string // Path as seen by interpreted code (e.g., "/lib")
	HostPath    string // Actual directory on the host
}

// SupportOption configures a SupportFiles.
type SupportOption func(*SupportFiles)

// WithMaxFileSize caps the size of a single support file.
func WithMaxFileSize(size int64) SupportOption {
	return func(s *SupportFiles) {
		s.maxFileSize = size
	}
}

// WithFS adds an fs.FS layer consulted after the host mounts, in order.
// Names are looked up relative to the layer root.
func WithFS(fsys fs.FS) SupportOption {
	return func(s *SupportFiles) {
		s.layers = append(s.layers, fsys)
	}
}

// SupportFiles resolves the files an interpreter reads to operate (module
// sources pulled in by load/require), never user-authored content.
type SupportFiles struct {
	mounts      []Mount
	layers      []fs.FS
	maxFileSize int64
	mu          sync.RWMutex
}

const defaultMaxSupportFileSize = 4 * 1024 * 1024

// NewSupportFiles creates a resolver over the given mounts.
func NewSupportFiles(mounts []Mount, opts ...SupportOption) *SupportFiles {
	s := &SupportFiles{maxFileSize: defaultMaxSupportFileSize}
	for _, m := range mounts {
		// Ensure virtual path starts with / and has no trailing slash
		vp := "/" + strings.Trim(m.VirtualPath, "/")
		hp, err := filepath.Abs(m.HostPath)
		if err != nil {
			continue
		}
		s.mounts = append(s.mounts, Mount{VirtualPath: vp, HostPath: hp})
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Read returns the contents of the named support file.
func (s *SupportFiles) Read(name string) (string, error) {
	if s == nil {
		return "", &FileNotFoundError{Name: name}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if hostPath, ok := s.resolve(name); ok {
		data, err := s.readHost(hostPath)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("read %s: %w", name, err)
		}
	}

	rel := strings.TrimPrefix(path.Clean("/"+name), "/")
	if fs.ValidPath(rel) {
		for _, layer := range s.layers {
			data, err := s.readLayer(layer, rel)
			if err == nil {
				return data, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("read %s: %w", name, err)
			}
		}
	}

	return "", &FileNotFoundError{Name: name}
}

// resolve maps a virtual path to a host path under one of the mounts.
func (s *SupportFiles) resolve(name string) (string, bool) {
	vp := filepath.Clean("/" + strings.TrimPrefix(name, "/"))

	for _, m := range s.mounts {
		if vp != m.VirtualPath && !strings.HasPrefix(vp, m.VirtualPath+"/") && m.VirtualPath != "/" {
			continue
		}
		relPath := strings.TrimPrefix(vp, m.VirtualPath)
		hostPath, err := filepath.Abs(filepath.Join(m.HostPath, relPath))
		if err != nil {
			continue
		}
		// The cleaned path can never climb out of the mount, but symlinked
		// mount roots are resolved by Abs so check again.
		if hostPath != m.HostPath && !strings.HasPrefix(hostPath, m.HostPath+string(filepath.Separator)) {
			continue
		}
		return hostPath, true
	}
	return "", false
}

func (s *SupportFiles) readHost(hostPath string) (string, error) {
	info, err := os.Stat(hostPath)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fs.ErrNotExist
	}
	if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
		return "", fmt.Errorf("file exceeds %d bytes", s.maxFileSize)
	}
	data, err := os.ReadFile(hostPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *SupportFiles) readLayer(layer fs.FS, name string) (string, error) {
	f, err := layer.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fs.ErrNotExist
	}
	limit := s.maxFileSize
	if limit <= 0 {
		limit = info.Size() + 1
	}
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("file exceeds %d bytes", s.maxFileSize)
	}
	return string(data), nil
}
