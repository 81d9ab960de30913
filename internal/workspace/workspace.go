// Package workspace holds the in-memory working copy of project files that
// the engine mutates step by step.
package workspace

import (
	"path"
	"strings"
)

// VirtualFile is one file of the working snapshot
type VirtualFile struct {
	Path    string `json:"path" yaml:"path"`
	Content string `json:"content" yaml:"content"`
}

// Snapshot is an ordered set of files. Order is the order files were added
// and is the order steps process them in.
type Snapshot struct {
	files []VirtualFile
	index map[string]int
}

// New builds a snapshot from files. Later duplicates replace earlier content
// but keep the first position.
func New(files []VirtualFile) *Snapshot {
	s := &Snapshot{index: make(map[string]int, len(files))}
	for _, f := range files {
		s.Put(f.Path, f.Content)
	}
	return s
}

// Len returns the number of files
func (s *Snapshot) Len() int {
	return len(s.files)
}

// Get returns the content of path
func (s *Snapshot) Get(path string) (string, bool) {
	i, ok := s.index[path]
	if !ok {
		return "", false
	}
	return s.files[i].Content, true
}

// Put updates path in place, or appends it when absent.
func (s *Snapshot) Put(path, content string) {
	if i, ok := s.index[path]; ok {
		s.files[i].Content = content
		return
	}
	s.index[path] = len(s.files)
	s.files = append(s.files, VirtualFile{Path: path, Content: content})
}

// Paths returns file paths in snapshot order.
func (s *Snapshot) Paths() []string {
	out := make([]string, len(s.files))
	for i, f := range s.files {
		out[i] = f.Path
	}
	return out
}

// Files returns a copy of the files in snapshot order.
func (s *Snapshot) Files() []VirtualFile {
	out := make([]VirtualFile, len(s.files))
	copy(out, s.files)
	return out
}

// Clone returns an independent copy.
func (s *Snapshot) Clone() *Snapshot {
	return New(s.Files())
}

// Restore replaces the contents of s with the contents of other.
func (s *Snapshot) Restore(other *Snapshot) {
	clone := other.Clone()
	s.files = clone.files
	s.index = clone.index
}

// Filter decides whether a step transforms a file.
type Filter struct {
	// Extensions matched against the path suffix, e.g. ".ts".
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
	// Names matched against the full path, e.g. "package.json".
	Names []string `mapstructure:"names" yaml:"names"`
}

// DefaultFilter selects source, markup and the manifest.
func DefaultFilter() Filter {
	return Filter{
		Extensions: []string{".ts", ".html"},
		Names:      []string{"package.json"},
	}
}

// Match reports whether p is selected by the filter
func (f Filter) Match(p string) bool {
	for _, name := range f.Names {
		if p == name {
			return true
		}
	}
	ext := path.Ext(p)
	for _, e := range f.Extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}
