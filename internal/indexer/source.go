package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

// DefaultExtensions are the file types imported when none are given.
var DefaultExtensions = []string{".md", ".markdown", ".txt"}

// Document is one file read from a Source.
type Document struct {
	// Path is slash separated and relative to the source root.
	Path    string
	Content string
}

// Source lists and reads note files.
type Source interface {
	ListDocs(ctx context.Context) ([]string, error)
	FetchDoc(ctx context.Context, path string) (*Document, error)
}

// DirSource reads note files from a directory tree.
type DirSource struct {
	fsys       fs.FS
	extensions map[string]struct{}
}

// NewDirSource creates a source rooted at dir. Only files whose extension is
// in exts are listed; nil selects DefaultExtensions.
func NewDirSource(dir string, exts []string) (*DirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open source directory: %s is not a directory", dir)
	}
	return NewFSSource(os.DirFS(dir), exts), nil
}

// NewFSSource creates a source over an arbitrary file system.
func NewFSSource(fsys fs.FS, exts []string) *DirSource {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = struct{}{}
	}
	return &DirSource{fsys: fsys, extensions: set}
}

// ListDocs walks the tree and returns matching file paths, sorted. Hidden
// files and directories are skipped.
func (s *DirSource) ListDocs(ctx context.Context) ([]string, error) {
	var paths []string
	err := fs.WalkDir(s.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p != "." && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := s.extensions[strings.ToLower(path.Ext(p))]; ok {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk source: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// FetchDoc reads a single file.
func (s *DirSource) FetchDoc(ctx context.Context, p string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(s.fsys, p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return &Document{Path: p, Content: string(data)}, nil
}

// CollectionName derives the collection a file is stored under: its path
// without the extension, e.g. "journal/2024-05-01.md" becomes "journal/2024-05-01".
func CollectionName(p string) string {
	return strings.TrimSuffix(p, path.Ext(p))
}
