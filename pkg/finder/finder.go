// Package finder locates the templates to check.
package finder

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmplcheck/pkg/source"
)

const DefaultPattern = "**/*.liquid"

// Finder expands files, directories and doublestar globs into templates.
type Finder struct {
	fs      afero.Fs
	pattern string
}

// New returns a Finder reading fs. Directories are searched for files matching pattern,
// DefaultPattern when empty.
func New(fs afero.Fs, pattern string) *Finder {
	if pattern == "" {
		pattern = DefaultPattern
	}
	return &Finder{fs: fs, pattern: pattern}
}

// FindTemplates returns the templates named by paths, sorted by path. No paths means the
// current directory.
func (f *Finder) FindTemplates(ctx context.Context, paths []string) ([]*source.File, error) {
	names, err := f.FindPaths(ctx, paths)
	if err != nil {
		return nil, err
	}

	files := make([]*source.File, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := afero.ReadFile(f.fs, name)
		if err != nil {
			return nil, errors.Errorf("reading %s: %w", name, err)
		}
		files = append(files, source.NewFile(name, string(data)))
	}
	return files, nil
}

func (f *Finder) FindPaths(ctx context.Context, paths []string) ([]string, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}

	seen := map[string]bool{}
	var out []string
	add := func(matches []string) {
		for _, path := range matches {
			path = filepath.Clean(path)
			if !seen[path] {
				seen[path] = true
				out = append(out, path)
			}
		}
	}

	for _, path := range paths {
		if hasMeta(path) {
			pattern := filepath.ToSlash(filepath.Clean(path))
			base, _ := doublestar.SplitPattern(pattern)
			matches, err := f.walk(ctx, base, pattern, true)
			if err != nil {
				return nil, err
			}
			add(matches)
			continue
		}

		info, err := f.fs.Stat(path)
		if err != nil {
			return nil, errors.Errorf("reading %s: %w", path, err)
		}
		if !info.IsDir() {
			add([]string{path})
			continue
		}

		matches, err := f.walk(ctx, path, f.pattern, false)
		if err != nil {
			return nil, err
		}
		add(matches)
	}

	sort.Strings(out)
	return out, nil
}

func hasMeta(path string) bool {
	for _, c := range path {
		switch c {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

// walk returns the files under root matching pattern. Full patterns are matched against the
// walked path, others against the path relative to root.
func (f *Finder) walk(ctx context.Context, root, pattern string, full bool) ([]string, error) {
	var out []string
	err := afero.Walk(f.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		name := filepath.ToSlash(path)
		if !full {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			name = filepath.ToSlash(rel)
		}

		ok, err := doublestar.Match(pattern, name)
		if err != nil {
			return errors.Errorf("matching %s: %w", pattern, err)
		}
		if ok {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Errorf("walking %s: %w", root, err)
	}
	return out, nil
}
