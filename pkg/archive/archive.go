// Package archive loads packaged themes so their templates can be checked without
// unpacking them to disk.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"path"
	"strings"

	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

var (
	ErrUnsafePath   = errors.Base("archive entry escapes the archive root")
	ErrFileTooLarge = errors.Base("archive entry too large")
)

// DefaultMaxFileSize bounds a single extracted template.
const DefaultMaxFileSize = 8 << 20

type Options struct {
	// StripComponents removes that many leading path components from every entry, like
	// tar's --strip-components.
	StripComponents int

	// MaxFileSize bounds the size of a single entry. Zero means DefaultMaxFileSize.
	MaxFileSize int64

	// Filter skips the entries it returns false for.
	Filter func(name string) bool
}

// LoadTarGz reads a gzipped tarball into an in-memory filesystem rooted at the archive root.
func LoadTarGz(r io.Reader, opts Options) (afero.Fs, error) {
	if opts.MaxFileSize == 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}

	gzr, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Errorf("opening gzip stream: %w", err)
	}
	defer gzr.Close()

	fs := afero.NewMemMapFs()
	tr := tar.NewReader(gzr)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		// insecure names are rejected below with a clearer error
		if err != nil && !errors.Is(err, tar.ErrInsecurePath) {
			return nil, errors.Errorf("reading tar: %w", err)
		}

		name, ok, err := entryName(header.Name, opts.StripComponents)
		if err != nil {
			return nil, err
		}
		if !ok || (opts.Filter != nil && !opts.Filter(name)) {
			continue
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := fs.MkdirAll(name, 0o755); err != nil {
				return nil, errors.Errorf("creating directory %s: %w", name, err)
			}
		case tar.TypeReg:
			if header.Size > opts.MaxFileSize {
				return nil, errors.WithDetails(ErrFileTooLarge, "name", name, "size", header.Size, "max", opts.MaxFileSize)
			}
			if err := fs.MkdirAll(path.Dir(name), 0o755); err != nil {
				return nil, errors.Errorf("creating directory %s: %w", path.Dir(name), err)
			}
			data, err := io.ReadAll(io.LimitReader(tr, opts.MaxFileSize))
			if err != nil {
				return nil, errors.Errorf("reading %s: %w", name, err)
			}
			if err := afero.WriteFile(fs, name, data, 0o644); err != nil {
				return nil, errors.Errorf("writing %s: %w", name, err)
			}
		}
	}

	return fs, nil
}

// entryName cleans an entry name and strips its leading components. ok is false when
// nothing is left after stripping.
func entryName(name string, strip int) (string, bool, error) {
	components := splitPath(name)
	for _, c := range components {
		if c == ".." {
			return "", false, errors.WithDetails(ErrUnsafePath, "name", name)
		}
	}
	if len(components) <= strip {
		return "", false, nil
	}
	return path.Join(components[strip:]...), true, nil
}

func splitPath(name string) []string {
	var components []string
	for _, c := range strings.Split(strings.Trim(name, "/"), "/") {
		if c != "" && c != "." {
			components = append(components, c)
		}
	}
	return components
}
