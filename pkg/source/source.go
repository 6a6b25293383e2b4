// Package source holds the immutable template files every other package points into.
package source

// File is a template file: its path relative to the analyzed root and its full text.
// Nodes and offenses reference a File, they never copy or own it.
type File struct {
	path   string
	source string
}

func NewFile(path, src string) *File {
	return &File{path: path, source: src}
}

// RelativePath returns the path the file was registered with.
func (f *File) RelativePath() string {
	if f == nil {
		return ""
	}
	return f.path
}

func (f *File) Source() string {
	if f == nil {
		return ""
	}
	return f.source
}

func (f *File) String() string {
	return f.RelativePath()
}
