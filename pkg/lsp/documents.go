package lsp

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/walteh/tmplcheck/pkg/analyzer"
	"github.com/walteh/tmplcheck/pkg/source"
)

// normalizeURI strips the file scheme so the same document opened through different URI
// spellings maps to one entry.
func normalizeURI(uri string) string {
	uri = strings.TrimPrefix(uri, "file://")
	uri = strings.TrimPrefix(uri, "file:")
	return uri
}

// Document is an open template and what the last analysis found in it.
type Document struct {
	URI     string
	Version int32
	File    *source.File
	// Result is nil when the last analysis failed.
	Result *analyzer.Result
}

// DocumentManager holds the documents the client has open.
type DocumentManager struct {
	store *sync.Map // map[string]*Document
}

func NewDocumentManager() *DocumentManager {
	return &DocumentManager{
		store: &sync.Map{},
	}
}

func (m *DocumentManager) Get(uri string) (*Document, bool) {
	doc, ok := m.store.Load(normalizeURI(uri))
	if !ok {
		return nil, false
	}
	return doc.(*Document), true
}

// Store keeps doc unless a newer version of the same document is already stored.
func (m *DocumentManager) Store(doc *Document) bool {
	key := normalizeURI(doc.URI)
	for {
		prev, loaded := m.store.LoadOrStore(key, doc)
		if !loaded {
			return true
		}
		if prev.(*Document).Version > doc.Version {
			return false
		}
		if m.store.CompareAndSwap(key, prev, doc) {
			return true
		}
	}
}

func (m *DocumentManager) Delete(uri string) {
	m.store.Delete(normalizeURI(uri))
}

// relativePath returns the path of uri relative to root when uri lies under it.
func relativePath(root, uri string) string {
	path := normalizeURI(uri)
	if root == "" {
		return path
	}
	rel, err := filepath.Rel(normalizeURI(root), path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}
