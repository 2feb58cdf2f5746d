package extract

import (
	"os"
	"path/filepath"
	"strings"
)

// PlainTextExtractor passes through plain text and markdown files as a
// single page.
type PlainTextExtractor struct{}

// Supports reports whether the file name has a plain text extension.
func (p *PlainTextExtractor) Supports(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".markdown":
		return true
	}
	return false
}

// Extract reads the whole file as one page.
func (p *PlainTextExtractor) Extract(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: err}
	}
	return []string{string(data)}, nil
}
