// Package extract turns document files into ordered page text.
package extract

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// ExtractionError indicates that a document could not be read or parsed.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor produces the ordered page text of a single document file.
type Extractor interface {
	// Supports reports whether this extractor handles the given file name.
	Supports(name string) bool

	// Extract returns the document's text, one entry per page, in reading
	// order.
	Extract(path string) ([]string, error)
}

// Chain is an ordered list of extraction strategies. Extract tries each
// extractor that supports the file until one succeeds.
type Chain []Extractor

// DefaultChain returns the built-in extractor chain.
func DefaultChain() Chain {
	return Chain{
		&PDFExtractor{},
		&PlainTextExtractor{},
	}
}

// Extract runs the chain against the given path.
func (c Chain) Extract(path string) ([]string, error) {
	name := filepath.Base(path)

	var lastErr error
	tried := false
	for _, ex := range c {
		if !ex.Supports(name) {
			continue
		}
		tried = true

		pages, err := ex.Extract(path)
		if err != nil {
			lastErr = err
			log.Debug("Extractor failed, trying next", "path", path, "error", err)
			continue
		}
		return pages, nil
	}

	if !tried {
		return nil, &ExtractionError{
			Path: path,
			Err:  fmt.Errorf("unsupported file type %q", filepath.Ext(name)),
		}
	}
	return nil, lastErr
}
