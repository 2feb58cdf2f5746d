package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// PDFExtractor extracts page text from PDF documents.
type PDFExtractor struct{}

// Supports reports whether the file name has a .pdf extension.
func (p *PDFExtractor) Supports(name string) bool {
	return strings.ToLower(filepath.Ext(name)) == ".pdf"
}

// Extract returns one text entry per PDF page, in page order. Pages whose
// text cannot be extracted are skipped; an unreadable or corrupt document
// fails as a whole.
func (p *PDFExtractor) Extract(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: err}
	}
	defer f.Close()

	reader, err := model.NewPdfReader(f)
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: fmt.Errorf("parse pdf: %w", err)}
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: fmt.Errorf("page count: %w", err)}
	}

	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			log.Debug("Skipping unreadable page", "path", path, "page", i, "error", err)
			continue
		}

		ex, err := extractor.New(page)
		if err != nil {
			log.Debug("Skipping page without extractor", "path", path, "page", i, "error", err)
			continue
		}

		text, err := ex.ExtractText()
		if err != nil {
			log.Debug("Skipping page with failed extraction", "path", path, "page", i, "error", err)
			continue
		}

		pages = append(pages, text)
	}

	return pages, nil
}
