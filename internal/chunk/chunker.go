// Package chunk splits extracted document text into overlapping windows.
package chunk

import (
	"strings"
	"unicode/utf8"
)

// Options configures the splitter.
type Options struct {
	// Size is the target chunk size in runes.
	Size int

	// Overlap is the number of overlapping runes carried into the next chunk.
	Overlap int

	// Min is the minimum chunk size. A smaller trailing chunk is merged into
	// its predecessor.
	Min int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Size:    1000,
		Overlap: 200,
		Min:     100,
	}
}

// Splitter splits text into overlapping chunks, preserving reading order.
type Splitter struct {
	opts Options
}

// NewSplitter creates a splitter, applying defaults for zero values.
func NewSplitter(opts Options) *Splitter {
	def := DefaultOptions()
	if opts.Size <= 0 {
		opts.Size = def.Size
	}
	if opts.Overlap < 0 {
		opts.Overlap = def.Overlap
	}
	if opts.Min <= 0 {
		opts.Min = def.Min
	}
	return &Splitter{opts: opts}
}

// Split chunks text at line granularity. Each chunk targets Size runes; the
// last Overlap runes of a chunk reappear at the start of the next one so no
// passage is fully lost at a boundary.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	lines := strings.Split(text, "\n")

	var chunks []string
	var current []string
	currentSize := 0

	for _, line := range lines {
		lineLen := utf8.RuneCountInString(line) + 1 // +1 for newline

		if currentSize+lineLen > s.opts.Size && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n"))

			overlap, overlapSize := s.overlapLines(current)
			current = make([]string, len(overlap))
			copy(current, overlap)
			currentSize = overlapSize
		}

		current = append(current, line)
		currentSize += lineLen
	}

	if len(current) > 0 {
		tail := strings.Join(current, "\n")
		if len(chunks) == 0 || utf8.RuneCountInString(tail) >= s.opts.Min {
			chunks = append(chunks, tail)
		} else {
			// Merge a too-small tail into the previous chunk
			chunks[len(chunks)-1] += "\n" + tail
		}
	}

	return chunks
}

// overlapLines returns the trailing lines to carry into the next chunk and
// their total rune size.
func (s *Splitter) overlapLines(lines []string) ([]string, int) {
	if s.opts.Overlap <= 0 || len(lines) == 0 {
		return nil, 0
	}

	var overlap []string
	size := 0
	for i := len(lines) - 1; i >= 0 && size < s.opts.Overlap; i-- {
		overlap = append([]string{lines[i]}, overlap...)
		size += utf8.RuneCountInString(lines[i]) + 1
	}
	return overlap, size
}
