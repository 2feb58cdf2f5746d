package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/avelasquez/docqa/internal/docstore"
	"github.com/avelasquez/docqa/internal/ui"
)

// addCmd registers documents with the session.
var addCmd = &cobra.Command{
	Use:   "add <file>...",
	Short: "Add documents to the session",
	Long: `Copy one or more documents into managed storage and register them.

Supported formats are PDF (.pdf) and plain text (.txt, .md). The index is
marked stale; it is rebuilt on the next question.

Examples:
  docqa add report.pdf
  docqa add chapter1.pdf chapter2.pdf notes.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	s, closeFn, err := openSession(false)
	if err != nil {
		return err
	}
	defer closeFn()

	added := 0
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Println(ui.Error.Render(fmt.Sprintf("✗ %s: %v", path, err)))
			continue
		}

		doc, err := s.AddDocument(filepath.Base(path), data)
		if err != nil {
			if errors.Is(err, docstore.ErrDuplicateName) {
				fmt.Println(ui.Warning.Render(fmt.Sprintf("✗ %s: already added (remove it first to replace)", filepath.Base(path))))
			} else {
				fmt.Println(ui.Error.Render(fmt.Sprintf("✗ %s: %v", path, err)))
			}
			continue
		}

		fmt.Printf("%s %s %s\n",
			ui.Success.Render("✓"),
			ui.DocName.Render(doc.Name),
			ui.Dim.Render(fmt.Sprintf("(%s)", formatSize(doc.Size))))
		added++
	}

	if added > 0 {
		fmt.Println()
		fmt.Println(ui.Dim.Render("The index will be rebuilt on the next question."))
	}
	return nil
}

// formatSize renders a byte count for humans.
func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
