package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/avelasquez/docqa/internal/ui"
)

var clearForce bool

// docsCmd lists registered documents.
var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List registered documents",
	RunE:  runDocs,
}

// rmCmd removes one document.
var rmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Remove a document",
	Long: `Remove a document from the session by its registered name.

The index is marked stale. Removing the last document clears the index
entirely.`,
	Args: cobra.ExactArgs(1),
	RunE: runRm,
}

// clearCmd removes everything.
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all documents and the index",
	RunE:  runClear,
}

func init() {
	clearCmd.Flags().BoolVarP(&clearForce, "force", "f", false, "skip the confirmation prompt")
}

func runDocs(cmd *cobra.Command, args []string) error {
	s, closeFn, err := openSession(false)
	if err != nil {
		return err
	}
	defer closeFn()

	docs := s.Documents()
	if len(docs) == 0 {
		fmt.Println("No documents registered.")
		fmt.Println()
		fmt.Println("Run 'docqa add <file>' to add one.")
		return nil
	}

	fmt.Println(ui.Header.Render(fmt.Sprintf("Documents (%d)", len(docs))))
	for _, d := range docs {
		line := fmt.Sprintf("  %s %s",
			ui.DocName.Render(d.Name),
			ui.Dim.Render(fmt.Sprintf("%s  added %s", formatSize(d.Size), d.AddedAt.Local().Format("2006-01-02 15:04"))))

		if _, err := os.Stat(d.Path); err != nil {
			line += " " + ui.Error.Render("(file missing)")
		}
		fmt.Println(line)
	}
	return nil
}

func runRm(cmd *cobra.Command, args []string) error {
	s, closeFn, err := openSession(false)
	if err != nil {
		return err
	}
	defer closeFn()

	name := args[0]
	removed, err := s.RemoveDocument(name)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("no document named %q", name)
	}

	fmt.Printf("%s removed %s\n", ui.Success.Render("✓"), ui.DocName.Render(name))
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	s, closeFn, err := openSession(false)
	if err != nil {
		return err
	}
	defer closeFn()

	count := len(s.Documents())
	if count == 0 {
		fmt.Println("Nothing to clear.")
		return nil
	}

	if !clearForce {
		fmt.Printf("Remove all %d documents and the index? [y/N] ", count)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := s.Clear(); err != nil {
		return err
	}

	fmt.Printf("%s removed %d documents and cleared the index\n", ui.Success.Render("✓"), count)
	return nil
}
