package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avelasquez/docqa/internal/config"
	"github.com/avelasquez/docqa/internal/session"
	"github.com/avelasquez/docqa/internal/ui"
)

// statusCmd shows the session and index state.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session and index status",
	Long: `Display the current session state:
- Registered documents
- Whether the index is up to date
- The embedding model the index was built with

Examples:
  docqa status`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, closeFn, err := openSession(false)
	if err != nil {
		return err
	}
	defer closeFn()

	status, err := s.Status()
	if err != nil {
		return err
	}

	cfg := config.Get()

	fmt.Println(ui.Header.Render("docqa status"))
	fmt.Printf("  State:     %s\n", renderState(status.State))
	fmt.Printf("  Documents: %d\n", status.DocumentCount)
	fmt.Printf("  Storage:   %s\n", ui.Dim.Render(cfg.Storage.Root))
	fmt.Printf("  Index:     %s\n", ui.Dim.Render(cfg.Storage.Index))

	if status.Index != nil {
		fmt.Println()
		fmt.Println(ui.Header.Render("Index"))
		fmt.Printf("  Built:      %s\n", status.Index.BuiltAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("  Chunks:     %d\n", status.Index.ChunkCount)
		fmt.Printf("  Documents:  %d\n", status.Index.DocumentCount)
		fmt.Printf("  Embeddings: %s/%s (%d dimensions)\n",
			status.Index.EmbeddingProvider, status.Index.EmbeddingModel, status.Index.EmbeddingDimensions)
	}

	if status.State == session.StatePending {
		fmt.Println()
		fmt.Println(ui.Warning.Render("The index is out of date; it will be rebuilt on the next question."))
	}

	return nil
}

func renderState(s session.State) string {
	switch s {
	case session.StateReady:
		return ui.Success.Render(string(s))
	case session.StatePending:
		return ui.Warning.Render(string(s))
	default:
		return ui.Dim.Render(string(s))
	}
}
