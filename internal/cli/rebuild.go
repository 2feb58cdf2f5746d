package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/avelasquez/docqa/internal/ingest"
	"github.com/avelasquez/docqa/internal/kb"
	"github.com/avelasquez/docqa/internal/ui"
)

// rebuildCmd rebuilds the index immediately instead of waiting for the next
// question.
var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the index now",
	Long: `Ingest every registered document and rebuild the vector index.

Normally the rebuild happens lazily on the next question; this command runs
it eagerly, for example after adding a large batch of documents.`,
	RunE: runRebuild,
}

func runRebuild(cmd *cobra.Command, args []string) error {
	s, closeFn, err := openSession(false)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted")
		cancel()
	}()

	failures, err := s.Rebuild(ctx)
	for _, f := range failures {
		fmt.Println(ui.Warning.Render(fmt.Sprintf("skipped %s: %s", f.Name, f.Reason)))
	}
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrNoDocuments):
			return fmt.Errorf("no documents registered; run 'docqa add <file>' first")
		case errors.Is(err, kb.ErrRebuildInProgress):
			return fmt.Errorf("another rebuild is already running")
		}
		return err
	}

	status, err := s.Status()
	if err != nil {
		return err
	}
	if status.Index != nil {
		fmt.Printf("%s indexed %d chunks from %d documents\n",
			ui.Success.Render("✓"), status.Index.ChunkCount, status.Index.DocumentCount)
	}
	return nil
}
