package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/avelasquez/docqa/internal/ingest"
	"github.com/avelasquez/docqa/internal/llm"
	"github.com/avelasquez/docqa/internal/ui"
)

var askShowSources bool

// askCmd answers a single question.
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about your documents",
	Long: `Answer a single question using the indexed documents as context.

If the index is stale or missing it is rebuilt first.

Examples:
  docqa ask "what were the key findings?"
  docqa ask "who are the authors" --sources`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVarP(&askShowSources, "sources", "s", true, "show the cited sources under the answer")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	s, closeFn, err := openSession(true)
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

	answer, err := s.Ask(ctx, question)
	if err != nil {
		if errors.Is(err, ingest.ErrNoDocuments) {
			return fmt.Errorf("no documents registered; run 'docqa add <file>' first")
		}
		return err
	}

	printAnswer(answer)
	return nil
}

// printAnswer renders the answer as markdown with its sources.
func printAnswer(answer *llm.Answer) {
	rendered, err := renderMarkdown(answer.Text)
	if err != nil {
		fmt.Println(answer.Text)
	} else {
		fmt.Print(rendered)
	}

	if askShowSources && len(answer.Sources) > 0 {
		fmt.Println(ui.Header.Render("Sources"))
		for i, src := range answer.Sources {
			fmt.Println("  " + ui.FormatSource(i+1, src.Source, src.Index+1, src.Score))
		}
	}
}

// renderMarkdown renders markdown for the terminal.
func renderMarkdown(content string) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", err
	}
	return renderer.Render(content)
}
