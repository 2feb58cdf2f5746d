package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/avelasquez/docqa/internal/config"
	"github.com/avelasquez/docqa/internal/session"
	"github.com/avelasquez/docqa/internal/tui"
	"github.com/avelasquez/docqa/internal/ui"
	"github.com/avelasquez/docqa/internal/watch"
)

var chatPlain bool

// chatCmd opens an interactive chat over the documents.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with your documents",
	Long: `Open an interactive chat session.

While the chat is running the managed storage directory is watched; documents
changed on disk out of band mark the index stale so the next question picks
them up.

Examples:
  docqa chat
  docqa chat --plain   # line-based prompt without the full-screen UI`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "use a plain line-based prompt")
}

func runChat(cmd *cobra.Command, args []string) error {
	s, closeFn, err := openSession(true)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startDocumentWatcher(ctx, s)

	summary := fmt.Sprintf("%d documents · embeddings %s · llm %s",
		len(s.Documents()), config.Get().Embeddings.Provider, config.Get().LLM.Provider)

	if chatPlain {
		return runPlainChat(ctx, s)
	}
	return tui.Run(s, summary)
}

// startDocumentWatcher watches the storage root and refreshes the session
// when files change out of band.
func startDocumentWatcher(ctx context.Context, s *session.Session) {
	w, err := watch.New(config.Get().Storage.Root, func(names []string) {
		log.Debug("Documents changed on disk", "files", strings.Join(names, ", "))
		s.MarkStale()
	})
	if err != nil {
		log.Warn("Document watching disabled", "error", err)
		return
	}

	go func() {
		if err := w.Start(ctx); err != nil && ctx.Err() == nil {
			log.Warn("Document watcher stopped", "error", err)
		}
	}()
}

// runPlainChat is a line-based fallback for terminals where the full-screen
// UI is unwanted.
func runPlainChat(ctx context.Context, s *session.Session) error {
	fmt.Println(ui.Header.Render("docqa chat") + ui.Dim.Render("  (empty line or Ctrl-D to quit)"))

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return nil
		}

		question := strings.TrimSpace(line)
		if question == "" {
			return nil
		}

		answer, err := s.Ask(ctx, question)
		if err != nil {
			fmt.Println(ui.Error.Render("Error: " + err.Error()))
			continue
		}

		printAnswer(answer)
		fmt.Println()
	}
}
