package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewChatCmd constructs the `blinkoai chat` command, which answers a single
// question grounded in the owner's notes and streams the response to stdout.
func NewChatCmd() *cobra.Command {
	var (
		ownerID   int64
		withTools bool
	)

	cmd := &cobra.Command{
		Use:   "chat [question]",
		Short: "Chat with the AI assistant about your notes",
		Long: `Ask the assistant a question. Relevant notes are retrieved from the
vector index and injected as context, so answers are grounded in your own
notes.

Examples:
  blinkoai chat "what did I write about the garden project?"
  blinkoai chat --with-tools "save a note reminding me to water the plants"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			d, err := buildDeps(ctx)
			if err != nil {
				return err
			}
			defer d.close()

			results, err := d.orchestrator.Chat(ctx, nil, args[0], ownerID, withTools, os.Stdout)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "\n\n(%d notes used as context)\n", len(results))
			return nil
		},
	}

	cmd.Flags().Int64Var(&ownerID, "owner", 1, "Account id whose notes are searched")
	cmd.Flags().BoolVar(&withTools, "with-tools", false, "Allow the assistant to create notes")

	return cmd
}
