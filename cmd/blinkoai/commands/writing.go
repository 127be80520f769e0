package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/blinko-space/blinko-ai/internal/agent"
)

// NewWritingCmd constructs the `blinkoai writing` command, which runs the
// writing assistant and streams the result to stdout.
func NewWritingCmd() *cobra.Command {
	var (
		mode    string
		content string
	)

	cmd := &cobra.Command{
		Use:   "writing [instruction]",
		Short: "Expand, polish, or draft note content",
		Long: `Run the writing assistant. --mode selects the behavior:

  expand  add details and examples to the note content
  polish  optimize wording while keeping the core meaning
  custom  general-purpose writing guided by the instruction

Example:
  blinkoai writing --mode polish --content "$(cat draft.md)" "tighten this up"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			d, err := buildDeps(ctx)
			if err != nil {
				return err
			}
			defer d.close()

			return d.orchestrator.Writing(ctx, agent.WritingMode(mode), args[0], content, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(agent.WritingCustom), "Writing mode: expand, polish, or custom")
	cmd.Flags().StringVar(&content, "content", "", "Existing note content the assistant works from")

	return cmd
}
