package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewEmojiCmd constructs the `blinkoai emoji` command, which suggests emojis
// matching the content's tone.
func NewEmojiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "emoji [content]",
		Short: "Suggest emojis for note content",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			d, err := buildDeps(ctx)
			if err != nil {
				return err
			}
			defer d.close()

			emojis, err := d.orchestrator.AutoEmoji(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(strings.Join(emojis, " "))
			return nil
		},
	}
}
