package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCommentCmd constructs the `blinkoai comment` command, which generates
// an AI comment on a note and persists it.
func NewCommentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comment [note-id] [prompt]",
		Short: "Generate and persist an AI comment on a note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			d, err := buildDeps(ctx)
			if err != nil {
				return err
			}
			defer d.close()

			comment, err := d.orchestrator.Comment(ctx, id, args[1])
			if err != nil {
				return err
			}
			fmt.Printf("comment %d created on note %d:\n%s\n", comment.ID, comment.NoteID, comment.Content)
			return nil
		},
	}
}
