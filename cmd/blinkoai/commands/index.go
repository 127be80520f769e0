package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blinko-space/blinko-ai/internal/pipeline"
)

// NewIndexCmd constructs the `blinkoai index` command with its subcommands
// for indexing a single note and removing a note's vectors.
func NewIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the vector index for individual notes",
	}
	cmd.AddCommand(newIndexNoteCmd(), newIndexDeleteCmd(), newIndexTruncateCmd())
	return cmd
}

// newIndexNoteCmd embeds one note's content into the vector index.
func newIndexNoteCmd() *cobra.Command {
	var update bool

	cmd := &cobra.Command{
		Use:   "note [id]",
		Short: "Embed a note into the vector index",
		Args:  cobra.ExactArgs(1),
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

			n, err := d.store.Note(ctx, id)
			if err != nil {
				return err
			}
			mode := pipeline.ModeInsert
			if update {
				mode = pipeline.ModeUpdate
			}
			if err := d.pipeline.UpsertNote(ctx, n.ID, n.Content, mode, n.UpdatedAt); err != nil {
				return err
			}
			for _, a := range n.Attachments {
				if err := d.pipeline.UpsertAttachment(ctx, n.ID, a.Path, n.UpdatedAt); err != nil {
					return err
				}
			}
			fmt.Printf("indexed note %d (%d attachments)\n", n.ID, len(n.Attachments))
			return nil
		},
	}

	cmd.Flags().BoolVar(&update, "update", false, "Replace the note's existing vectors instead of inserting fresh ones")

	return cmd
}

// newIndexDeleteCmd removes all vectors stored for a note.
func newIndexDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Remove a note's vectors from the index",
		Args:  cobra.ExactArgs(1),
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

			if err := d.pipeline.DeleteNote(ctx, id); err != nil {
				return err
			}
			fmt.Printf("deleted vectors for note %d\n", id)
			return nil
		},
	}
}

// newIndexTruncateCmd clears the whole collection.
func newIndexTruncateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "truncate",
		Short: "Remove all vectors from the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			d, err := buildDeps(ctx)
			if err != nil {
				return err
			}
			defer d.close()

			if err := d.pipeline.DeleteAll(ctx); err != nil {
				return err
			}
			fmt.Println("index truncated")
			return nil
		},
	}
}

// parseID parses a positional note id argument.
func parseID(s string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid note id %q", s)
	}
	return id, nil
}
