package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blinko-space/blinko-ai/internal/rebuild"
)

// NewRebuildCmd constructs the `blinkoai rebuild` command, which re-embeds
// every non-recycled note and streams per-item progress to stdout.
func NewRebuildCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the vector index from all notes",
		Long: `Walk every non-recycled note (and its attachments), re-embed the content,
and upsert the vectors. Already-indexed notes are skipped unless --force is
given, in which case the collection is destroyed and recreated first.

A per-item failure is reported and the rebuild continues; one bad note never
aborts the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			d, err := buildDeps(ctx)
			if err != nil {
				return err
			}
			defer d.close()

			var errCount int
			for ev := range d.rebuilder.Rebuild(ctx, force) {
				switch ev.Kind {
				case rebuild.KindSkip:
					fmt.Printf("[%d/%d] skip    %s\n", ev.Progress.Current, ev.Progress.Total, ev.Label)
				case rebuild.KindSuccess:
					fmt.Printf("[%d/%d] ok      %s\n", ev.Progress.Current, ev.Progress.Total, ev.Label)
				case rebuild.KindError:
					errCount++
					fmt.Fprintf(os.Stderr, "[%d/%d] error   %s: %v\n", ev.Progress.Current, ev.Progress.Total, ev.Label, ev.Err)
				}
			}
			if errCount > 0 {
				return fmt.Errorf("rebuild finished with %d errors", errCount)
			}
			fmt.Println("rebuild complete")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Destroy and recreate the collection, re-embedding every note")

	return cmd
}
