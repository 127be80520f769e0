package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewQueryCmd constructs the `blinkoai query` command, which runs a semantic
// search over the vector index and prints the matching notes.
func NewQueryCmd() *cobra.Command {
	var (
		ownerID  int64
		topK     int
		minScore float64
	)

	cmd := &cobra.Command{
		Use:   "query [text]",
		Short: "Semantically search your notes",
		Long: `Embed the query text, rank candidates from the vector index, and print
the matching notes owned by the given account.

Examples:
  blinkoai query "kubernetes upgrade checklist"
  blinkoai query --top-k 10 --min-score 0.5 "travel plans"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			d, err := buildDeps(ctx)
			if err != nil {
				return err
			}
			defer d.close()

			results, err := d.ranker.Retrieve(ctx, args[0], topK, minScore, ownerID)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(os.Stderr, "no matching notes")
				return nil
			}
			for _, r := range results {
				fmt.Printf("note %d (score %.4f)\n%s\n\n", r.Note.ID, r.Score, r.Note.Content)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&ownerID, "owner", 1, "Account id whose notes are searched")
	cmd.Flags().IntVar(&topK, "top-k", 0, "Number of candidates to rank (0 = configured default)")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "Score threshold; candidates must strictly exceed it (0 = configured default)")

	return cmd
}
