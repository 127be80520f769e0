package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewTagCmd constructs the `blinkoai tag` command, which suggests tags for
// the given content using the tag agent.
func NewTagCmd() *cobra.Command {
	var existing []string

	cmd := &cobra.Command{
		Use:   "tag [content]",
		Short: "Suggest tags for note content",
		Long: `Run the tagging agent on the given content. Existing tags can be passed
with --tags; new tags follow the #category/subcategory convention.

Example:
  blinkoai tag --tags "#technology/ai,#life" "Notes from the eino workshop"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			d, err := buildDeps(ctx)
			if err != nil {
				return err
			}
			defer d.close()

			tags, err := d.orchestrator.AutoTag(ctx, args[0], existing)
			if err != nil {
				return err
			}
			fmt.Println(strings.Join(tags, ", "))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&existing, "tags", nil, "Existing tag vocabulary the agent may pick from")

	return cmd
}
