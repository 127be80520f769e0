// Package commands defines all Cobra CLI commands for the blinkoai binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/blinko-space/blinko-ai/internal/audit"
	"github.com/blinko-space/blinko-ai/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// notesDBPath holds the --notes-db flag value for the note store location.
var notesDBPath string

// filesRoot holds the --files-root flag value for attachment resolution.
var filesRoot string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "blinkoai",
		Short: "Blinko AI — semantic indexing and RAG for your notes",
		Long: `Blinko AI turns free-text notes and their attachments into searchable
vector embeddings, retrieves semantically relevant notes for a query, and
runs specialized agents (chat, tagging, emoji, writing, commenting) on top.

Model provider is selected via a YAML config file (~/.blinko-ai/config.yaml)
or environment variables (env vars always override YAML values).
See 'blinkoai --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()
			cmd.SetContext(logging.WithLogger(cmd.Context(), log))

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), configPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.blinko-ai/config.yaml)")
	root.PersistentFlags().StringVar(&notesDBPath, "notes-db", "blinko-notes.db", "Path to the SQLite note store")
	root.PersistentFlags().StringVar(&filesRoot, "files-root", ".", "Root directory for attachment files")

	root.AddCommand(
		NewChatCmd(),
		NewQueryCmd(),
		NewIndexCmd(),
		NewRebuildCmd(),
		NewTagCmd(),
		NewEmojiCmd(),
		NewWritingCmd(),
		NewCommentCmd(),
		NewVersionCmd(),
	)

	return root
}
