// Command blinkoai is the entry point for the Blinko semantic indexing and
// RAG subsystem. It provides a CLI interface (via Cobra) for indexing notes,
// querying them semantically, and running the AI agents.
package main

import (
	"fmt"
	"os"

	"github.com/blinko-space/blinko-ai/cmd/blinkoai/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
