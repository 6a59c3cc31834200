// Command deckflow generates slide decks from a topic: run it once with
// "generate" or serve the API with "serve".
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "deckflow",
		Short:         "Generate presentation decks with LLM agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (env and .env override it)")
	root.AddCommand(
		newGenerateCmd(&configPath),
		newLayoutsCmd(&configPath),
		newDraftsCmd(&configPath),
		newServeCmd(&configPath),
	)
	return root
}
