package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/omekalink/cmd/omekalink/commands"
	"github.com/teranos/omekalink/errors"
	"github.com/teranos/omekalink/logger"
)

var rootCmd = &cobra.Command{
	Use:   "omekalink",
	Short: "omekalink - Omeka S linked-data maintenance",
	Long: `omekalink - Omeka S linked-data maintenance.

Streams items from an Omeka S instance page by page and keeps item set
membership, media and titles in step with the relations between items.

Available commands:
  link    - Add items referenced by contributor properties to item sets
  media   - Copy media from referenced image items
  titles  - Copy titles from another instance
  am      - Inspect configuration ("I am")
  version - Show build information

Examples:
  omekalink link --target artists=12    # Add every referenced artist to item set 12
  omekalink am show                     # Show current configuration
  omekalink media deref --source 3      # Dereference image items of item set 3`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// version never touches configuration
		if cmd.Name() == "version" {
			return nil
		}
		return commands.InitLogging(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	commands.AddGlobalFlags(rootCmd)

	rootCmd.AddCommand(commands.LinkCmd)
	rootCmd.AddCommand(commands.MediaCmd)
	rootCmd.AddCommand(commands.TitlesCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		logger.Cleanup()
		os.Exit(1)
	}
}

// printError writes err and any hints attached to it
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	for _, hint := range errors.GetAllHints(err) {
		fmt.Fprintf(w, "Hint: %s\n", hint)
	}
}
