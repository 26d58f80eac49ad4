// Command atci runs the transcript-and-clipping service CLI.
package main

import (
	"os"

	"github.com/tassa-yoniso-manasi-karoto/atci/internal/cli/commands"
)

func main() {
	if err := commands.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
