package commands

import (
	"github.com/spf13/cobra"

	"github.com/tassa-yoniso-manasi-karoto/atci/internal/version"
)

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the atci version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		info := version.GetInfo()
		if versionJSON {
			out, err := info.ToJSON()
			if err != nil {
				exitWithError(err)
			}
			printf("%s\n", out)
			return
		}
		printf("%s\n", info.String())
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print version info as JSON")
}
