package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"cantemp"
)

var adaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "List available adapters",
	Run: func(cmd *cobra.Command, args []string) {
		for _, info := range cantemp.ListAdapters() {
			fmt.Println(info.String())
		}
	},
}

func init() {
	rootCmd.AddCommand(adaptersCmd)
}
