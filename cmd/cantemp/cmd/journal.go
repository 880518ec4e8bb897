package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"cantemp/pkg/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the candidate sighting journal",
}

var journalDumpCmd = &cobra.Command{
	Use:   "dump <db>",
	Short: "Print all journaled sightings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := journal.Open(args[0])
		if err != nil {
			return err
		}
		defer j.Close()

		entries, err := j.Entries()
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s 0x%03X data=%s changed=%v", e.Time.Format("2006-01-02 15:04:05.000"), e.ID, e.Data, e.Changed)
			for i, names := range e.Names {
				for n, name := range names {
					fmt.Printf(" B%d:%s=%.1f°C", i, name, e.Values[i][n])
				}
			}
			fmt.Println()
		}
		fmt.Printf("%d sightings\n", len(entries))
		return nil
	},
}

var journalClearCmd = &cobra.Command{
	Use:   "clear <db>",
	Short: "Drop all journaled sightings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := journal.Open(args[0])
		if err != nil {
			return err
		}
		defer j.Close()
		return j.Clear()
	},
}

func init() {
	journalCmd.AddCommand(journalDumpCmd)
	journalCmd.AddCommand(journalClearCmd)
	rootCmd.AddCommand(journalCmd)
}
