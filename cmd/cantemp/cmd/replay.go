package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cantemp"
	"cantemp/pkg/analyze"
)

var replayCmd = &cobra.Command{
	Use:   "replay <logfile>",
	Short: "Run the analyzer over a candump log",
	Long: `Feeds a candump -L style log through the same analysis as the live
monitor and prints the candidate lines plus a final activity summary.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := adapterConfig(cmd)
		if err != nil {
			return err
		}
		cfg.Port = args[0]

		an, err := newAnalyzer(cmd)
		if err != nil {
			return err
		}

		err = replayLog(cmd.Context(), cfg, an, func(rep analyze.Report) {
			if rep.Candidate && len(rep.Changed) > 0 {
				fmt.Println(rep.String())
			}
		})
		if err != nil {
			return err
		}
		printSummary(an)
		return nil
	},
}

func init() {
	f := replayCmd.Flags()
	f.Int(flagDepth, 0, "history depth per identifier (0 = default)")
	f.Int(flagCapacity, 0, "max tracked identifiers (0 = default)")
	rootCmd.AddCommand(replayCmd)
}

// replayLog runs every frame of the log through the analyzer. The
// replay adapter blocks on delivery and closes its receive channel at
// end of log, so reading the adapter directly analyzes the complete
// log in order; there is no real-time constraint offline and nothing
// may be dropped.
func replayLog(ctx context.Context, cfg *cantemp.AdapterConfig, an *analyze.Analyzer, sink func(analyze.Report)) error {
	dev, err := cantemp.NewAdapter("Replay", cfg)
	if err != nil {
		return err
	}
	if err := dev.Open(ctx); err != nil {
		return err
	}
	defer dev.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-dev.Err():
			if err != nil && !cantemp.IsRecoverable(err) {
				return err
			}
		case frame, ok := <-dev.Recv():
			if !ok {
				// Stream complete. A read failure may still be pending
				// behind the buffered frames.
				select {
				case err := <-dev.Err():
					if err != nil && !cantemp.IsRecoverable(err) {
						return err
					}
				default:
				}
				return nil
			}
			sink(an.Analyze(frame))
		}
	}
}
