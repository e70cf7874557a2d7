package stats

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jrcall/jrcall/cmd/util"
	"github.com/jrcall/jrcall/rpc/stats"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// StatsCmd aggregates metadata-wrapped result lines into one summary object
var StatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Compute statistics from results produced by 'call --add-metadata'",
	Long: `Compute summary statistics from metadata-wrapped result lines read from
stdin, as produced by the call command with --add-metadata.

The output is a single JSON object with throughput, latency percentiles,
a maximum-concurrency estimate and byte accounting.`,
	RunE: run,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return util.BindCommandFlags(cmd)
	},
}

func init() {
	key := "csv"
	StatsCmd.Flags().String(key, "", util.WrapString("Optional path to additionally save the per-call samples as CSV"))
}

func run(_ *cobra.Command, _ []string) error {
	accumulator := stats.NewAccumulator()
	if err := accumulator.ReadFrom(os.Stdin); err != nil {
		return err
	}

	report := accumulator.Finalize()
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	fmt.Println(string(data))

	// Export samples to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		return accumulator.WriteCSV(csvPath)
	}
	return nil
}
