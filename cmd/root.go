package cmd

import (
	"fmt"
	"os"

	"github.com/jrcall/jrcall/cmd/bench"
	"github.com/jrcall/jrcall/cmd/call"
	"github.com/jrcall/jrcall/cmd/echo"
	"github.com/jrcall/jrcall/cmd/req"
	"github.com/jrcall/jrcall/cmd/stats"
	"github.com/jrcall/jrcall/cmd/util"
	"github.com/jrcall/jrcall/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "jrcall",
		Short: "JSON-RPC 2.0 command line client and benchmark tool",
		Long: fmt.Sprintf(`jrcall (v%s)

A command line client for JSON-RPC 2.0 servers speaking the JSON Lines
framing over TCP: execute request streams, benchmark servers with
pipelined connections and aggregate the results.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of jrcall",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("jrcall v%s\n", Version)
		},
	}
)

func init() {
	RootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		util.InitConfig()
		if err := viper.BindPFlags(RootCmd.PersistentFlags()); err != nil {
			return err
		}
		common.InitLoggers(viper.GetString("log-level"))
		return nil
	}

	// Add Commands
	RootCmd.AddCommand(call.CallCmd)
	RootCmd.AddCommand(bench.BenchCmd)
	RootCmd.AddCommand(stats.StatsCmd)
	RootCmd.AddCommand(req.ReqCmd)
	RootCmd.AddCommand(echo.EchoCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "log-level"
	RootCmd.PersistentFlags().String(key, "warn", util.WrapString("Log verbosity on stderr (debug, info, warn, error). stdout is reserved for the data stream"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
