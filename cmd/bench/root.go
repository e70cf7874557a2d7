package bench

import (
	"os"

	"github.com/jrcall/jrcall/cmd/util"
	"github.com/jrcall/jrcall/rpc/bench"
	"github.com/jrcall/jrcall/rpc/channel"
	"github.com/jrcall/jrcall/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
)

var Logger = logger.GetLogger("cmd")

var (
	// BenchCmd benchmarks servers with the single-threaded event-loop engine
	BenchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Benchmark JSON-RPC servers with requests read from stdin",
		Long: `Benchmark JSON-RPC servers by executing a stream of newline-delimited
requests read from stdin.

All requests are read upfront, then a single event loop drives one
connection per server: each request goes to the connection with the
fewest in-flight calls, and the total number of in-flight calls never
exceeds the concurrency budget. Every request must carry a unique id;
notifications and batch requests are rejected.

The output is one JSON object per call, merging the request and response
members with the server address, byte sizes and timestamps.`,
		RunE:    run,
		PreRunE: processConfig,
	}
	config *common.BenchConfig
)

func init() {
	util.SetupServerFlags(BenchCmd)

	key := "concurrency"
	BenchCmd.Flags().Int(key, 1, util.WrapString("Maximum number of in-flight requests across all connections"))
	key = "dry-run"
	BenchCmd.Flags().Bool(key, false, util.WrapString("Synthesize responses locally instead of opening connections"))
}

func processConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	config, err = util.GetBenchConfig()
	return err
}

func run(_ *cobra.Command, _ []string) error {
	Logger.Debugf("Configuration:%s", config.String())

	var (
		driver channel.IChannelIODriver
		err    error
	)
	if config.DryRun {
		driver = channel.NewSimDriver(len(config.Servers))
	} else {
		driver, err = channel.NewNetDriver(config.Servers)
		if err != nil {
			return err
		}
	}
	defer driver.Close()

	engine := bench.NewEngine(*config, driver)
	if err := engine.ReadRequests(os.Stdin); err != nil {
		return err
	}
	if err := engine.Run(); err != nil {
		return err
	}
	return engine.WriteResults(os.Stdout)
}
