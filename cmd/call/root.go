package call

import (
	"os"

	"github.com/jrcall/jrcall/cmd/util"
	"github.com/jrcall/jrcall/rpc/common"
	"github.com/jrcall/jrcall/rpc/stream"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
)

var Logger = logger.GetLogger("cmd")

var (
	// CallCmd executes a stream of JSON-RPC calls read from stdin
	CallCmd = &cobra.Command{
		Use:   "call",
		Short: "Execute JSON-RPC calls read from stdin",
		Long: `Execute a stream of newline-delimited JSON-RPC requests read from stdin.

Each configured server gets its own connection and worker; requests are
distributed round-robin across the workers and every connection keeps up
to the configured pipelining depth of requests in flight. Responses are
written to stdout in completion order, one per line.

With --add-metadata every response carries a metadata member with the
original request, the server address and start/end timestamps, ready to
be aggregated by the stats command.`,
		RunE:    run,
		PreRunE: processConfig,
	}
	config *common.CallConfig
)

func init() {
	util.SetupServerFlags(CallCmd)

	key := "pipelining"
	CallCmd.Flags().Int(key, 1, util.WrapString("Maximum number of unanswered requests per connection"))
	key = "add-metadata"
	CallCmd.Flags().Bool(key, false, util.WrapString("Attach a metadata member with timing information to every response. Request ids are rewritten to unique integers"))
	key = "preread"
	CallCmd.Flags().Bool(key, false, util.WrapString("Read the complete input before sending the first request"))
	key = "dry-run"
	CallCmd.Flags().Bool(key, false, util.WrapString("Synthesize responses locally instead of opening connections"))
}

func processConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	config, err = util.GetCallConfig()
	return err
}

func run(_ *cobra.Command, _ []string) error {
	Logger.Debugf("Configuration:%s", config.String())

	engine := stream.NewEngine(*config)
	if err := engine.Run(os.Stdin, os.Stdout); err != nil {
		return err
	}

	Logger.Infof("Completed %d calls", engine.Calls())
	return nil
}
