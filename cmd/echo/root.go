package echo

import (
	"github.com/jrcall/jrcall/cmd/util"
	"github.com/jrcall/jrcall/rpc/common"
	"github.com/jrcall/jrcall/rpc/echo"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
)

var Logger = logger.GetLogger("cmd")

var (
	// EchoCmd runs the JSON-RPC echo server
	EchoCmd = &cobra.Command{
		Use:   "echo",
		Short: "Run a JSON-RPC echo server (for development or testing purposes)",
		Long: `Run a JSON-RPC echo server.

The server responds to every request with a response containing the
request object itself as the result value. Notifications get no
response; malformed lines get an error response.`,
		RunE:    run,
		PreRunE: processConfig,
	}
	config *common.EchoConfig
)

func init() {
	key := "listen"
	EchoCmd.Flags().String(key, ":8080", util.WrapString("The address to listen on. A leading ':port' implies 127.0.0.1"))
	key = "metrics-addr"
	EchoCmd.Flags().String(key, "", util.WrapString("Optional HTTP address exposing Prometheus metrics under /metrics"))
}

func processConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	config = util.GetEchoConfig()
	return nil
}

func run(_ *cobra.Command, _ []string) error {
	Logger.Debugf("Configuration:%s", config.String())
	return echo.NewServer(*config).ListenAndServe()
}
