package req

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jrcall/jrcall/cmd/util"
	"github.com/jrcall/jrcall/rpc/jsonrpc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ReqCmd generates a single JSON-RPC request object
var ReqCmd = &cobra.Command{
	Use:   "req METHOD [PARAMS]",
	Short: "Generate a JSON-RPC request object",
	Long: `Generate a single JSON-RPC request object and print it to stdout.

PARAMS must be a JSON object or array. Without --id the request is a
notification (no response is expected).`,
	Args: cobra.RangeArgs(1, 2),
	RunE: run,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return util.BindCommandFlags(cmd)
	},
}

func init() {
	key := "id"
	ReqCmd.Flags().String(key, "", util.WrapString("Request id (integer or string). Omit to generate a notification"))
}

func run(_ *cobra.Command, args []string) error {
	method := args[0]

	var params json.RawMessage
	if len(args) == 2 {
		text := strings.TrimSpace(args[1])
		if !json.Valid([]byte(text)) || (text[0] != '{' && text[0] != '[') {
			return fmt.Errorf("params must be a JSON object or array: %s", args[1])
		}
		params = json.RawMessage(text)
	}

	var id *jsonrpc.ID
	if text := viper.GetString("id"); text != "" {
		var err error
		id, err = jsonrpc.ParseID(text)
		if err != nil {
			return err
		}
	}

	data, err := json.Marshal(jsonrpc.NewRequest(method, params, id))
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
