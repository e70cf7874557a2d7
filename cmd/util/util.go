package util

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/jrcall/jrcall/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("jrcall")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// SetupServerFlags adds the target server flag to a command
func SetupServerFlags(cmd *cobra.Command) {
	key := "servers"
	cmd.Flags().String(key, ":8080", WrapString("The address(es) of the JSON-RPC server. Multiple servers can be given as a comma-separated list - each gets its own connection. A leading ':port' implies 127.0.0.1"))
}

// GetServers reads and normalizes the configured server addresses
func GetServers() ([]string, error) {
	raw := strings.Split(viper.GetString("servers"), ",")

	servers := make([]string, 0, len(raw))
	for _, addr := range raw {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		servers = append(servers, common.ResolveAddr(addr))
	}
	if len(servers) == 0 {
		return nil, fmt.Errorf("at least one server address is required")
	}
	return servers, nil
}

// GetCallConfig reads the call configuration from viper
func GetCallConfig() (*common.CallConfig, error) {
	servers, err := GetServers()
	if err != nil {
		return nil, err
	}

	conf := &common.CallConfig{
		Servers:     servers,
		Pipelining:  viper.GetInt("pipelining"),
		AddMetadata: viper.GetBool("add-metadata"),
		Preread:     viper.GetBool("preread"),
		DryRun:      viper.GetBool("dry-run"),
	}
	if conf.Pipelining < 1 {
		return nil, fmt.Errorf("pipelining must be at least 1")
	}
	return conf, nil
}

// GetBenchConfig reads the benchmark configuration from viper
func GetBenchConfig() (*common.BenchConfig, error) {
	servers, err := GetServers()
	if err != nil {
		return nil, err
	}

	conf := &common.BenchConfig{
		Servers:     servers,
		Concurrency: viper.GetInt("concurrency"),
		DryRun:      viper.GetBool("dry-run"),
	}
	if conf.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1")
	}
	return conf, nil
}

// GetEchoConfig reads the echo server configuration from viper
func GetEchoConfig() *common.EchoConfig {
	return &common.EchoConfig{
		Listen:      common.ResolveAddr(viper.GetString("listen")),
		MetricsAddr: viper.GetString("metrics-addr"),
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
