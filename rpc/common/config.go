package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Server address handling
// --------------------------------------------------------------------------

// ResolveAddr normalizes a server address. A leading ":port" form implies
// the loopback address, e.g. ":8080" becomes "127.0.0.1:8080".
func ResolveAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "127.0.0.1" + addr
	}
	return addr
}

// ResolveAddrs normalizes a list of server addresses
func ResolveAddrs(addrs []string) []string {
	resolved := make([]string, len(addrs))
	for i, addr := range addrs {
		resolved[i] = ResolveAddr(addr)
	}
	return resolved
}

// --------------------------------------------------------------------------
// Call (streaming) configuration struct
// --------------------------------------------------------------------------

// CallConfig holds all configuration parameters for the streaming call engine
type CallConfig struct {
	// Servers are the resolved target addresses (one worker per address)
	Servers []string

	// Pipelining is the maximum number of unanswered requests per connection
	Pipelining int

	// AddMetadata enables metadata collection. Request IDs are reassigned
	// to unique monotonically increasing integers when enabled.
	AddMetadata bool

	// Preread reads the entire input stream before sending any requests
	Preread bool

	// DryRun synthesizes responses locally instead of opening sockets
	DryRun bool
}

// String returns a formatted string representation of the configuration
func (c *CallConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Call Configuration")
	addField("Pipelining", strconv.Itoa(c.Pipelining))
	addField("Add Metadata", strconv.FormatBool(c.AddMetadata))
	addField("Preread", strconv.FormatBool(c.Preread))
	addField("Dry Run", strconv.FormatBool(c.DryRun))

	addSection("Servers")
	for i, server := range c.Servers {
		addField(strconv.Itoa(i), server)
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// Bench (event-loop) configuration struct
// --------------------------------------------------------------------------

// BenchConfig holds all configuration parameters for the benchmark engine
type BenchConfig struct {
	// Servers are the resolved target addresses (one channel per address)
	Servers []string

	// Concurrency is the global budget of in-flight requests across all channels
	Concurrency int

	// DryRun synthesizes responses locally instead of opening sockets
	DryRun bool
}

// String returns a formatted string representation of the configuration
func (c *BenchConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Bench Configuration")
	addField("Concurrency", strconv.Itoa(c.Concurrency))
	addField("Dry Run", strconv.FormatBool(c.DryRun))

	addSection("Servers")
	for i, server := range c.Servers {
		addField(strconv.Itoa(i), server)
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// Echo server configuration struct
// --------------------------------------------------------------------------

// EchoConfig holds all configuration parameters for the echo server
type EchoConfig struct {
	// Listen is the address the echo server listens on
	Listen string

	// MetricsAddr is the optional HTTP address exposing Prometheus metrics.
	// Empty disables the metrics listener.
	MetricsAddr string
}

// String returns a formatted string representation of the configuration
func (c *EchoConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Echo Server")
	addField("Listen", c.Listen)
	if c.MetricsAddr != "" {
		addField("Metrics Endpoint", c.MetricsAddr)
	} else {
		addField("Metrics Endpoint", "disabled")
	}

	return sb.String()
}
