package channel

import (
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("channel")

// OpKind identifies the kind of a submitted I/O operation
type OpKind uint8

const (
	// OpRead is a read operation into a channel's read buffer
	OpRead OpKind = iota
	// OpWrite is a write operation from a channel's send buffer
	OpWrite
)

// String returns a human readable name for the operation kind
func (k OpKind) String() string {
	switch k {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Completion is the result of a previously submitted I/O operation.
// N is the number of bytes transferred; zero bytes means the peer closed
// the connection. Err carries the I/O error, if any.
type Completion struct {
	ChannelID int
	Op        OpKind
	N         int
	Err       error
}

// IChannelIODriver is the strategy interface that decouples the event loop
// from the I/O mechanism. Operations are submitted ahead of time and their
// results harvested later from a shared completion queue.
//
// Drivers support at most one outstanding read and one outstanding write
// per channel; submitting a second operation of the same kind while one is
// in flight is a programming error and fails loudly.
type IChannelIODriver interface {
	// SubmitRead submits a read into buf for the given channel
	SubmitRead(channelID int, buf []byte) error

	// SubmitWrite submits a write of buf for the given channel
	SubmitWrite(channelID int, buf []byte) error

	// Wait blocks until at least one completion is available and returns it
	Wait() Completion

	// Next returns a further completion without blocking
	Next() (Completion, bool)

	// Close releases all driver resources
	Close() error
}
