// pkg/interfaces/transport.go
package interfaces

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrConnectionFailed    = errors.New("connection failed")
	ErrNotConnected        = errors.New("transport not connected")
	ErrTransportClosed     = errors.New("transport closed")
	ErrUnsupportedProtocol = errors.New("unsupported protocol")
)

// TransportProtocol is a bidirectional frame transport. Receive delivers
// inbound frames until the connection ends, after which the channel is
// closed and CloseReason reports why.
type TransportProtocol interface {
	Connect(ctx context.Context) error
	Send(data []byte, msgType MessageType) error
	Receive() <-chan Message
	CloseReason() CloseEvent
	Close() error
	ProtocolType() string
}

// Factory builds an unconnected transport for an endpoint. An error here is
// a construction failure and is retried like any other connect failure.
type Factory func(endpoint string, protocols []string, headers map[string]string) (TransportProtocol, error)

type Message struct {
	Payload []byte
	Type    MessageType
}

type MessageType int

const (
	MsgText    MessageType = iota // JSON text
	MsgBinary                     // raw bytes
	MsgControl                    // control frames
)

// CloseEvent describes how a connection ended. Clean is true when the
// peer or the local side completed a normal closing handshake.
type CloseEvent struct {
	Code   int
	Reason string
	Err    error
	Clean  bool
}

func (e CloseEvent) String() string {
	if e.Err != nil && !e.Clean {
		return fmt.Sprintf("connection closed (code %d): %v", e.Code, e.Err)
	}
	if e.Reason != "" {
		return fmt.Sprintf("connection closed (code %d): %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("connection closed (code %d)", e.Code)
}
