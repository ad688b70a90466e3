// protocols/websocket/transport.go
package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lisuiheng/opsfeed/pkg/interfaces"
)

var _ interfaces.TransportProtocol = (*WSProtocol)(nil)

var _ interfaces.Factory = Factory

type WSProtocol struct {
	conn      *websocket.Conn
	config    Config
	msgChan   chan interfaces.Message
	closeChan chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex

	reasonMu sync.Mutex
	reason   interfaces.CloseEvent
}

// Config holds the websocket specific settings.
type Config struct {
	URL              string
	Subprotocols     []string
	Headers          map[string]string
	HandshakeTimeout time.Duration
	ReadLimit        int64
	BufferSize       int
}

func NewWebSocketProtocol(config Config) (*WSProtocol, error) {
	if err := validateURL(config.URL); err != nil {
		return nil, err
	}
	size := config.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	return &WSProtocol{
		config:    config,
		msgChan:   make(chan interfaces.Message, size),
		closeChan: make(chan struct{}),
	}, nil
}

// Factory adapts NewWebSocketProtocol to interfaces.Factory.
func Factory(endpoint string, protocols []string, headers map[string]string) (interfaces.TransportProtocol, error) {
	return NewWebSocketProtocol(Config{
		URL:          endpoint,
		Subprotocols: protocols,
		Headers:      headers,
	})
}

func (p *WSProtocol) Connect(ctx context.Context) error {
	if p.isClosed() {
		return interfaces.ErrTransportClosed
	}

	conn, resp, err := newDialer(p.config).DialContext(ctx, p.config.URL, buildHeaders(p.config))
	if err != nil {
		if resp != nil {
			return fmt.Errorf("%w: %v (status %d)", interfaces.ErrConnectionFailed, err, resp.StatusCode)
		}
		return fmt.Errorf("%w: %v", interfaces.ErrConnectionFailed, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isClosed() || p.conn != nil {
		_ = conn.Close()
		return interfaces.ErrTransportClosed
	}
	if p.config.ReadLimit > 0 {
		conn.SetReadLimit(p.config.ReadLimit)
	}
	p.conn = conn

	go p.readPump(conn)
	return nil
}

func (p *WSProtocol) readPump(conn *websocket.Conn) {
	defer close(p.msgChan)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			p.setReason(closeEventFor(err, p.isClosed()))
			return
		}
		select {
		case p.msgChan <- interfaces.Message{
			Payload: data,
			Type:    convertMsgType(msgType),
		}:
		case <-p.closeChan:
			p.setReason(closeEventFor(nil, true))
			return
		}
	}
}

func convertMsgType(wsType int) interfaces.MessageType {
	switch wsType {
	case websocket.TextMessage:
		return interfaces.MsgText
	case websocket.BinaryMessage:
		return interfaces.MsgBinary
	default:
		return interfaces.MsgControl
	}
}

func (p *WSProtocol) Send(data []byte, msgType interfaces.MessageType) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isClosed() {
		return interfaces.ErrTransportClosed
	}
	if p.conn == nil {
		return interfaces.ErrNotConnected
	}

	wsType := websocket.TextMessage
	if msgType == interfaces.MsgBinary {
		wsType = websocket.BinaryMessage
	}
	return p.conn.WriteMessage(wsType, data)
}

func (p *WSProtocol) Receive() <-chan interfaces.Message {
	return p.msgChan
}

func (p *WSProtocol) CloseReason() interfaces.CloseEvent {
	p.reasonMu.Lock()
	defer p.reasonMu.Unlock()
	return p.reason
}

func (p *WSProtocol) ProtocolType() string { return "websocket" }

// Close sends a normal closure frame and closes the socket. Safe to call
// more than once and before Connect.
func (p *WSProtocol) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closeChan)

		p.mu.Lock()
		conn := p.conn
		p.mu.Unlock()
		if conn == nil {
			return
		}
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod),
		)
		err = conn.Close()
	})
	return err
}

func (p *WSProtocol) isClosed() bool {
	select {
	case <-p.closeChan:
		return true
	default:
		return false
	}
}

func (p *WSProtocol) setReason(ev interfaces.CloseEvent) {
	p.reasonMu.Lock()
	p.reason = ev
	p.reasonMu.Unlock()
}
