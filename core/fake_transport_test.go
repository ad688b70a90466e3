package core

import (
	"context"
	"errors"
	"sync"

	"github.com/lisuiheng/opsfeed/pkg/interfaces"
)

// fakeTransport is an in-memory TransportProtocol driven by the test.
type fakeTransport struct {
	connectErr error
	frames     chan interfaces.Message

	mu       sync.Mutex
	sent     [][]byte
	reason   interfaces.CloseEvent
	dropOnce sync.Once
	closed   bool
}

func newFakeTransport(connectErr error) *fakeTransport {
	return &fakeTransport{
		connectErr: connectErr,
		frames:     make(chan interfaces.Message, 16),
	}
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.connectErr
}

func (f *fakeTransport) Send(data []byte, _ interfaces.MessageType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return interfaces.ErrTransportClosed
	}
	f.sent = append(f.sent, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) Receive() <-chan interfaces.Message { return f.frames }

func (f *fakeTransport) CloseReason() interfaces.CloseEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reason
}

func (f *fakeTransport) Close() error {
	f.drop(interfaces.CloseEvent{Code: 1000, Reason: "closed locally", Clean: true})
	return nil
}

func (f *fakeTransport) ProtocolType() string { return "fake" }

// deliver pushes one text frame as if it arrived from the peer.
func (f *fakeTransport) deliver(payload string) {
	f.frames <- interfaces.Message{Payload: []byte(payload), Type: interfaces.MsgText}
}

// drop ends the connection with ev. Only the first call has an effect.
func (f *fakeTransport) drop(ev interfaces.CloseEvent) {
	f.dropOnce.Do(func() {
		f.mu.Lock()
		f.reason = ev
		f.closed = true
		f.mu.Unlock()
		close(f.frames)
	})
}

func (f *fakeTransport) sentFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

var errRefused = errors.New("connection refused")

// fakeNetwork is a scripted transport factory.
type fakeNetwork struct {
	mu         sync.Mutex
	attempts   int
	factoryErr error
	connectErr error
	transports []*fakeTransport
}

func (n *fakeNetwork) factory(_ string, _ []string, _ map[string]string) (interfaces.TransportProtocol, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.attempts++
	if n.factoryErr != nil {
		return nil, n.factoryErr
	}
	t := newFakeTransport(n.connectErr)
	n.transports = append(n.transports, t)
	return t, nil
}

func (n *fakeNetwork) setConnectErr(err error) {
	n.mu.Lock()
	n.connectErr = err
	n.mu.Unlock()
}

func (n *fakeNetwork) attemptCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.attempts
}

// last returns the most recently created transport.
func (n *fakeNetwork) last() *fakeTransport {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.transports) == 0 {
		return nil
	}
	return n.transports[len(n.transports)-1]
}
