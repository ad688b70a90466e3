package websocket

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lisuiheng/opsfeed/pkg/interfaces"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultBufferSize       = 100
	closeGracePeriod        = time.Second
)

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: invalid endpoint %q: %v", interfaces.ErrConnectionFailed, raw, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return fmt.Errorf("%w: endpoint scheme %q", interfaces.ErrUnsupportedProtocol, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: endpoint %q has no host", interfaces.ErrConnectionFailed, raw)
	}
	return nil
}

func newDialer(cfg Config) *websocket.Dialer {
	timeout := cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	return &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
		Subprotocols:     cfg.Subprotocols,
	}
}

func buildHeaders(cfg Config) http.Header {
	headers := http.Header{}
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}
	return headers
}

// closeEventFor maps the error that ended the read pump to a CloseEvent.
func closeEventFor(err error, closedLocally bool) interfaces.CloseEvent {
	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Code != websocket.CloseAbnormalClosure {
		return interfaces.CloseEvent{
			Code:   ce.Code,
			Reason: ce.Text,
			Err:    err,
			Clean:  true,
		}
	}
	if closedLocally {
		return interfaces.CloseEvent{
			Code:   websocket.CloseNormalClosure,
			Reason: "closed locally",
			Clean:  true,
		}
	}
	return interfaces.CloseEvent{
		Code:  websocket.CloseAbnormalClosure,
		Err:   err,
		Clean: false,
	}
}
