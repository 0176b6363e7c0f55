package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// ErrForcedLogout is returned by Listener.Run after a force logout was handled.
var ErrForcedLogout = errors.New("realtime: session terminated by server")

// Reconnect policy of Listener.
const (
	ReconnectInitial = time.Second
	ReconnectMax     = 30 * time.Second
	ReconnectFactor  = 2.0
)

// Listener keeps a notification websocket open for the signed-in user.
type Listener struct {
	// URL is the websocket endpoint, e.g. ws://host/api/ws/notifications.
	URL string
	// Token returns the current access token. Run stops when it returns "".
	Token func() string
	// OnForceLogout is called once with the server message before Run returns ErrForcedLogout.
	OnForceLogout func(message string)
	// OnMessage receives every other well-formed frame. Optional.
	OnMessage func(Message)
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
	// NewBackOff overrides the reconnect policy, mainly for tests.
	NewBackOff func() backoff.BackOff
}

// NewReconnectBackOff returns the default reconnect policy: exponential from
// one second, doubling, capped at thirty seconds, randomized, never giving up.
func NewReconnectBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = ReconnectInitial
	b.Multiplier = ReconnectFactor
	b.MaxInterval = ReconnectMax
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Run connects, dispatches frames and reconnects after drops until ctx is done,
// the token is cleared, or a force logout arrives.
func (l *Listener) Run(ctx context.Context) error {
	newBackOff := l.NewBackOff
	if newBackOff == nil {
		newBackOff = NewReconnectBackOff
	}
	policy := backoff.WithContext(newBackOff(), ctx)

	for {
		token := ""
		if l.Token != nil {
			token = l.Token()
		}
		if token == "" {
			return nil
		}

		conn, errDial := l.dial(ctx, token)
		if errDial == nil {
			policy.Reset()
			errRead := l.readLoop(ctx, conn)
			if errors.Is(errRead, ErrForcedLogout) {
				return errRead
			}
			if ctx.Err() != nil {
				return nil
			}
			log.WithError(errRead).Debug("realtime: notification socket dropped")
		} else {
			log.WithError(errDial).Debug("realtime: notification socket dial failed")
		}

		delay := policy.NextBackOff()
		if delay == backoff.Stop {
			return nil
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (l *Listener) dial(ctx context.Context, token string) (*websocket.Conn, error) {
	endpoint, errParse := url.Parse(l.URL)
	if errParse != nil {
		return nil, fmt.Errorf("realtime: parse url: %w", errParse)
	}
	q := endpoint.Query()
	q.Set("token", token)
	endpoint.RawQuery = q.Encode()

	dialer := l.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, errDial := dialer.DialContext(ctx, endpoint.String(), http.Header{})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if errDial != nil {
		return nil, errDial
	}
	return conn, nil
}

func (l *Listener) readLoop(ctx context.Context, conn *websocket.Conn) error {
	defer func() { _ = conn.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, data, errRead := conn.ReadMessage()
		if errRead != nil {
			return errRead
		}
		msg, errParse := ParseMessage(data)
		if errParse != nil {
			log.WithError(errParse).Warn("realtime: ignore malformed notification")
			continue
		}
		if msg.Type == TypeForceLogout {
			if l.OnForceLogout != nil {
				l.OnForceLogout(msg.Message)
			}
			return ErrForcedLogout
		}
		if l.OnMessage != nil {
			l.OnMessage(msg)
		}
	}
}
