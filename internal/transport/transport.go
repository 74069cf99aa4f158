// Package transport implements a single authenticated WebSocket session:
// dial, the auth handshake, and framed send/recv of clipboard messages. It
// has no reconnect logic of its own — that lives one layer up, in
// internal/session.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"

	"github.com/kuuji/clipshare/internal/clip"
	"github.com/kuuji/clipshare/internal/config"
	"github.com/kuuji/clipshare/internal/tlsprovider"
	"github.com/kuuji/clipshare/pkg/protocol"
)

// DialTimeout bounds a single connect_and_authenticate attempt.
const DialTimeout = 10 * time.Second

// ErrAuthFailed is returned by Connect when the server's auth reply is
// {"success": false}.
var ErrAuthFailed = errors.New("transport: authentication rejected")

// ErrUnrecognizedFrame is returned by Recv when an inbound text frame does
// not parse as a known application message.
var ErrUnrecognizedFrame = errors.New("transport: unrecognized frame")

// Session wraps one live WebSocket connection, already authenticated.
type Session struct {
	conn *websocket.Conn
	log  *slog.Logger
}

// Connect implements the connect algorithm from the component design: parse
// the URI, acquire TLS config for a wss:// scheme, perform the WebSocket
// handshake, then the auth exchange. Any failure along the way is reported
// as a single error; the caller (the reconnecting session) is responsible
// for classifying it and backing off.
func Connect(ctx context.Context, cfg config.Config, log *slog.Logger) (*Session, error) {
	if log == nil {
		log = slog.Default()
	}

	u, err := url.Parse(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("parsing uri: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, DialTimeout)
	defer cancel()

	opts := &websocket.DialOptions{}
	if u.Scheme == "wss" {
		tlsConfig, err := tlsprovider.Get()
		if err != nil {
			return nil, fmt.Errorf("acquiring tls config: %w", err)
		}
		tlsConfig.ServerName = u.Hostname()
		opts.HTTPClient = &http.Client{
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
		}
	}

	conn, _, err := websocket.Dial(dialCtx, cfg.URI, opts)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", cfg.URI, err)
	}

	s := &Session{conn: conn, log: log.With("component", "transport")}

	if err := s.authenticate(dialCtx, cfg); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// authenticate performs the single-frame request/reply auth exchange.
func (s *Session) authenticate(ctx context.Context, cfg config.Config) error {
	data, err := protocol.AuthRequest{Name: cfg.Name, Token: cfg.Token}.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling auth request: %w", err)
	}
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("writing auth request: %w", err)
	}

	typ, reply, err := s.conn.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading auth reply: %w", err)
	}
	if typ != websocket.MessageText {
		return fmt.Errorf("auth reply was not a text frame")
	}

	authReply, err := protocol.ParseAuthReply(reply)
	if err != nil {
		return fmt.Errorf("parsing auth reply: %w", err)
	}
	if !authReply.Success {
		return ErrAuthFailed
	}

	return nil
}

// SendClip writes a Clip frame. Best-effort: callers that want the failure
// to drive reconnection should check the error; the session layer logs and
// drops rather than retrying within Transport.
func (s *Session) SendClip(ctx context.Context, c clip.Clip) error {
	data, err := protocol.Clip{Text: c.Text, Timestamp: c.Timestamp}.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling clip: %w", err)
	}
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("writing clip: %w", err)
	}
	return nil
}

// SendPing sends a WebSocket ping frame and waits for the matching pong.
// coder/websocket handles the ping/pong control-frame exchange internally
// and surfaces it only as the (blocking) success or failure of this call —
// there is no separate "pong received" event visible to the reader loop.
// A successful SendPing is therefore treated by the session layer as both
// a send and a receive for liveness-tracking purposes.
func (s *Session) SendPing(ctx context.Context) error {
	if err := s.conn.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Recv reads and classifies the next application frame. Only Clip frames
// are expected on this path — the auth reply is consumed entirely inside
// Connect, and server-initiated WebSocket pings/pongs are handled inside
// coder/websocket's read loop before Recv ever sees them. Anything that
// isn't a valid Clip frame is an unrecognized-shape error; the caller tears
// the session down (per spec: unknown shapes are logged as message errors
// but the auth path aside, this is the only application-level framing so a
// malformed frame here still just ends the session, which the reconnecting
// layer will restart).
func (s *Session) Recv(ctx context.Context) (clip.Clip, error) {
	typ, data, err := s.conn.Read(ctx)
	if err != nil {
		return clip.Clip{}, fmt.Errorf("reading frame: %w", err)
	}
	if typ != websocket.MessageText {
		return clip.Clip{}, fmt.Errorf("%w: non-text frame", ErrUnrecognizedFrame)
	}

	c, err := protocol.ClassifyApplicationFrame(data)
	if err != nil {
		return clip.Clip{}, fmt.Errorf("%w: %v", ErrUnrecognizedFrame, err)
	}

	return clip.Clip{Text: c.Text, Timestamp: c.Timestamp}, nil
}

// Close tears down the underlying connection.
func (s *Session) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "closing")
}
