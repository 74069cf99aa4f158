// Package session implements the reconnecting authenticated session: a
// state machine that wraps internal/transport's single-shot connect and
// turns it into an infinite stream of Events with exponential backoff.
//
// Sends performed while not Connected are logged and dropped, never
// buffered — grounded on the corpus's reconnecting-session variant that
// drops rather than the alternate that queues one pending clip. Both
// behaviors are permitted by the contract; this implementation documents
// and tests the drop choice.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kuuji/clipshare/internal/clip"
	"github.com/kuuji/clipshare/internal/config"
	"github.com/kuuji/clipshare/internal/retry"
	"github.com/kuuji/clipshare/internal/transport"
)

// EventKind enumerates the events a Session emits.
type EventKind int

const (
	EventStartedConnecting EventKind = iota
	EventConnected
	EventDisconnected
	EventAuthFailed
	EventStartedSleeping
	EventFinishedSleeping
	EventReceivedClip
	EventMessageError
	EventReceivedPing
	EventReceivedPong
)

func (k EventKind) String() string {
	switch k {
	case EventStartedConnecting:
		return "StartedConnecting"
	case EventConnected:
		return "Connected"
	case EventDisconnected:
		return "Disconnected"
	case EventAuthFailed:
		return "AuthFailed"
	case EventStartedSleeping:
		return "StartedSleeping"
	case EventFinishedSleeping:
		return "FinishedSleeping"
	case EventReceivedClip:
		return "ReceivedClip"
	case EventMessageError:
		return "MessageError"
	case EventReceivedPing:
		return "ReceivedPing"
	case EventReceivedPong:
		return "ReceivedPong"
	default:
		return "Unknown"
	}
}

// Event is one state advance or inbound message, emitted on the session's
// event stream.
type Event struct {
	Kind  EventKind
	Clip  clip.Clip
	Err   error
	Delay time.Duration
}

type disconnectReason int

const (
	reasonError disconnectReason = iota
	reasonReset
	reasonCancel
)

// Session drives the ReadyToConnect → Connecting → Connected →
// Disconnected → Sleeping → ReadyToConnect cycle described in the
// component design. Create one with New, start it with Run in its own
// goroutine, and read Events() until it closes.
type Session struct {
	cfg config.Config
	log *slog.Logger

	retry  *retry.Retry
	events chan Event
	resetC chan struct{}
	done   chan struct{}

	transport atomic.Pointer[transport.Session]
}

// New builds a Session for cfg. It does nothing until Run is started.
func New(cfg config.Config, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		cfg:    cfg,
		log:    log.With("component", "session"),
		retry:  retry.New(),
		events: make(chan Event, 256),
		resetC: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Events returns the channel of session events. It is closed when Run
// returns.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Reset forces an immediate transition to ReadyToConnect with a fresh
// Retry counter, dropping any live transport. Idempotent: a second call
// before the first is observed is a no-op.
func (s *Session) Reset() {
	select {
	case s.resetC <- struct{}{}:
	default:
	}
}

// SendClip writes a clip to the live transport if, and only if, the
// session is currently Connected; otherwise it logs and drops. Best-effort:
// a write failure is logged, not returned, matching the transport's
// fire-and-forget send contract.
func (s *Session) SendClip(ctx context.Context, c clip.Clip) {
	tr := s.transport.Load()
	if tr == nil {
		s.log.Debug("dropping outbound clip, not connected")
		return
	}
	if err := tr.SendClip(ctx, c); err != nil {
		s.log.Warn("sending clip failed", "error", err)
	}
}

// SendPing sends a keepalive ping if Connected; a no-op otherwise.
//
// coder/websocket gives a client no way to observe a server-initiated
// ping: inbound pings are auto-acked inside the library's read loop,
// before Recv ever sees them, and there is no callback hook to forward
// one onto this session's event stream. EventReceivedPing therefore
// exists (spec requires it in the event vocabulary) but this
// implementation never emits it — that is a real, library-imposed gap,
// not an oversight.
//
// The pong direction is observable, though: Conn.Ping blocks until the
// matching pong control frame actually arrives, so a successful call is
// itself proof a pong was received. SendPing reports that as
// EventReceivedPong.
func (s *Session) SendPing(ctx context.Context) (acked bool) {
	tr := s.transport.Load()
	if tr == nil {
		s.log.Debug("skipping ping, not connected")
		return false
	}
	if err := tr.SendPing(ctx); err != nil {
		s.log.Warn("ping failed", "error", err)
		return false
	}
	s.emit(Event{Kind: EventReceivedPong})
	return true
}

// Run executes the state machine until ctx is cancelled. It closes the
// event channel on return. Call it from its own goroutine.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)

	state := "ReadyToConnect"
	for {
		select {
		case <-s.resetC:
			s.teardown()
			s.retry.Reset()
			state = "ReadyToConnect"
		default:
		}

		select {
		case <-ctx.Done():
			s.teardown()
			return
		default:
		}

		switch state {
		case "ReadyToConnect":
			state = s.tryConnect(ctx)

		case "Connected":
			tr := s.transport.Load()
			reason := s.runConnected(ctx, tr)
			s.teardown()
			switch reason {
			case reasonCancel:
				return
			case reasonReset:
				s.emit(Event{Kind: EventDisconnected})
				s.retry.Reset()
				state = "ReadyToConnect"
			default:
				s.emit(Event{Kind: EventDisconnected})
				state = "Sleeping"
			}

		case "Sleeping":
			delay := s.retry.Delay()
			s.emit(Event{Kind: EventStartedSleeping, Delay: delay})
			select {
			case <-ctx.Done():
				return
			case <-s.resetC:
				s.retry.Reset()
				state = "ReadyToConnect"
			case <-time.After(delay):
				s.emit(Event{Kind: EventFinishedSleeping})
				state = "ReadyToConnect"
			}
		}
	}
}

// tryConnect performs one connect_and_authenticate attempt and returns the
// next state name.
func (s *Session) tryConnect(ctx context.Context) string {
	s.retry.Increment()
	s.emit(Event{Kind: EventStartedConnecting})

	tr, err := transport.Connect(ctx, s.cfg, s.log)
	if err != nil {
		if errors.Is(err, transport.ErrAuthFailed) {
			s.emit(Event{Kind: EventAuthFailed, Err: err})
		} else {
			s.emit(Event{Kind: EventMessageError, Err: err})
		}
		s.emit(Event{Kind: EventDisconnected})
		return "Sleeping"
	}

	s.retry.Reset()
	s.transport.Store(tr)
	s.emit(Event{Kind: EventConnected})
	return "Connected"
}

type recvResult struct {
	clip clip.Clip
	err  error
}

// runConnected reads inbound frames until the connection drops, a reset is
// requested, or ctx is cancelled.
func (s *Session) runConnected(ctx context.Context, tr *transport.Session) disconnectReason {
	if tr == nil {
		return reasonError
	}

	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()

	inbound := make(chan recvResult, 1)
	go func() {
		for {
			c, err := tr.Recv(readCtx)
			select {
			case inbound <- recvResult{clip: c, err: err}:
			case <-readCtx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return reasonCancel
		case <-s.resetC:
			return reasonReset
		case res := <-inbound:
			if res.err != nil {
				s.emit(Event{Kind: EventMessageError, Err: res.err})
				return reasonError
			}
			s.emit(Event{Kind: EventReceivedClip, Clip: res.clip})
		}
	}
}

func (s *Session) teardown() {
	tr := s.transport.Swap(nil)
	if tr != nil {
		if err := tr.Close(); err != nil {
			s.log.Debug("closing transport", "error", err)
		}
	}
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.log.Warn("session event queue full, dropping event", "kind", ev.Kind.String())
	}
}

// Done returns a channel closed once Run has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
