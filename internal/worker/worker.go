// Package worker hosts the background goroutine that owns the reconnecting
// session, the dedup store, and the keepalive/liveness timer, and exposes
// it to a host application through a Handle: bounded command/event queues,
// a cancellation signal, and a wakeup pipe for poll/epoll integration.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/kuuji/clipshare/internal/clip"
	"github.com/kuuji/clipshare/internal/config"
	"github.com/kuuji/clipshare/internal/session"
	"github.com/kuuji/clipshare/internal/store"
	"github.com/kuuji/clipshare/internal/tlsprovider"
)

// queueCapacity bounds both the host→worker command queue and the
// worker→host event queue, matching the corpus's channel sizing
// conventions (bamgate's bridge.Bind receive channel, the original
// source's 256-capacity clip/event channels).
const queueCapacity = 256

// livenessDeadline is the maximum silence before the session is forced to
// reconnect.
const livenessDeadline = 15 * time.Second

// tickInterval drives both the ping subschedule and the liveness check.
const tickInterval = 1 * time.Second

// pingEveryTicks sends a keepalive ping once every this many ticks.
const pingEveryTicks = 5

// pingTimeout bounds a single ping attempt. Conn.Ping blocks until the
// matching pong arrives, so a truly silent connection would otherwise
// stall the main loop's one goroutine indefinitely on this call, and the
// liveness check right after it would never run — defeating the
// liveness deadline it exists to serve.
const pingTimeout = 2 * time.Second

// ErrStopped is returned by Send when the worker has already exited.
var ErrStopped = errors.New("worker: stopped")

// command is a host→worker request: a locally originated clip, optionally
// carrying a reply channel the caller can block on to learn whether the
// store accepted it as new.
type command struct {
	clip  clip.Clip
	reply chan bool
}

// EventKind enumerates the events a Handle surfaces to the host.
type EventKind int

const (
	EventNewClip EventKind = iota
	EventConnectivityChanged
)

// Event is one host-facing notification.
type Event struct {
	Kind      EventKind
	Text      string
	Connected bool
}

// PollResult is the squashed result of draining the event queue: the
// latest text-carrying event and the latest connectivity event, each
// optional.
type PollResult struct {
	Text         string
	HasText      bool
	Connected    bool
	HasConnected bool
}

// Handle is the host-facing API for a running worker. Send is safe from
// any goroutine; Poll should be called from a single consumer.
type Handle struct {
	log *slog.Logger

	commandTx chan command
	eventRx   chan Event

	cancel context.CancelFunc
	loopDone chan struct{}

	wakeupRead  *os.File
	wakeupWrite *os.File
	wakeupTaken atomic.Bool
}

// Start launches the worker goroutine and returns a Handle bound to it.
// Start validates cfg first and returns an error, without starting
// anything, if the config is invalid.
func Start(cfg config.Config, log *slog.Logger) (*Handle, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}

	// tlsprovider.Init must run before the first wss:// dial. It's called
	// here rather than requiring every host to remember it, and a second
	// Start (or a test suite starting several workers in one process) is
	// not an error: the process-wide TLS config only needs setting once.
	if err := tlsprovider.Init(); err != nil && !errors.Is(err, tlsprovider.ErrAlreadyInitialized) {
		return nil, fmt.Errorf("worker: initializing tls provider: %w", err)
	}

	wakeupRead, wakeupWrite, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("worker: creating wakeup pipe: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	h := &Handle{
		log:         log.With("component", "worker"),
		commandTx:   make(chan command, queueCapacity),
		eventRx:     make(chan Event, queueCapacity),
		cancel:      cancel,
		loopDone:    make(chan struct{}),
		wakeupRead:  wakeupRead,
		wakeupWrite: wakeupWrite,
	}

	sess := session.New(cfg, log)
	go sess.Run(ctx)
	go h.runMainLoop(ctx, sess)

	return h, nil
}

// Send stamps text as a new Clip and enqueues it for the worker to
// evaluate and, if accepted as new, forward to the session. It blocks if
// the command queue is full and returns ErrStopped if the worker has
// already exited.
func (h *Handle) Send(text string) error {
	select {
	case <-h.loopDone:
		return ErrStopped
	default:
	}

	c := clip.New(text)
	select {
	case h.commandTx <- command{clip: c}:
		return nil
	case <-h.loopDone:
		return ErrStopped
	}
}

// SendAndObserve behaves like Send but additionally reports whether the
// dedup store considered the clip new.
func (h *Handle) SendAndObserve(text string) (isNew bool, err error) {
	select {
	case <-h.loopDone:
		return false, ErrStopped
	default:
	}

	c := clip.New(text)
	reply := make(chan bool, 1)
	select {
	case h.commandTx <- command{clip: c, reply: reply}:
	case <-h.loopDone:
		return false, ErrStopped
	}
	select {
	case isNew = <-reply:
		return isNew, nil
	case <-h.loopDone:
		return false, ErrStopped
	}
}

// Poll drains all currently ready events and squashes them: the latest
// text-carrying event wins, the latest connectivity event wins. It never
// blocks.
func (h *Handle) Poll() PollResult {
	var res PollResult
	for {
		select {
		case ev, ok := <-h.eventRx:
			if !ok {
				return res
			}
			switch ev.Kind {
			case EventNewClip:
				res.Text = ev.Text
				res.HasText = true
			case EventConnectivityChanged:
				res.Connected = ev.Connected
				res.HasConnected = true
			}
		default:
			return res
		}
	}
}

// TakeWakeupFD transfers ownership of the read end of the wakeup pipe to
// the caller exactly once. Subsequent calls return (nil, false). The
// caller is responsible for closing the returned file.
func (h *Handle) TakeWakeupFD() (*os.File, bool) {
	if h.wakeupTaken.Swap(true) {
		return nil, false
	}
	return h.wakeupRead, true
}

// Stop cancels the worker, waits for its goroutine to exit, and closes the
// write end of the wakeup pipe so a host blocked reading the (possibly
// never-taken) read end observes EOF. Stop is not idempotent: calling it
// twice closes an already-closed pipe, which is a caller error.
func (h *Handle) Stop() error {
	h.cancel()
	<-h.loopDone
	return h.wakeupWrite.Close()
}

func (h *Handle) runMainLoop(ctx context.Context, sess *session.Session) {
	defer close(h.loopDone)
	defer close(h.eventRx)

	st := store.New()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var (
		tickCount uint64
		lastComm  = time.Now()
		connected bool
	)

	sessionEvents := sess.Events()

	for {
		select {
		case <-ctx.Done():
			return

		case cmd, ok := <-h.commandTx:
			if !ok {
				return
			}
			accepted := st.Add(cmd.clip)
			if accepted {
				sess.SendClip(ctx, cmd.clip)
			}
			if cmd.reply != nil {
				select {
				case cmd.reply <- accepted:
				default:
				}
			}

		case ev, ok := <-sessionEvents:
			if !ok {
				return
			}
			switch ev.Kind {
			case session.EventConnected:
				connected = true
				lastComm = time.Now()
				h.emit(Event{Kind: EventConnectivityChanged, Connected: true})
			case session.EventDisconnected, session.EventAuthFailed:
				connected = false
				h.emit(Event{Kind: EventConnectivityChanged, Connected: false})
			case session.EventReceivedClip:
				lastComm = time.Now()
				if st.Add(ev.Clip) {
					h.emit(Event{Kind: EventNewClip, Text: ev.Clip.Text})
				}
			case session.EventReceivedPing, session.EventReceivedPong:
				lastComm = time.Now()
			default:
				h.log.Debug("session event", "kind", ev.Kind.String())
			}

		case <-ticker.C:
			tickCount++
			if connected && tickCount%pingEveryTicks == 0 {
				pingCtx, cancelPing := context.WithTimeout(ctx, pingTimeout)
				sess.SendPing(pingCtx)
				cancelPing()
			}
			if time.Since(lastComm) > livenessDeadline {
				h.log.Warn("no communication within liveness deadline, forcing reconnect")
				sess.Reset()
				connected = false
				h.emit(Event{Kind: EventConnectivityChanged, Connected: false})
			}
		}
	}
}

// emit enqueues a host event and nudges the wakeup pipe. A full event
// queue drops the event (logged, not fatal — events are transient status
// the host can reconstruct by re-polling); a failed wakeup-byte write is
// likewise logged, not propagated, per the component design.
func (h *Handle) emit(ev Event) {
	select {
	case h.eventRx <- ev:
	default:
		h.log.Warn("event queue full, dropping event", "kind", ev.Kind)
		return
	}

	if _, err := h.wakeupWrite.Write([]byte{1}); err != nil {
		h.log.Debug("writing wakeup byte", "error", err)
	}
}
