package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.design/x/clipboard"

	"github.com/kuuji/clipshare/internal/config"
	"github.com/kuuji/clipshare/internal/worker"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch the local clipboard and keep it synced with the relay",
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	path := globalConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := clipboard.Init(); err != nil {
		return fmt.Errorf("initializing clipboard backend: %w", err)
	}

	h, err := worker.Start(cfg, globalLogger)
	if err != nil {
		return fmt.Errorf("starting worker: %w", err)
	}
	defer h.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fd, ok := h.TakeWakeupFD()
	if !ok {
		return fmt.Errorf("wakeup descriptor already taken")
	}
	defer fd.Close()

	// lastSent tracks the clip this process itself just wrote to the local
	// clipboard, so watchLocalClipboard doesn't immediately echo it back as
	// a fresh local change.
	lastSent := make(chan string, 1)

	go watchLocalClipboard(ctx, h, lastSent)
	go watchWakeup(ctx, fd, h, lastSent)

	globalLogger.Info("clipshare running", "relay", cfg.URI, "name", cfg.Name)
	<-ctx.Done()
	globalLogger.Info("shutting down")
	return nil
}

// watchLocalClipboard forwards local clipboard changes to the worker.
func watchLocalClipboard(ctx context.Context, h *worker.Handle, lastSent chan string) {
	changes := clipboard.Watch(ctx, clipboard.FmtText)
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-changes:
			if !ok {
				return
			}
			text := string(data)

			select {
			case suppressed := <-lastSent:
				if suppressed == text {
					continue
				}
			default:
			}

			if err := h.Send(text); err != nil {
				globalLogger.Warn("sending local clip", "error", err)
			}
		}
	}
}

// watchWakeup blocks on the wakeup descriptor and drains the worker's
// event queue whenever it becomes readable.
func watchWakeup(ctx context.Context, fd *os.File, h *worker.Handle, lastSent chan string) {
	buf := make([]byte, 64)
	for {
		fd.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		_, err := fd.Read(buf)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			continue // read timeout; loop back and check ctx
		}

		res := h.Poll()
		if res.HasConnected {
			globalLogger.Info("connectivity changed", "connected", res.Connected)
		}
		if res.HasText {
			select {
			case lastSent <- res.Text:
			default:
			}
			clipboard.Write(clipboard.FmtText, []byte(res.Text))
		}
	}
}
