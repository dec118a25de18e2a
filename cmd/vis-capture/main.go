// Command vis-capture captures the system's audio loopback, analyzes it
// into cava-style spectrum bars, and serves a single local WebSocket
// subscriber. No CLI flags, no configuration file — per spec.md §6,
// process interface is startup-only: bind port 7700, open the platform
// default loopback.
//
// Signal handling and shutdown sequencing follow the teacher's
// server/main.go (signal.Notify + context.WithCancel).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/wktkow/vis-capture/internal/audiosrc"
	"github.com/wktkow/vis-capture/internal/orchestrator"
)

const defaultPort = 7700

func main() {
	os.Exit(run())
}

func run() int {
	if err := audiosrc.Init(); err != nil {
		log.Printf("vis-capture: audio init failed: %v", err)
		return 1
	}
	defer audiosrc.Shutdown()

	orch, err := orchestrator.New(defaultPort)
	if err != nil {
		log.Printf("vis-capture: startup failed: %v", err)
		return 1
	}
	defer orch.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	defer signal.Stop(sigCh)

	log.Printf("vis-capture: listening on 127.0.0.1:%d", defaultPort)

	if err := orch.Run(func() bool {
		select {
		case <-ctx.Done():
			return true
		default:
			return false
		}
	}); err != nil {
		log.Printf("vis-capture: fatal: %v", err)
		return 1
	}

	return 0
}
