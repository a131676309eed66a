// Command chat is the terminal client.
//
//	chat [-server URL] [-session FILE] [-log-level LEVEL]
//
// The server address falls back to PAIRCHAT_URL, then http://localhost:8080.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"golang.org/x/term"

	"github.com/pairchat/pairchat/internal/client"
	"github.com/pairchat/pairchat/pkg/logger"
)

const defaultServer = "http://localhost:8080"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	server := flag.String("server", envOr("PAIRCHAT_URL", defaultServer), "chat server base URL")
	session := flag.String("session", client.DefaultSessionPath(), "session file")
	level := flag.String("log-level", "warn", "log level written to stderr")
	timeout := flag.Duration("timeout", 10*time.Second, "HTTP request timeout")
	flag.Parse()

	logger.Init(logger.Options{Level: *level, Pretty: true, Output: os.Stderr})

	opts := client.Options{
		API:   client.NewAPI(*server, *timeout),
		Store: client.NewSessionStore(*session),
		In:    os.Stdin,
		Out:   os.Stdout,
		Log:   logger.Component("chat"),
	}
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		opts.ReadPassword = func() ([]byte, error) { return term.ReadPassword(fd) }
	}

	// Run blocks on stdin, so an interrupt is handled here rather than inside it.
	done := make(chan error, 1)
	go func() { done <- client.NewShell(opts).Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			fmt.Fprintln(os.Stderr, "chat:", err)
			stop()
			os.Exit(1)
		}
	case <-ctx.Done():
		fmt.Println()
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
