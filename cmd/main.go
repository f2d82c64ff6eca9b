package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"anvil.dev/cli/internal/interfaces/cli"
)

func main() {
	// Interrupts cancel downloads and lock waits; a foreground server gets
	// the same signal from the terminal and shuts itself down.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, cli.NewApp(), os.Args[1:])
	stop()
	os.Exit(code)
}
