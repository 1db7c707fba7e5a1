// goattempt - keeps trying to connect to an endpoint over TCP, UDP,
// SSH, QUIC or WebSocket until it answers or a retry policy gives up.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"goattempt/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "goattempt: %v\n", err)
		os.Exit(1)
	}
}
