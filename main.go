package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/capbuild/capbuild/pkg/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cli.Run(ctx, os.Args); err != nil {
		os.Exit(1)
	}
}
