package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/happyhackingspace/cubam/internal/cli"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.New(version).RunContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
