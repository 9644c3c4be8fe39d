package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/larivierec/hover-cli/pkg/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Start(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
