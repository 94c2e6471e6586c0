package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"smpybuild/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	res, err := cli.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "smpybuild:", err)
	}
	os.Exit(res.ExitCode)
}
