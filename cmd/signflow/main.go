// Command signflow captures speech and turns it into sign-language grammar,
// emotion, and video references through a remote conversion service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rbright/signflow/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := app.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
