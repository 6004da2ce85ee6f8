package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/emenda-labs/tsexports/core/cli"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(version)
	root.AddCommand(cli.NewExportsCmd(runExports))
	root.AddCommand(cli.NewDiffCmd(runDiff))

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
