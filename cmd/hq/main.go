package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rpggio/hq/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd := cli.New(cli.Build{Version: version, Commit: commit, Date: date}, nil)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
