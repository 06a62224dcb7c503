package main

import (
	"context"
	"os"

	"github.com/proofofpost/pop/cmd/popd/cmd"
)

func main() {
	if err := cmd.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
