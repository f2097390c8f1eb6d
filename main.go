package main

import (
	"os"

	"github.com/gallerio/marketplace-indexer-svc/internal/cli"
)

func main() {
	if !cli.Run(os.Args) {
		os.Exit(1)
	}
}
