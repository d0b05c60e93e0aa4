package main

import (
	"os"

	"chunkmap/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
