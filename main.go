package main

import (
	"os"

	"github.com/lvbealr/minitorrent/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
