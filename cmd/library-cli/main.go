package main

import (
	"os"

	"github.com/JeanneIrsaeva/library-tracker/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
