package main

import (
	"os"

	"github.com/crewstore/crewstore/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
