package main

import (
	"os"

	"github.com/Kripu77/prompt-map-sub001/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
