package main

import (
	"os"

	"github.com/skinklang/skink/pkg/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
