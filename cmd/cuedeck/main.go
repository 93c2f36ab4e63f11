// Package main is the entry point for the cuedeck CLI.
package main

import (
	"os"

	"github.com/cuedeck/cuedeck/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
