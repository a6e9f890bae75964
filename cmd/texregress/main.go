// Package main is the entry point for the texregress CLI.
package main

import (
	"os"

	"github.com/frherrer/texregress/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
