// Package main is the entry point for the ersatz CLI binary.
package main

import (
	"os"

	"ersatz/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
