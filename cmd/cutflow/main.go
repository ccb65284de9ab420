// Package main provides the cutflow command.
package main

import (
	"os"

	"github.com/leapstack-labs/cutflow/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
