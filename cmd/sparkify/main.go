// Package main provides the CLI for the sparkify star-schema ETL.
package main

import (
	"os"

	"github.com/leapstack-labs/sparkify/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
