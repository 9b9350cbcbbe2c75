// Package main provides the entry point for the docarchive CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/docarchive/cmd/docarchive/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
