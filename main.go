// Package main is the entry point for packetsentry.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/packetsentry/cmd"
	_ "firestige.xyz/packetsentry/pkg/parser/examples" // registers bundled example parsers
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
