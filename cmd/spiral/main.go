// cmd/spiral/main.go
//
// Entry point for the spiral CLI. `spiral run` starts every stage plus the
// orchestrator in one process; `spiral stage <name>` runs a single stage loop
// so stages can also be supervised as separate OS processes.

package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "spiral: %v\n", err)
		os.Exit(1)
	}
}
