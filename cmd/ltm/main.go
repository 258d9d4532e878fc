// Package main is the entry point for the ltm CLI, the operator tool for a
// long-term, emotionally-annotated memory store.
//
// Usage:
//
//	ltm [flags] <command> [args]
//
// Commands:
//
//	list          - List memory records
//	show          - Show one memory record in full
//	search        - Run the retrieval pipeline for a prompt
//	delete        - Delete a memory record
//	protect       - Mark a memory record protected
//	unprotect     - Clear a memory record's protected flag
//	stats         - Show record counts by level and protection status
//	purge-archive - Delete archived records older than a duration
//	version       - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/orogiadon/ltm-system-for-llm/cmd/ltm/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
