// Package cli provides common CLI utilities shared by the command-line
// tools in this module.
//
// This package includes:
//   - App directory layout (data/cache/log paths)
//   - Output formatting (JSON, YAML, table)
//   - Request file loading (YAML/JSON)
//   - A minimal terminal UI helper
//
// Example usage:
//
//	paths, err := cli.NewPaths("ltm")
//	dataDir := paths.DataDir()
//
//	cli.Output(result, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    File:   outputPath,
//	})
package cli
