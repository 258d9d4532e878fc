package commands

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersion(t *testing.T) {
	rootCmd.SetArgs([]string{"version"})
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), "ltm") {
		t.Fatalf("expected output to mention ltm, got: %s", out.String())
	}
}
