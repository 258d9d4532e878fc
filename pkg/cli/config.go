package cli

import "strings"

const (
	// DefaultBaseDir is the base configuration directory name
	DefaultBaseDir = ".ltm"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.json"
)

// MaskAPIKey masks the API key for display
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
