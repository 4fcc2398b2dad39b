// Package env has small helpers for reading environment variables outside
// the envconfig-managed Config, such as pre-config logger setup.
package env

import "os"

// Get returns the named environment variable, or fallback when unset or
// empty.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
