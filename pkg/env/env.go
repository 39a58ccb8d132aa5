package env

import "os"

// Get reads an environment variable, falling back when it is unset or
// empty. Used for the few knobs read before the typed config loads,
// like the logger's output format.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
