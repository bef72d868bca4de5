package utils

import "os"

// GetEnv returns the environment value for key, or fallback when it is unset or empty.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
