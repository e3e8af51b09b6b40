package util

import (
	"os"
	"strings"
)

// GetEnvOrDefault returns the environment variable value if set, otherwise the default value
func GetEnvOrDefault(env, def string) string {
	if val := os.Getenv(env); val != "" {
		return val
	}
	return def
}

// FirstEnv returns the first non-blank value among the given environment
// variables, or def when none is set.
func FirstEnv(def string, envs ...string) string {
	for _, env := range envs {
		if val := os.Getenv(env); strings.TrimSpace(val) != "" {
			return val
		}
	}
	return def
}

// IsTruthy reports whether s is "true" or "yes" (any case) or "1".
func IsTruthy(s string) bool {
	s = strings.TrimSpace(s)
	return strings.EqualFold(s, "true") || strings.EqualFold(s, "yes") || s == "1"
}

// SplitCSV splits a comma separated list, trimming entries and dropping blank ones.
func SplitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
