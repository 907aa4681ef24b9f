package env

import (
	"os"
	"strings"
)

// Expand replaces ${NAME} and $NAME references in s with values from the
// process environment. Unset names expand to "" and are reported to warn.
func Expand(s string, warn WarnFunc) string {
	return os.Expand(s, func(name string) string {
		val, ok := os.LookupEnv(name)
		if !ok && warn != nil {
			warn("unset environment variable: %s", name)
		}
		return val
	})
}

// LoadSystemEnv returns the process environment variables that start with
// prefix, keyed by the remainder of the name.
func LoadSystemEnv(prefix string) map[string]any {
	result := make(map[string]any)
	for _, e := range os.Environ() {
		key, value, found := strings.Cut(e, "=")
		if !found {
			continue
		}
		if prefix == "" {
			result[key] = value
		} else if len(key) > len(prefix) && strings.HasPrefix(key, prefix) {
			result[key[len(prefix):]] = value
		}
	}
	return result
}
