package env

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
)

var dotEnvKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

var doubleQuoted = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\"`, `"`, `\\`, `\`)

// ParseDotEnv reads KEY=value lines. Blank lines and lines starting with #
// are ignored, an "export " prefix is dropped, and values may be wrapped in
// single quotes (literal) or double quotes (\n, \t, \" and \\ escapes).
// A # after the value is part of the value.
func ParseDotEnv(r io.Reader) (map[string]string, error) {
	vars := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: missing '='", n)
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		if !dotEnvKey.MatchString(key) {
			return nil, fmt.Errorf("line %d: invalid key %q", n, key)
		}
		vars[key] = unquote(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return vars, nil
}

func unquote(v string) string {
	if len(v) < 2 || v[0] != v[len(v)-1] {
		return v
	}
	switch v[0] {
	case '\'':
		return v[1 : len(v)-1]
	case '"':
		return doubleQuoted.Replace(v[1 : len(v)-1])
	}
	return v
}

// LoadDotEnv parses the file at path without touching the process
// environment.
func LoadDotEnv(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("env file: %w", err)
	}
	defer f.Close()

	vars, err := ParseDotEnv(f)
	if err != nil {
		return nil, fmt.Errorf("env file %s: %w", path, err)
	}
	return vars, nil
}

// ExportDotEnv loads path and sets each variable the process environment
// does not already define, so ${VAR} references in reqcheck.yaml see them.
// It returns the names it set, sorted.
func ExportDotEnv(path string) ([]string, error) {
	vars, err := LoadDotEnv(path)
	if err != nil {
		return nil, err
	}

	var set []string
	for k, v := range vars {
		if _, exists := os.LookupEnv(k); exists {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return nil, fmt.Errorf("env file %s: set %s: %w", path, k, err)
		}
		set = append(set, k)
	}
	sort.Strings(set)
	return set, nil
}
