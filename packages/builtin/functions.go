package builtin

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Func computes a template value from the arguments of a call.
type Func func(args []string) (any, error)

// ErrUnknownFunction is returned by Call for names that are not registered.
var ErrUnknownFunction = errors.New("unknown function")

// Registry maps function names to implementations. It is read-only after
// NewRegistry and safe for concurrent use.
type Registry struct {
	funcs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: map[string]Func{
		"now":          now,
		"timestamp":    timestamp,
		"date":         date,
		"uuid":         newUUID,
		"random":       randomInt,
		"randomString": randomAlnum,
		"randomEmail":  randomEmail,
		"base64":       base64Encode,
	}}
}

var callPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// Call evaluates an expression such as random(1, 10).
func (r *Registry) Call(expr string) (any, error) {
	m := callPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return nil, fmt.Errorf("malformed call %q", expr)
	}
	fn, ok := r.funcs[m[1]]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, m[1])
	}
	v, err := fn(splitArgs(m[2]))
	if err != nil {
		return nil, fmt.Errorf("%s(): %w", m[1], err)
	}
	return v, nil
}

// splitArgs splits on commas outside single or double quotes and strips
// the quotes.
func splitArgs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var args []string
	var cur strings.Builder
	var quote rune
	for _, ch := range s {
		switch {
		case quote != 0 && ch == quote:
			quote = 0
		case quote != 0:
			cur.WriteRune(ch)
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == ',':
			args = append(args, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(ch)
		}
	}
	return append(args, strings.TrimSpace(cur.String()))
}

func intArg(args []string, i int, name string, fallback int) (int, error) {
	if i >= len(args) {
		return fallback, nil
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, args[i])
	}
	return n, nil
}

func now(_ []string) (any, error) {
	return time.Now().UTC().Format(time.RFC3339), nil
}

func timestamp(_ []string) (any, error) {
	return time.Now().Unix(), nil
}

// date formats the current UTC time with a Go layout, 2006-01-02 by default.
func date(args []string) (any, error) {
	layout := "2006-01-02"
	if len(args) > 0 && args[0] != "" {
		layout = args[0]
	}
	return time.Now().UTC().Format(layout), nil
}

func newUUID(_ []string) (any, error) {
	return uuid.NewString(), nil
}

// randomInt returns an integer in [min, max], 0..100 without arguments.
func randomInt(args []string) (any, error) {
	if len(args) != 0 && len(args) != 2 {
		return nil, fmt.Errorf("want no arguments or min and max, got %d", len(args))
	}
	lo, err := intArg(args, 0, "min", 0)
	if err != nil {
		return nil, err
	}
	hi, err := intArg(args, 1, "max", 100)
	if err != nil {
		return nil, err
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + rand.Intn(hi-lo+1), nil
}

const (
	lowercase    = "abcdefghijklmnopqrstuvwxyz"
	alphanumeric = lowercase + "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

func randomFrom(charset string, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}

func randomAlnum(args []string) (any, error) {
	n, err := intArg(args, 0, "length", 16)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("length must not be negative, got %d", n)
	}
	return randomFrom(alphanumeric, n), nil
}

// randomEmail returns an address under reqres.in so registration-style
// payloads look like the fixture's users.
func randomEmail(_ []string) (any, error) {
	return randomFrom(lowercase, 8) + "@reqres.in", nil
}

func base64Encode(args []string) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("want one argument, got %d", len(args))
	}
	return base64.StdEncoding.EncodeToString([]byte(args[0])), nil
}
