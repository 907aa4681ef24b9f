package env

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/reqcheck/packages/builtin"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

var errUndefined = errors.New("undefined")

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

// Resolver expands {{...}} templates in suite values. It supports process
// environment variables ({{$NAME}}), builtin function calls ({{uuid()}})
// and user-defined variables ({{name}}). Safe for concurrent use.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]any
	funcs     *builtin.Registry
	warnFunc  WarnFunc
}

func NewResolver() *Resolver {
	return &Resolver{
		variables: make(map[string]any),
		funcs:     builtin.NewRegistry(),
	}
}

// SetWarnFunc sets a function to be called when warnings occur (e.g., unresolved variables)
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

func (r *Resolver) SetVariables(vars map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) Resolve(input string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])

		val, err := r.lookup(expr)
		if err != nil {
			r.warn("unresolved variable %s: %v", expr, err)
			return match
		}
		return fmt.Sprintf("%v", val)
	})
}

func (r *Resolver) lookup(expr string) (any, error) {
	if strings.HasPrefix(expr, "$") {
		if val := os.Getenv(expr[1:]); val != "" {
			return val, nil
		}
		return nil, errUndefined
	}

	if strings.Contains(expr, "(") {
		return r.funcs.Call(expr)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	val, ok := r.variables[expr]
	if !ok {
		return nil, errUndefined
	}
	return val, nil
}

// ResolveValue walks a decoded JSON/YAML document and resolves every
// string leaf. Maps and slices are copied, the input is left untouched.
func (r *Resolver) ResolveValue(v any) any {
	switch val := v.(type) {
	case string:
		return r.Resolve(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = r.ResolveValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = r.ResolveValue(item)
		}
		return out
	default:
		return v
	}
}

// GetUnresolvedVariables returns the expressions in input that would be left
// as-is by Resolve, in order of appearance. Function calls count as
// unresolved when the name is unknown or the arguments are rejected.
func (r *Resolver) GetUnresolvedVariables(input string) []string {
	var unresolved []string
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		if _, err := r.lookup(expr); err != nil {
			unresolved = append(unresolved, expr)
		}
	}
	return unresolved
}

// Clone returns an independent resolver with the same variables and warn
// function.
func (r *Resolver) Clone() *Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := NewResolver()
	for k, v := range r.variables {
		clone.variables[k] = v
	}
	clone.warnFunc = r.warnFunc
	return clone
}
