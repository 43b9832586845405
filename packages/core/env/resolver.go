package env

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

// Func produces the value of a built-in such as {{uuid()}}.
type Func func() string

// Resolver substitutes {{name}} placeholders. It is safe for concurrent use.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]string
	funcs     map[string]Func
	getenv    func(string) string
	warnFunc  WarnFunc
}

func NewResolver() *Resolver {
	return &Resolver{
		variables: make(map[string]string),
		funcs: map[string]Func{
			"uuid":        func() string { return uuid.New().String() },
			"timestamp":   func() string { return fmt.Sprintf("%d", time.Now().Unix()) },
			"timestampMs": func() string { return fmt.Sprintf("%d", time.Now().UnixMilli()) },
			"now":         func() string { return time.Now().UTC().Format(time.RFC3339) },
		},
		getenv: os.Getenv,
	}
}

// SetWarnFunc sets a function to be called when a placeholder cannot be resolved
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

func (r *Resolver) SetVariables(vars map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

// Resolve replaces every placeholder in input. {{$NAME}} reads the process
// environment, {{name()}} calls a built-in and {{name}} looks up a variable.
// Unresolved placeholders are left in place.
func (r *Resolver) Resolve(input string) string {
	if !strings.Contains(input, "{{") {
		return input
	}

	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])

		if strings.HasPrefix(expr, "$") {
			if val := r.getenv(expr[1:]); val != "" {
				return val
			}
			r.warn("unresolved environment variable: %s", expr)
			return match
		}

		if name, ok := strings.CutSuffix(expr, "()"); ok {
			r.mu.RLock()
			fn, found := r.funcs[name]
			r.mu.RUnlock()
			if found {
				return fn()
			}
			r.warn("unknown function: %s", expr)
			return match
		}

		r.mu.RLock()
		val, ok := r.variables[expr]
		r.mu.RUnlock()
		if ok {
			return val
		}

		r.warn("unresolved variable: %s", expr)
		return match
	})
}

// Unresolved lists the placeholders of input that Resolve would leave in place.
func (r *Resolver) Unresolved(input string) []string {
	var missing []string
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		switch {
		case strings.HasPrefix(expr, "$"):
			if r.getenv(expr[1:]) == "" {
				missing = append(missing, expr)
			}
		case strings.HasSuffix(expr, "()"):
			r.mu.RLock()
			_, ok := r.funcs[strings.TrimSuffix(expr, "()")]
			r.mu.RUnlock()
			if !ok {
				missing = append(missing, expr)
			}
		default:
			r.mu.RLock()
			_, ok := r.variables[expr]
			r.mu.RUnlock()
			if !ok {
				missing = append(missing, expr)
			}
		}
	}
	return missing
}
