// Package model resolves model identifiers, accepting both full ids and the
// short family aliases people actually type.
package model

import (
	"fmt"
	"sort"
	"strings"
)

// Known full model identifiers.
var ids = []string{
	"claude-sonnet-4-0",
	"claude-3-5-sonnet-latest",
	"claude-3-5-haiku-latest",
	"claude-3-opus-latest",
}

var aliases = map[string]string{
	"sonnet": "claude-sonnet-4-0",
	"haiku":  "claude-3-5-haiku-latest",
	"opus":   "claude-3-opus-latest",
}

// DefaultID is used when no model is specified.
const DefaultID = "claude-sonnet-4-0"

// Resolve maps a name to a full model id. Unknown "claude-" prefixed names
// pass through unchanged so new models work before this table learns them.
func Resolve(name string) (string, error) {
	lower := strings.ToLower(name)
	for _, id := range ids {
		if id == lower {
			return id, nil
		}
	}
	if id, ok := aliases[lower]; ok {
		return id, nil
	}
	if strings.HasPrefix(lower, "claude-") {
		return lower, nil
	}
	return "", fmt.Errorf("unknown model identifier %q (available: %s)",
		name, strings.Join(Available(), ", "))
}

// Available lists every accepted identifier and alias, sorted.
func Available() []string {
	out := append([]string(nil), ids...)
	for a := range aliases {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Aliases returns the alias table for display.
func Aliases() map[string]string {
	out := make(map[string]string, len(aliases))
	for k, v := range aliases {
		out[k] = v
	}
	return out
}
