// Package prompt assembles the decision prompt handed to the generative
// backend for each turn.
//
// Assembly has two halves:
//
//   - [Assembler] concurrently gathers the dynamic ingredients (conversation
//     history, optional semantic recall) and combines them with the static
//     ones (persona, world snapshot, vocabularies).
//   - [Render] performs the final placeholder substitution over the prompt
//     template.
package prompt

import (
	"fmt"
	"strings"
)

// Render substitutes every {{name}} placeholder in template with its entry
// from values and returns the result.
//
// Substitution is exact-match and single-pass: only tokens of the literal
// form {{name}} are recognized, and substituted values are never rescanned,
// so a value containing placeholder syntax passes through verbatim. A token
// with no entry in values is an error — a template typo must fail the turn
// loudly rather than leak raw braces into the backend prompt.
func Render(template string, values map[string]string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(template))

	rest := template
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			sb.WriteString(rest)
			return sb.String(), nil
		}
		close := strings.Index(rest[open:], "}}")
		if close < 0 {
			sb.WriteString(rest)
			return sb.String(), nil
		}
		close += open

		name := rest[open+2 : close]
		if !validPlaceholderName(name) {
			// Not a placeholder token; emit the opening braces and rescan
			// from just past them.
			sb.WriteString(rest[:open+2])
			rest = rest[open+2:]
			continue
		}

		value, ok := values[name]
		if !ok {
			return "", fmt.Errorf("prompt: unresolved placeholder {{%s}}", name)
		}
		sb.WriteString(rest[:open])
		sb.WriteString(value)
		rest = rest[close+2:]
	}
}

// validPlaceholderName reports whether s is a well-formed placeholder name:
// non-empty ASCII letters and digits only.
func validPlaceholderName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
