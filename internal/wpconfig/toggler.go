// Package wpconfig rewrites boolean constant definitions in a wp-config.php
// style bootstrap file. It is a pure text transformation; callers own the
// read-modify-write cycle.
package wpconfig

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"devassist/internal/models"
)

var (
	// ErrInvalidTarget means Set was called with something other than
	// enabled, disabled or missing. It is a caller bug.
	ErrInvalidTarget = errors.New("invalid target state")
	// ErrAnchorNotFound means an absent constant could not be inserted
	// because the file has no $table_prefix line to insert before.
	ErrAnchorNotFound = errors.New("insertion anchor not found")
	// ErrInvalidName means the constant name is not a PHP identifier
	ErrInvalidName = errors.New("invalid constant name")
)

// Anchor is the statement new definitions are inserted before. Constants
// defined after it are read too late by WordPress.
const Anchor = "$table_prefix"

var (
	namePattern   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	anchorPattern = regexp.MustCompile(`(?m)^[ \t]*` + regexp.QuoteMeta(Anchor))

	patternsMu sync.Mutex
	patterns   = map[string]*regexp.Regexp{}
)

// Canonical returns the single form written for name in the given state
func Canonical(name string, enabled bool) string {
	value := "false"
	if enabled {
		value = "true"
	}
	return "define( '" + name + "', " + value + " );"
}

// spelling matches every recognized definition of name:
//
//	define( 'NAME', true );  define("NAME",false);  const NAME = TRUE;
//
// Group 1 holds the define() literal, group 2 the const literal.
func spelling(name string) *regexp.Regexp {
	patternsMu.Lock()
	defer patternsMu.Unlock()

	if re, ok := patterns[name]; ok {
		return re
	}
	q := regexp.QuoteMeta(name)
	re := regexp.MustCompile(
		`\b(?:(?i:define)\s*\(\s*['"]` + q + `['"]\s*,\s*((?i:true|false))\s*\)` +
			`|const\s+` + q + `\s*=\s*((?i:true|false)))\s*;`,
	)
	patterns[name] = re
	return re
}

type definition struct {
	start, end int
	enabled    bool
}

func find(content, name string) []definition {
	matches := spelling(name).FindAllStringSubmatchIndex(content, -1)
	defs := make([]definition, 0, len(matches))
	for _, m := range matches {
		var literal string
		if m[2] >= 0 {
			literal = content[m[2]:m[3]]
		} else {
			literal = content[m[4]:m[5]]
		}
		defs = append(defs, definition{
			start:   m[0],
			end:     m[1],
			enabled: strings.EqualFold(literal, "true"),
		})
	}
	return defs
}

// Detect returns the state the first recognized definition of name gives it.
// PHP ignores later define() calls for the same name.
func Detect(content, name string) models.TriState {
	defs := find(content, name)
	if len(defs) == 0 {
		return models.Missing
	}
	return models.TriStateOf(defs[0].enabled)
}

// Set rewrites content so name ends up in the target state:
//
//   - enabled:  every definition becomes the canonical true form; an absent
//     constant is inserted before the $table_prefix line.
//   - disabled: every definition becomes the canonical false form; an absent
//     constant stays absent.
//   - missing:  every definition is removed along with its line.
//
// Duplicate definitions collapse so at most one remains.
func Set(content, name string, target models.TriState) (string, error) {
	if !namePattern.MatchString(name) {
		return "", fmt.Errorf("%q: %w", name, ErrInvalidName)
	}

	defs := find(content, name)

	switch target {
	case models.Enabled:
		if len(defs) == 0 {
			return insert(content, Canonical(name, true))
		}
		return rewrite(content, defs, Canonical(name, true)), nil
	case models.Disabled:
		if len(defs) == 0 {
			return content, nil
		}
		return rewrite(content, defs, Canonical(name, false)), nil
	case models.Missing:
		return rewrite(content, defs, ""), nil
	default:
		return "", fmt.Errorf("%q is not an allowed value: %w", string(target), ErrInvalidTarget)
	}
}

// rewrite replaces the first definition with replacement and strips the rest.
// An empty replacement strips all of them.
func rewrite(content string, defs []definition, replacement string) string {
	var b strings.Builder
	prev := 0
	for i, d := range defs {
		if i == 0 && replacement != "" {
			b.WriteString(content[prev:d.start])
			b.WriteString(replacement)
			prev = d.end
			continue
		}
		start, end := lineBounds(content, d.start, d.end)
		if start < prev {
			start = prev
		}
		b.WriteString(content[prev:start])
		prev = end
	}
	b.WriteString(content[prev:])
	return b.String()
}

// lineBounds widens [start, end) to the whole line, terminator included, when
// the statement is alone on it. Otherwise the statement and the blanks after
// it are all that go.
func lineBounds(content string, start, end int) (int, int) {
	lineStart := strings.LastIndexByte(content[:start], '\n') + 1
	alone := strings.TrimLeft(content[lineStart:start], " \t") == ""

	rest := end
	for rest < len(content) && (content[rest] == ' ' || content[rest] == '\t') {
		rest++
	}

	switch {
	case strings.HasPrefix(content[rest:], "\r\n"):
		if alone {
			return lineStart, rest + 2
		}
	case strings.HasPrefix(content[rest:], "\n"):
		if alone {
			return lineStart, rest + 1
		}
	case rest == len(content):
		if alone {
			return lineStart, rest
		}
	}
	return start, rest
}

func insert(content, statement string) (string, error) {
	loc := anchorPattern.FindStringIndex(content)
	if loc == nil {
		return "", fmt.Errorf("%s: %w", Anchor, ErrAnchorNotFound)
	}
	return content[:loc[0]] + statement + lineEnding(content) + content[loc[0]:], nil
}

func lineEnding(content string) string {
	if strings.Contains(content, "\r\n") {
		return "\r\n"
	}
	return "\n"
}
