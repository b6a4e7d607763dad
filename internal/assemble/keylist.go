package assemble

import (
	"regexp"
	"strings"
)

var onRe = regexp.MustCompile(`(?i)\sON\s`)

// closers maps each opening quote of a quoted identifier or string literal
// to the character that ends it.
var closers = map[byte]byte{'"': '"', '\'': '\'', '`': '`', '[': ']'}

// KeyList extracts the top-level comma separated key list of a CREATE INDEX
// statement: the first parenthesized group after ON. It returns nil when
// the statement has no complete key list.
func KeyList(def string) []string {
	loc := onRe.FindStringIndex(def)
	if loc == nil {
		return nil
	}
	open := strings.IndexByte(def[loc[1]:], '(')
	if open < 0 {
		return nil
	}
	var (
		parts []string
		depth int
		quote byte
		start = loc[1] + open + 1
	)
	for i := start; i < len(def); i++ {
		c := def[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		if end, ok := closers[c]; ok {
			quote = end
			continue
		}
		switch {
		case c == '(':
			depth++
		case c == ')' && depth > 0:
			depth--
		case c == ')':
			return append(parts, strings.TrimSpace(def[start:i]))
		case c == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(def[start:i]))
			start = i + 1
		}
	}
	return nil
}

var orderRe = regexp.MustCompile(`(?is)(?:\s+COLLATE\s+(?:"[^"]*"|\w+))?(?:\s+(?:ASC|DESC))?$`)

// TrimOrdering drops a trailing COLLATE clause and sort direction from a
// key part.
func TrimOrdering(part string) string {
	return strings.TrimSpace(orderRe.ReplaceAllString(part, ""))
}

// Unwrap drops one pair of parentheses enclosing the whole of s.
func Unwrap(s string) string {
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return s
	}
	depth := 0
	for i := 0; i < len(s)-1; i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 {
			return s
		}
	}
	return s[1 : len(s)-1]
}
