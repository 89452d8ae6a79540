package stream

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DescribeJSONError turns a JSON parse failure into a positional,
// human-readable diagnosis: line/column for syntax errors plus a
// balanced-delimiter summary so the model can see where a truncated
// argument payload broke off.
func DescribeJSONError(raw string, err error) string {
	var b strings.Builder

	if syn, ok := err.(*json.SyntaxError); ok {
		line, col := offsetToLineCol(raw, syn.Offset)
		fmt.Fprintf(&b, "syntax error at line %d, column %d: %v", line, col, syn)
	} else {
		fmt.Fprintf(&b, "%v", err)
	}

	if diag := delimiterBalance(raw); diag != "" {
		b.WriteString("; ")
		b.WriteString(diag)
	}
	return b.String()
}

// offsetToLineCol converts a byte offset into 1-based line and column.
func offsetToLineCol(s string, offset int64) (line, col int) {
	line, col = 1, 1
	for i := 0; i < len(s) && int64(i) < offset; i++ {
		if s[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// delimiterBalance reports unbalanced braces, brackets, and quotes in the
// raw text, skipping delimiters inside string literals.
func delimiterBalance(s string) string {
	var braces, brackets int
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				braces++
			}
		case '}':
			if !inString {
				braces--
			}
		case '[':
			if !inString {
				brackets++
			}
		case ']':
			if !inString {
				brackets--
			}
		}
	}

	var parts []string
	if braces > 0 {
		parts = append(parts, fmt.Sprintf("%d unclosed '{'", braces))
	} else if braces < 0 {
		parts = append(parts, fmt.Sprintf("%d extra '}'", -braces))
	}
	if brackets > 0 {
		parts = append(parts, fmt.Sprintf("%d unclosed '['", brackets))
	} else if brackets < 0 {
		parts = append(parts, fmt.Sprintf("%d extra ']'", -brackets))
	}
	if inString {
		parts = append(parts, "unterminated string literal")
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ", ")
}
