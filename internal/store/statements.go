package store

import (
	"fmt"
	"strings"
	"unicode"
)

// SplitStatements splits text on top-level semicolons. Quoted strings,
// dollar-quoted bodies ($$...$$, $tag$...$tag$), quoted identifiers and
// comments are skipped so that a semicolon inside them never splits.
// Pieces that hold only whitespace or comments are dropped.
func SplitStatements(text string) []string {
	runes := []rune(text)
	statements := make([]string, 0, 1)

	var current strings.Builder
	hasCode := false
	flush := func() {
		if hasCode {
			statements = append(statements, strings.TrimSpace(current.String()))
		}
		current.Reset()
		hasCode = false
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\'' || r == '"' || r == '`':
			end := scanQuoted(runes, i, r)
			current.WriteString(string(runes[i:end]))
			hasCode = true
			i = end - 1
		case r == '$':
			end := i + 1
			if tagEnd := dollarTagEnd(runes, i); tagEnd > 0 {
				end = scanDollarQuoted(runes, i, tagEnd)
			}
			current.WriteString(string(runes[i:end]))
			hasCode = true
			i = end - 1
		case r == '[':
			end := scanBracket(runes, i)
			current.WriteString(string(runes[i:end]))
			hasCode = true
			i = end - 1
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			end := scanLineComment(runes, i)
			current.WriteString(string(runes[i:end]))
			i = end - 1
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			end := scanBlockComment(runes, i)
			current.WriteString(string(runes[i:end]))
			i = end - 1
		case r == ';':
			flush()
		default:
			current.WriteRune(r)
			if !unicode.IsSpace(r) {
				hasCode = true
			}
		}
	}
	flush()

	return statements
}

// SingleStatement returns the only statement in text with trailing
// semicolons removed.
func SingleStatement(text string) (string, error) {
	statements := SplitStatements(text)
	switch len(statements) {
	case 0:
		return "", ErrEmptyStatement
	case 1:
		return statements[0], nil
	default:
		return "", fmt.Errorf("%w: found %d statements", ErrMultipleStatements, len(statements))
	}
}

// scanQuoted returns the index just past the closing quote. A doubled quote
// is an escaped quote. Unterminated input runs to the end.
func scanQuoted(runes []rune, start int, quote rune) int {
	for i := start + 1; i < len(runes); i++ {
		if runes[i] != quote {
			continue
		}
		if i+1 < len(runes) && runes[i+1] == quote {
			i++
			continue
		}
		return i + 1
	}
	return len(runes)
}

// dollarTagEnd returns the index just past the opening delimiter of a
// dollar quote starting at start, or 0 when the '$' does not open one. A
// '$' that continues an identifier or starts a positional parameter ($1)
// is not a delimiter.
func dollarTagEnd(runes []rune, start int) int {
	if start > 0 && isIdentRune(runes[start-1]) {
		return 0
	}
	for i := start + 1; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '$':
			return i + 1
		case r == '_' || unicode.IsLetter(r):
		case unicode.IsDigit(r) && i > start+1:
		default:
			return 0
		}
	}
	return 0
}

// scanDollarQuoted returns the index just past the closing delimiter, which
// must repeat the opening tag exactly. Unterminated input runs to the end.
func scanDollarQuoted(runes []rune, start, bodyStart int) int {
	tag := runes[start:bodyStart]
	for i := bodyStart; i+len(tag) <= len(runes); i++ {
		if runes[i] == '$' && string(runes[i:i+len(tag)]) == string(tag) {
			return i + len(tag)
		}
	}
	return len(runes)
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func scanBracket(runes []rune, start int) int {
	for i := start + 1; i < len(runes); i++ {
		if runes[i] == ']' {
			return i + 1
		}
	}
	return len(runes)
}

func scanLineComment(runes []rune, start int) int {
	for i := start + 2; i < len(runes); i++ {
		if runes[i] == '\n' {
			return i
		}
	}
	return len(runes)
}

func scanBlockComment(runes []rune, start int) int {
	for i := start + 2; i+1 < len(runes); i++ {
		if runes[i] == '*' && runes[i+1] == '/' {
			return i + 2
		}
	}
	return len(runes)
}
