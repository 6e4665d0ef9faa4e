package cypher

import (
	"fmt"
	"regexp"
	"strings"
)

// WriteKeywordError reports a write/DDL keyword found in a query that must be
// read-only.
type WriteKeywordError struct {
	Keyword string
}

func (e *WriteKeywordError) Error() string {
	return fmt.Sprintf("query contains write operation %q", e.Keyword)
}

// writeKeywordRe matches write/DDL keywords on word boundaries. DETACH DELETE
// is listed first so the combined form is reported as one keyword.
var writeKeywordRe = regexp.MustCompile(`(?i)\b(DETACH\s+DELETE|CREATE|MERGE|SET|DELETE|REMOVE|DROP|FOREACH)\b`)

var whitespaceRe = regexp.MustCompile(`\s+`)

// ValidateReadOnly rejects Cypher containing write or schema-mutating keywords.
// Comments and the contents of quoted literals are blanked before scanning so
// that e.g. WHERE n.name = 'SET' is not a false positive.
func ValidateReadOnly(query string) error {
	scrubbed := scrubLiterals(query)
	if m := writeKeywordRe.FindString(scrubbed); m != "" {
		kw := strings.ToUpper(whitespaceRe.ReplaceAllString(m, " "))
		return &WriteKeywordError{Keyword: kw}
	}
	return nil
}

// scrubLiterals replaces comments and the contents of single-, double- and
// backtick-quoted literals with spaces, preserving the surrounding structure.
func scrubLiterals(query string) string {
	var b strings.Builder
	b.Grow(len(query))

	const (
		stateCode = iota
		stateLineComment
		stateBlockComment
		stateSingle
		stateDouble
		stateBacktick
	)

	state := stateCode
	runes := []rune(query)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch state {
		case stateCode:
			switch {
			case c == '/' && next == '/':
				state = stateLineComment
				i++
			case c == '/' && next == '*':
				state = stateBlockComment
				i++
			case c == '\'':
				state = stateSingle
				b.WriteRune(' ')
			case c == '"':
				state = stateDouble
				b.WriteRune(' ')
			case c == '`':
				state = stateBacktick
				b.WriteRune(' ')
			default:
				b.WriteRune(c)
			}
		case stateLineComment:
			if c == '\n' {
				state = stateCode
				b.WriteRune('\n')
			}
		case stateBlockComment:
			if c == '*' && next == '/' {
				state = stateCode
				i++
			}
		case stateSingle:
			if c == '\\' {
				i++ // skip escaped char
			} else if c == '\'' {
				state = stateCode
			}
		case stateDouble:
			if c == '\\' {
				i++
			} else if c == '"' {
				state = stateCode
			}
		case stateBacktick:
			if c == '`' {
				state = stateCode
			}
		}
	}
	return b.String()
}
