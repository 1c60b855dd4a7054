// Package safety classifies generated SQL by a whole-word keyword denylist.
//
// The check is lexical. Statements such as CREATE, ATTACH, PRAGMA, REPLACE
// and VACUUM are not on the denylist and pass, and a denylisted word inside
// a string literal is reported as unsafe.
package safety

import (
	"fmt"
	"regexp"
	"strings"
)

// Denylist is evaluated in this order and offending keywords are reported in
// the same order.
var Denylist = []string{"DROP", "DELETE", "TRUNCATE", "INSERT", "UPDATE", "ALTER"}

var denylistPatterns = compileDenylist(Denylist)

type Verdict struct {
	Safe     bool
	Keywords []string
	Message  string
}

func Evaluate(query string) Verdict {
	upper := strings.ToUpper(query)

	var found []string
	for i, pattern := range denylistPatterns {
		if pattern.MatchString(upper) {
			found = append(found, Denylist[i])
		}
	}
	if len(found) == 0 {
		return Verdict{Safe: true}
	}
	return Verdict{
		Safe:     false,
		Keywords: found,
		Message:  fmt.Sprintf("Security Alert: query contains forbidden keyword(s) %s; only read-only queries are allowed.", strings.Join(found, ", ")),
	}
}

func compileDenylist(keywords []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(keywords))
	for _, keyword := range keywords {
		patterns = append(patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(keyword)+`\b`))
	}
	return patterns
}
