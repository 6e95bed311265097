// Package sqlguard constrains model-generated SQL to a single bounded,
// read-only SELECT before it ever reaches the database. The checks are
// deliberately lexical, not a parser: a suspicious substring is sufficient
// grounds for denial.
package sqlguard

import (
	"fmt"
	"regexp"
	"strings"
)

// Reason enumerates why a statement was rejected.
type Reason string

const (
	ReasonNone       Reason = ""
	ReasonOnlySelect Reason = "ONLY_SELECT"
	ReasonBadKeyword Reason = "BAD_KEYWORD"
	ReasonDenyTable  Reason = "DENY_TABLE"
)

// Decision is the guard verdict. When Allowed is true, Statement holds the
// sanitized, limit-bounded SQL; otherwise Statement is empty and Reason
// carries the first failing check.
type Decision struct {
	Allowed   bool
	Statement string
	Reason    Reason
}

// denyKeywords are data-definition and data-modification verbs. Their mere
// presence as a substring rejects the statement.
var denyKeywords = []string{
	"update", "delete", "insert", "drop", "alter",
	"grant", "revoke", "create", "truncate",
}

var tableRx = regexp.MustCompile(`\b(?:from|join)\s+([a-zA-Z_][a-zA-Z0-9_]*)`)

// Validate checks candidate SQL against the guard rules, in order:
// SELECT-only prefix, keyword deny-list, table allow-list, then appends a
// LIMIT clause when none is present. allowTables nil or empty disables the
// allow-list check. rowLimit is the default appended limit.
func Validate(candidate string, allowTables []string, rowLimit int) Decision {
	s := strings.TrimSpace(candidate)
	s = strings.TrimRight(s, ";")
	s = strings.TrimSpace(s)
	low := strings.ToLower(s)

	if !strings.HasPrefix(low, "select ") {
		return Decision{Reason: ReasonOnlySelect}
	}

	for _, kw := range denyKeywords {
		if strings.Contains(low, kw) {
			return Decision{Reason: ReasonBadKeyword}
		}
	}

	if len(allowTables) > 0 {
		allowed := make(map[string]struct{}, len(allowTables))
		for _, t := range allowTables {
			allowed[strings.ToLower(t)] = struct{}{}
		}
		for _, m := range tableRx.FindAllStringSubmatch(low, -1) {
			if _, ok := allowed[m[1]]; !ok {
				return Decision{Reason: ReasonDenyTable}
			}
		}
	}

	if !strings.Contains(low, " limit ") {
		s = fmt.Sprintf("%s LIMIT %d", s, rowLimit)
	}

	return Decision{Allowed: true, Statement: s + ";"}
}
