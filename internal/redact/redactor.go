// Package redact scrubs sensitive substrings (phone numbers, email
// addresses, labeled student ids and account numbers) from arbitrary text.
// Redaction is idempotent: running the rules over already-redacted output
// changes nothing and reports no hits.
package redact

import "regexp"

// Policy selects what callers do with redaction results.
type Policy string

const (
	// PolicyMask returns the redacted text.
	PolicyMask Policy = "mask"
	// PolicyReject tells the caller to discard the whole payload on any hit.
	PolicyReject Policy = "reject"
)

// Result is the outcome of one redaction pass.
type Result struct {
	Text  string   // redacted text
	Hit   bool     // true if any rule matched
	Kinds []string // labels of the rules that matched, in rule order
}

type rule struct {
	kind string // fixed label recorded in Kinds; never contains matched content
	rx   *regexp.Regexp
	repl string
}

// Rules are applied in order, each to the output of the previous one.
// The replacement patterns are chosen so that re-matching the replaced text
// is impossible (masked digit groups no longer satisfy the digit patterns).
var rules = []rule{
	{
		kind: "phone",
		rx:   regexp.MustCompile(`([0-9]{3})-?([0-9]{3,4})-?([0-9]{4})`),
		repl: "$1-****-$3",
	},
	{
		kind: "email",
		rx:   regexp.MustCompile(`([A-Za-z0-9._%+-]+)@([A-Za-z0-9.-]+\.[A-Za-z]{2,})`),
		repl: "***@$2",
	},
	{
		kind: "student_id",
		rx:   regexp.MustCompile(`(?i)(?:학번|student\s*id)[:\s]*[0-9]{8,10}`),
		repl: "학번: ********",
	},
	{
		kind: "account",
		rx:   regexp.MustCompile(`(?i)(?:계좌|account)[:\s]*[0-9][0-9\-]{7,}`),
		repl: "계좌: ****(masked)",
	},
}

// Redact applies every rule in order and reports which ones matched.
func Redact(text string) Result {
	res := Result{Text: text}
	for _, r := range rules {
		if !r.rx.MatchString(res.Text) {
			continue
		}
		res.Hit = true
		res.Kinds = append(res.Kinds, r.kind)
		res.Text = r.rx.ReplaceAllString(res.Text, r.repl)
	}
	return res
}
