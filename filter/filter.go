// Package filter implements the ordered prefix-match rule list used to admit
// or drop messages on a Stream's read/write side and on a Mux's forward/
// reverse side.
package filter

import "strings"

// Rule is one (needle, allow) pair parsed from a filter spec token.
type Rule struct {
	Needle string
	Allow  bool
}

// Filter is an ordered list of Rules. The zero value is an empty filter that
// passes every message.
type Filter struct {
	rules []Rule
	spec  string
}

// Parse builds a Filter from a spec string of the form
// "token[/token]...". A token prefixed with '!' becomes a deny rule with the
// '!' stripped; the literal token "*" matches any message name. An empty
// token (e.g. from "a//b" or a leading/trailing '/') makes the whole spec
// invalid. An empty spec string is valid and yields a Filter that passes
// everything.
func Parse(spec string) (Filter, error) {
	f := Filter{spec: spec}
	if spec == "" {
		return f, nil
	}
	for _, tok := range strings.Split(spec, "/") {
		allow := true
		if strings.HasPrefix(tok, "!") {
			allow = false
			tok = tok[1:]
		}
		if tok == "" {
			return Filter{}, &ParseError{Spec: spec}
		}
		f.rules = append(f.rules, Rule{Needle: tok, Allow: allow})
	}
	return f, nil
}

// ParseError reports an invalid filter spec.
type ParseError struct {
	Spec string
}

func (e *ParseError) Error() string {
	return "filter: invalid spec " + quote(e.Spec)
}

func quote(s string) string { return "\"" + s + "\"" }

// Pass evaluates the filter against a message name. The first rule whose
// needle is "*" or a literal prefix of name decides the outcome; an empty
// filter (no rules) always passes.
func (f Filter) Pass(name string) bool {
	for _, r := range f.rules {
		if r.Needle == "*" || strings.HasPrefix(name, r.Needle) {
			return r.Allow
		}
	}
	return len(f.rules) == 0
}

// String returns the original spec string this Filter was parsed from (or
// the empty string for the zero value).
func (f Filter) String() string { return f.spec }

// Len reports the number of rules in the filter.
func (f Filter) Len() int { return len(f.rules) }
