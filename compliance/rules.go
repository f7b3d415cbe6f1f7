// Package compliance evaluates execution traces against configurable safety
// rulesets and aggregates matched violations into a weighted risk score.
//
// Rulesets are immutable once compiled and validated eagerly: a single
// malformed rule rejects the whole load, so misconfiguration surfaces at
// startup rather than at first match.
package compliance

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/spectracehq/audit-sdk-go/trace"
)

var ErrInvalidRule = errors.New("compliance: invalid rule")

// Kind selects how a rule's pattern is matched.
type Kind string

const (
	// KindRegex matches the pattern as a case-insensitive regular
	// expression. The default when a rule declares no kind.
	KindRegex Kind = "regex"
	// KindSubstring matches the pattern as a case-insensitive literal.
	KindSubstring Kind = "substring"
)

// Scope selects what a rule's pattern is matched against.
type Scope string

const (
	// ScopeStep evaluates the rule against each step independently. The
	// default when a rule declares no scope.
	ScopeStep Scope = "step"
	// ScopeTrace evaluates the rule once against the concatenation of all
	// steps; its violations carry no step index.
	ScopeTrace Scope = "trace"
)

// Rule is one declaration in a ruleset, as supplied by the caller or a rule
// file.
type Rule struct {
	ID          string         `json:"id" jsonschema:"minLength=1"`
	Name        string         `json:"name,omitempty"`
	Kind        Kind           `json:"kind,omitempty" jsonschema:"enum=regex,enum=substring"`
	Pattern     string         `json:"pattern" jsonschema:"minLength=1"`
	Severity    trace.Severity `json:"severity" jsonschema:"enum=critical,enum=high,enum=medium,enum=low"`
	Scope       Scope          `json:"scope,omitempty" jsonschema:"enum=step,enum=trace"`
	Description string         `json:"description,omitempty"`
}

type compiledRule struct {
	decl    Rule
	re      *regexp.Regexp // set for KindRegex
	literal string         // lowercased needle for KindSubstring
}

// RuleSet is a compiled, immutable ruleset. Rules keep their declaration
// order, which fixes the order of emitted violations. Safe for concurrent
// use.
type RuleSet struct {
	rules []compiledRule
}

// Compile validates and compiles rule declarations. Any invalid rule fails
// the entire set with an error wrapping ErrInvalidRule; a ruleset is never
// partially applied.
func Compile(rules []Rule) (*RuleSet, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("empty ruleset: %w", ErrInvalidRule)
	}

	rs := &RuleSet{rules: make([]compiledRule, 0, len(rules))}
	seen := make(map[string]bool, len(rules))

	for i, decl := range rules {
		if strings.TrimSpace(decl.ID) == "" {
			return nil, fmt.Errorf("rule %d: missing id: %w", i, ErrInvalidRule)
		}
		if seen[decl.ID] {
			return nil, fmt.Errorf("rule %q: duplicate id: %w", decl.ID, ErrInvalidRule)
		}
		seen[decl.ID] = true

		if !decl.Severity.Valid() {
			return nil, fmt.Errorf("rule %q: unknown severity %q: %w", decl.ID, decl.Severity, ErrInvalidRule)
		}
		if strings.TrimSpace(decl.Pattern) == "" {
			return nil, fmt.Errorf("rule %q: missing pattern: %w", decl.ID, ErrInvalidRule)
		}

		switch decl.Scope {
		case "":
			decl.Scope = ScopeStep
		case ScopeStep, ScopeTrace:
		default:
			return nil, fmt.Errorf("rule %q: unknown scope %q: %w", decl.ID, decl.Scope, ErrInvalidRule)
		}

		compiled := compiledRule{decl: decl}
		switch decl.Kind {
		case "", KindRegex:
			compiled.decl.Kind = KindRegex
			re, err := regexp.Compile(`(?i)(?:` + decl.Pattern + `)`)
			if err != nil {
				return nil, fmt.Errorf("rule %q: pattern does not compile: %v: %w", decl.ID, err, ErrInvalidRule)
			}
			compiled.re = re
		case KindSubstring:
			compiled.literal = strings.ToLower(decl.Pattern)
		default:
			return nil, fmt.Errorf("rule %q: unknown kind %q: %w", decl.ID, decl.Kind, ErrInvalidRule)
		}

		rs.rules = append(rs.rules, compiled)
	}
	return rs, nil
}

// Len returns the number of rules in the set.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// Rules returns the normalized declarations in declaration order.
func (rs *RuleSet) Rules() []Rule {
	out := make([]Rule, 0, len(rs.rules))
	for _, r := range rs.rules {
		out = append(out, r.decl)
	}
	return out
}

// match reports whether the rule matches text, returning the matched
// fragment in its original casing.
func (r compiledRule) match(text string) (string, bool) {
	if r.re != nil {
		m := r.re.FindString(text)
		if m == "" {
			// A pattern whose leftmost match is empty is not a content match.
			return "", false
		}
		return m, true
	}
	idx := strings.Index(strings.ToLower(text), r.literal)
	if idx < 0 {
		return "", false
	}
	return text[idx : idx+len(r.literal)], true
}
