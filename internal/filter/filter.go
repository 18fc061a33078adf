// Package filter decides which discovered URLs are in scope for a crawl,
// using wildcard or regex include/exclude patterns.
package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern is a single scope rule. Wildcard patterns treat * as any run of
// characters and ? as any single character; regex patterns are used as-is.
type Pattern struct {
	Expr  string
	Regex bool
}

// Filter accepts or rejects URLs against include and exclude rules. Excludes
// win: a URL matching any exclude is rejected even when an include matches.
// With no includes configured, every non-excluded URL is accepted. It
// implements crawl.Filter.
type Filter struct {
	includes []*regexp.Regexp
	excludes []*regexp.Regexp
}

// New compiles the given rules into a Filter.
func New(includes, excludes []Pattern) (*Filter, error) {
	inc, err := compileAll(includes)
	if err != nil {
		return nil, fmt.Errorf("compile include patterns: %w", err)
	}
	exc, err := compileAll(excludes)
	if err != nil {
		return nil, fmt.Errorf("compile exclude patterns: %w", err)
	}
	return &Filter{includes: inc, excludes: exc}, nil
}

// InScope evaluates rawURL against the configured rules. The input should be
// a full normalized URL so host and query based patterns work.
func (f *Filter) InScope(rawURL string) bool {
	for _, re := range f.excludes {
		if re.MatchString(rawURL) {
			return false
		}
	}
	if len(f.includes) == 0 {
		return true
	}
	for _, re := range f.includes {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}

func compileAll(patterns []Pattern) ([]*regexp.Regexp, error) {
	var compiled []*regexp.Regexp
	for _, p := range patterns {
		expr := p.Expr
		if !p.Regex {
			expr = wildcardToRegex(expr)
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p.Expr, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// wildcardToRegex quotes everything except * and ?, then anchors the result
// so the wildcard spans the whole URL.
func wildcardToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}
