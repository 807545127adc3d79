// Package parser recognises canonical page links in index-file lines.
package parser

import (
	"regexp"

	"github.com/starford/wikisync/internal/models"
)

// LinkPattern matches Markdown links of the form [label](<prefix><target>).
// Links whose destination does not start with prefix are not recognised.
type LinkPattern struct {
	re *regexp.Regexp
}

// NewLinkPattern compiles the link grammar anchored on prefix. The target may
// hold one level of balanced parentheses, so a stem like "foo(bar)" reads back
// exactly as CanonicalLink wrote it.
func NewLinkPattern(prefix string) *LinkPattern {
	return &LinkPattern{
		re: regexp.MustCompile(`\[([^\]]*)\]\(` + regexp.QuoteMeta(prefix) + `((?:[^()]|\([^()]*\))+)\)`),
	}
}

// Match returns the first recognised link in line.
func (p *LinkPattern) Match(line string) (models.Link, bool) {
	m := p.re.FindStringSubmatch(line)
	if m == nil {
		return models.Link{}, false
	}
	return models.Link{Label: m[1], Target: m[2]}, true
}

// CanonicalLink returns the exact link text generated for a page stem.
func CanonicalLink(stem, prefix string) string {
	return "[" + stem + "](" + prefix + stem + ")"
}
