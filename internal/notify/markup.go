package notify

import (
	"regexp"
)

var markupRules = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile("(?s)```.*?```"), " "},
	{regexp.MustCompile(`(?s)<!--.*?-->`), " "},
	{regexp.MustCompile(`<[^>]+>`), " "},
	{regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`), "$1"},
	{regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`), "$1"},
	{regexp.MustCompile("`([^`]*)`"), "$1"},
	{regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s*`), ""},
	{regexp.MustCompile(`(?m)^\s*[-*+]\s+`), ""},
	{regexp.MustCompile(`(?m)^\s*>\s?`), ""},
	{regexp.MustCompile(`(\*\*|__)(.+?)(\*\*|__)`), "$2"},
	{regexp.MustCompile(`(?m)^\s*[-*_]{3,}\s*$`), " "},
}

// StripMarkup removes markdown and HTML syntax, leaving readable text
func StripMarkup(s string) string {
	for _, rule := range markupRules {
		s = rule.pattern.ReplaceAllString(s, rule.replacement)
	}
	return s
}
