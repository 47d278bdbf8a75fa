package netmon

import (
	"regexp"
	"strings"
)

// MatchPattern compiles a URL pattern into a Rule.Match predicate. A
// pattern starting with '^' or ending with '$' is treated as a regular
// expression; anything else is a glob where '*' matches any run of
// characters and '?' matches exactly one. An invalid regex never matches.
func MatchPattern(pattern string) func(*InterceptedRequest) bool {
	if strings.HasPrefix(pattern, "^") || strings.HasSuffix(pattern, "$") {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return func(*InterceptedRequest) bool { return false }
		}
		return func(r *InterceptedRequest) bool { return re.MatchString(r.URL) }
	}
	re := globToRegexp(pattern)
	return func(r *InterceptedRequest) bool { return re.MatchString(r.URL) }
}

func globToRegexp(glob string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range glob {
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
	return regexp.MustCompile(b.String())
}
