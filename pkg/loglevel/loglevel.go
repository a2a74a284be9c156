// Package loglevel selects log lines matching a requested severity token.
package loglevel

import (
	"regexp"
	"strings"
)

// PassAll is the level token that disables filtering.
const PassAll = "all"

// Filter returns the subsequence of lines matching level as a whole word,
// which also covers bracket notation such as "[ERROR]". Matching is
// case-insensitive and line-local. An empty or "all" level passes every
// line through unchanged.
func Filter(lines []string, level string) []string {
	level = strings.TrimSpace(level)
	if level == "" || strings.EqualFold(level, PassAll) {
		return lines
	}

	re, err := compile(level)
	if err != nil {
		// Token not expressible as a pattern; fall back to substring match.
		upper := strings.ToUpper(level)
		out := make([]string, 0, len(lines))
		for _, line := range lines {
			if strings.Contains(strings.ToUpper(line), upper) {
				out = append(out, line)
			}
		}
		return out
	}

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if re.MatchString(line) {
			out = append(out, line)
		}
	}
	return out
}

// Match reports whether a single line matches the level token.
func Match(line, level string) bool {
	return len(Filter([]string{line}, level)) == 1
}

func compile(level string) (*regexp.Regexp, error) {
	return regexp.Compile(`(?i)\b` + regexp.QuoteMeta(level) + `\b`)
}
