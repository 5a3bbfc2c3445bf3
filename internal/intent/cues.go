package intent

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

func phrases(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

var (
	scanCues  = phrases("scan", "check", "check for", "fetch", "get new", "pull", "sync", "download", "refresh")
	queryCues = phrases("what", "show me", "do i have", "is there", "are there", "list")

	// strong fetch verbs win a tie on their own
	temporalVerbs = phrases("scan", "fetch", "sync", "download", "refresh", "get new", "pull new")
	// weaker fetch verbs need a time word after them
	temporalFetch = regexp.MustCompile(`\b(?:check|check for|pull|get|fetch)\s+(?:(?:my|the|for|any|all|me)\s+)*` +
		`(?:new|latest|recent|today|yesterday|this week|this month|last \d+ days|since)\b`)
)

// normalize lowercases, applies NFKC and collapses whitespace
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(norm.NFKC.String(s))), " ")
}

// overrideKey is the normalized lookup key of the override map
func overrideKey(s string) string {
	return strings.TrimRight(normalize(s), " .!?")
}

type cueMatch struct {
	scan     bool
	query    bool
	temporal bool
}

func matchCues(normalized string) cueMatch {
	return cueMatch{
		scan:     scanCues.MatchString(normalized),
		query:    queryCues.MatchString(normalized),
		temporal: temporalVerbs.MatchString(normalized) || temporalFetch.MatchString(normalized),
	}
}
