package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/mikey/inbox-agent/internal/core"
	"github.com/mikey/inbox-agent/internal/utils"
)

var (
	relativeRange = regexp.MustCompile(`\b(?:last|past|previous)\s+(\d+)\s+(day|days|week|weeks|month|months)\b`)
	sinceDate     = regexp.MustCompile(`\bsince\s+(.+)$`)
	betweenDates  = regexp.MustCompile(`\b(?:between|from)\s+(.+?)\s+(?:and|to|until)\s+(.+)$`)
	topN          = regexp.MustCompile(`\b(?:top|first|latest|last)\s+(\d+)\s+(?:emails?|messages?|results?|items?|records?)\b`)
	quoted        = regexp.MustCompile(`["“]([^"”]+)["”]`)
)

// keywordStopwords are capitalized words that are never proper nouns here
var keywordStopwords = map[string]bool{
	"i": true, "me": true, "my": true, "im": true, "i'm": true, "please": true,
	"gmail": true, "inbox": true, "email": true, "emails": true,
	"january": true, "february": true, "march": true, "april": true, "may": true, "june": true,
	"july": true, "august": true, "september": true, "october": true, "november": true, "december": true,
	"jan": true, "feb": true, "mar": true, "apr": true, "jun": true, "jul": true, "aug": true,
	"sep": true, "sept": true, "oct": true, "nov": true, "dec": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true, "friday": true,
	"saturday": true, "sunday": true,
}

// dateRangeOf returns the date range named in a normalized utterance
func dateRangeOf(normalized string, now time.Time) (core.DateRange, bool) {
	today := core.UTCDate(now)

	if m := betweenDates.FindStringSubmatch(normalized); m != nil {
		start, okStart := utils.ParseLeadingDate(m[1])
		end, okEnd := utils.ParseLeadingDate(m[2])
		if okStart && okEnd {
			return core.DateRange{Start: start, End: end}, true
		}
	}
	if m := sinceDate.FindStringSubmatch(normalized); m != nil {
		if start, ok := utils.ParseLeadingDate(m[1]); ok {
			return core.DateRange{Start: start, End: today}, true
		}
	}
	if m := relativeRange.FindStringSubmatch(normalized); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			switch strings.TrimSuffix(m[2], "s") {
			case "day":
				return core.DateRange{Start: today.AddDate(0, 0, -n), End: today}, true
			case "week":
				return core.DateRange{Start: today.AddDate(0, 0, -7*n), End: today}, true
			case "month":
				return core.DateRange{Start: today.AddDate(0, -n, 0), End: today}, true
			}
		}
	}

	weekStart := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	switch {
	case strings.Contains(normalized, "yesterday"):
		y := today.AddDate(0, 0, -1)
		return core.DateRange{Start: y, End: y}, true
	case strings.Contains(normalized, "today"):
		return core.DateRange{Start: today, End: today}, true
	case strings.Contains(normalized, "last week"):
		return core.DateRange{Start: weekStart.AddDate(0, 0, -7), End: weekStart.AddDate(0, 0, -1)}, true
	case strings.Contains(normalized, "this week"):
		return core.DateRange{Start: weekStart, End: today}, true
	case strings.Contains(normalized, "last month"):
		return core.DateRange{Start: monthStart.AddDate(0, -1, 0), End: monthStart.AddDate(0, 0, -1)}, true
	case strings.Contains(normalized, "this month"):
		return core.DateRange{Start: monthStart, End: today}, true
	}
	return core.DateRange{}, false
}

// keywordsOf returns quoted phrases and runs of capitalized words, skipping
// the first word of the utterance
func keywordsOf(utterance string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(k string) {
		k = strings.TrimSpace(k)
		if k == "" || seen[strings.ToLower(k)] {
			return
		}
		seen[strings.ToLower(k)] = true
		out = append(out, k)
	}

	for _, m := range quoted.FindAllStringSubmatch(utterance, -1) {
		add(m[1])
	}
	rest := quoted.ReplaceAllString(utterance, " ")

	var run []string
	flush := func() {
		if len(run) > 0 {
			add(strings.Join(run, " "))
			run = nil
		}
	}
	for i, raw := range strings.Fields(rest) {
		word := strings.TrimFunc(raw, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '&'
		})
		if i == 0 || !properNoun(word) {
			flush()
			continue
		}
		run = append(run, word)
		if strings.IndexFunc(raw, unicode.IsPunct) == len(raw)-1 {
			flush()
		}
	}
	flush()
	return out
}

func properNoun(word string) bool {
	runes := []rune(word)
	if len(runes) < 2 || !unicode.IsUpper(runes[0]) {
		return false
	}
	return !keywordStopwords[strings.ToLower(word)]
}

// maxResultsOf reads "top 10 emails" style limits
func maxResultsOf(normalized string) (int, bool) {
	m := topN.FindStringSubmatch(normalized)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
