package extract

import (
	"regexp"
	"strings"

	"github.com/poiesic/minutes/core"
)

var (
	// Owners that name a role or group rather than a person
	roleOwner = regexp.MustCompile(`(?i)\b(team|lead|committee|panel|board|management|department|division|` +
		`manager|developer|engineer|architect|analyst|reviewer|group)\b`)

	personOwner = regexp.MustCompile(`^$|^user$|^assistant$|^[A-Z][a-z]+(\s[A-Z][a-z]+)*$`)

	fillerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^no (particular|specific|explicit|clear|stated|given|documented)\b`),
		regexp.MustCompile(`(?i)^not (specified|mentioned|stated|discussed|provided|given|documented)\b`),
		regexp.MustCompile(`(?i)^none (provided|given|stated|mentioned|specified)\b`),
		regexp.MustCompile(`(?i)^straightforward\b`),
		regexp.MustCompile(`(?i)^(no|none|n/?a|tbd|unknown|unspecified)$`),
		regexp.MustCompile(`(?i)^implicit\b`),
		regexp.MustCompile(`(?i)^(just|simply)\s+(a\s+)?(decision|choice|standard)\b`),
		regexp.MustCompile(`(?i)no debate`),
		regexp.MustCompile(`(?i)no (particular |specific )?reason(ing)?\b`),
		regexp.MustCompile(`(?i)^it'?s (just )?(what|how) we`),
		regexp.MustCompile(`(?i)^(standard|default|common|obvious) (choice|decision|approach)\b`),
	}

	longWord = regexp.MustCompile(`\b\w{4,}\b`)
)

// groundedRatio is the share of a free-text field's long words that must
// appear in the source text for the field to be kept.
const groundedRatio = 0.6

// Cleanup repairs the metadata of one extracted item against the chunk text
// it came from. It normalizes owners, strips filler explanations, drops
// rationale or context that is not grounded in the source and drops dates
// the source never mentions. Emptied keys are removed.
func Cleanup(c core.Category, md map[string]string, source string) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = strings.TrimSpace(v)
	}

	switch c {
	case core.CategoryDecision:
		set(out, "owner", cleanOwner(out["owner"]))
		set(out, "rationale", cleanUngrounded(cleanFiller(out["rationale"]), source))
		set(out, "date", cleanDate(out["date"], source))
	case core.CategoryQuestion:
		set(out, "owner", cleanOwner(out["owner"]))
		set(out, "context", cleanUngrounded(cleanFiller(out["context"]), source))
	case core.CategoryActionItem:
		set(out, "owner", cleanOwner(out["owner"]))
		set(out, "deadline", cleanDate(out["deadline"], source))
	}

	for k, v := range out {
		if v == "" {
			delete(out, k)
		}
	}
	return out
}

func set(md map[string]string, key, value string) {
	if _, ok := md[key]; ok {
		md[key] = value
	}
}

func cleanOwner(value string) string {
	switch {
	case value == "":
		return ""
	case personOwner.MatchString(value):
		return value
	case roleOwner.MatchString(value):
		return ""
	case value == strings.ToLower(value):
		return ""
	}
	return value
}

func cleanFiller(value string) string {
	if value == "" {
		return ""
	}
	for _, p := range fillerPatterns {
		if p.MatchString(value) {
			return ""
		}
	}
	return value
}

func cleanUngrounded(value, source string) string {
	if value == "" || source == "" {
		return value
	}
	words := make(map[string]struct{})
	for _, w := range longWord.FindAllString(value, -1) {
		words[strings.ToLower(w)] = struct{}{}
	}
	if len(words) == 0 {
		return value
	}
	lower := strings.ToLower(source)
	grounded := 0
	for w := range words {
		if strings.Contains(lower, w) {
			grounded++
		}
	}
	if float64(grounded)/float64(len(words)) < groundedRatio {
		return ""
	}
	return value
}

func cleanDate(value, source string) string {
	if value == "" || source == "" || strings.Contains(source, value) {
		return value
	}
	return ""
}
