package normalize

import (
	"regexp"
	"strings"
)

// Patterns used when the narrative text holds no decodable JSON block.
var (
	reAttention    = regexp.MustCompile(`(?i)Attention Score"?\s*:\s*"?(\d+(?:\.\d+)?)`)
	reEngagement   = regexp.MustCompile(`(?i)Engagement Potential"?\s*:\s*"?(\d+(?:\.\d+)?)`)
	reRetention    = regexp.MustCompile(`(?i)Watch Time Retention"?\s*:\s*"?(\d+(?:\.\d+)?%?)`)
	reKeyStrengths = regexp.MustCompile(`(?is)Key Strengths"?\s*:\s*\[(.*?)\]`)
	reImprovements = regexp.MustCompile(`(?is)Improvement Suggestions"?\s*:\s*\[(.*?)\]`)
)

// proseField builds a pattern for `"Name": "value"`.
func proseField(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)"?` + regexp.QuoteMeta(name) + `"?\s*:\s*"([^"]+)`)
}

var (
	reHook     = proseField("Hook")
	reEditing  = proseField("Editing")
	reTonality = regexp.MustCompile(`(?i)"?Tonality(?: of Voice)?"?\s*:\s*"([^"]+)`)

	coreStrengthPatterns = aliasPatterns(coreStrengthAliases)
	viralPatterns        = aliasPatterns(viralAliases)
)

func aliasPatterns(aliases map[string][]string) map[string][]*regexp.Regexp {
	out := make(map[string][]*regexp.Regexp, len(aliases))
	for key, names := range aliases {
		for _, name := range names {
			out[key] = append(out[key], proseField(name))
		}
	}
	return out
}

// extractNarrativeFields recovers individual fields from malformed text.
func extractNarrativeFields(raw string) narrativeFields {
	f := narrativeFields{
		Attention:    matchValue(raw, reAttention),
		Engagement:   matchValue(raw, reEngagement),
		Retention:    matchValue(raw, reRetention),
		KeyStrengths: matchList(raw, reKeyStrengths),
		Improvements: matchList(raw, reImprovements),
		Hook:         matchValue(raw, reHook),
		Editing:      matchValue(raw, reEditing),
		Tonality:     matchValue(raw, reTonality),
		Core:         matchFields(raw, coreStrengthPatterns),
		Viral:        matchFields(raw, viralPatterns),
	}
	// the core strengths and viral sections share the "Visuals" key
	if f.Viral != nil && f.Viral[FieldVisuals] != "" && f.Viral[FieldVisuals] == f.Core[FieldVisuals] {
		if v := matchValue(raw, proseField("Intriguing Visuals")); v != "" {
			f.Viral[FieldVisuals] = v
		}
	}
	return f
}

func matchValue(text string, re *regexp.Regexp) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func matchList(text string, re *regexp.Regexp) []string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	var out []string
	for _, item := range strings.Split(m[1], ",") {
		item = strings.Trim(strings.TrimSpace(item), `"`)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func matchFields(text string, patterns map[string][]*regexp.Regexp) map[string]string {
	out := make(map[string]string, len(patterns))
	for key, res := range patterns {
		for _, re := range res {
			if v := matchValue(text, re); v != "" {
				out[key] = v
				break
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
