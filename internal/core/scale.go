package core

import (
	"regexp"
	"strconv"
	"strings"
)

// NeutralScore is the default substituted for missing scores.
const NeutralScore Score = 50

// qualitativeScale maps prose descriptors to the numeric scale. Longer
// phrases come first so "very high" wins over "high".
var qualitativeScale = []struct {
	phrase string
	value  float64
}{
	{"exceptional", 90},
	{"outstanding", 90},
	{"excellent", 90},
	{"very high", 90},
	{"very strong", 90},
	{"extremely", 90},
	{"very low", 20},
	{"below average", 40},
	{"above average", 70},
	{"significant", 80},
	{"majority", 80},
	{"strong", 80},
	{"great", 80},
	{"highly", 80},
	{"high", 80},
	{"good", 70},
	{"moderate", 50},
	{"medium", 50},
	{"average", 50},
	{"balanced", 50},
	{"mixed", 50},
	{"fair", 50},
	{"limited", 40},
	{"some", 40},
	{"minority", 30},
	{"weak", 30},
	{"low", 30},
	{"poor", 20},
	{"minimal", 20},
	{"none", 0},
	{"absent", 0},
}

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// ParseScore converts "85", "75%", "8/10", "82.5 points" or a qualitative
// descriptor into a [0,100] value.
func ParseScore(s string) (float64, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, false
	}
	if m := numberPattern.FindString(t); m != "" {
		v, err := strconv.ParseFloat(m, 64)
		if err == nil {
			// "8/10" style ratings
			if idx := strings.Index(t, "/10"); idx > 0 && !strings.Contains(t, "/100") && v <= 10 {
				v *= 10
			}
			return ClampScore(v), true
		}
	}
	return QualitativeScore(t)
}

// QualitativeScore looks up the first descriptor contained in text.
func QualitativeScore(text string) (float64, bool) {
	l := " " + strings.ToLower(text) + " "
	for _, entry := range qualitativeScale {
		if containsWord(l, entry.phrase) {
			return entry.value, true
		}
	}
	return 0, false
}

// containsWord matches phrase on word boundaries inside padded text.
func containsWord(padded, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(padded[idx:], phrase)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(phrase)
		if !isLetter(padded[start-1]) && (end >= len(padded) || !isLetter(padded[end])) {
			return true
		}
		idx = start + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
