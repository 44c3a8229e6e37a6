package reconcile

import (
	"strings"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

// Taxonomy is the category set of one demographic dimension.
type Taxonomy struct {
	Name string
	// Canonical lists the allowed categories. Empty means an open set.
	Canonical []string
	// Aliases maps normalized provider labels onto canonical categories.
	Aliases map[string]string
	// Overflow receives non-canonical mass. Ignored when Strict is set.
	Overflow string
	// Strict redistributes non-canonical mass proportionally over the
	// canonical categories instead of folding it into Overflow.
	Strict bool
}

// Canonical demographic taxonomies.
var (
	Ethnicity = Taxonomy{
		Name:      "ethnicity",
		Canonical: []string{"asian", "black", "caucasian", "hispanic", "indian", "middle eastern"},
		Aliases: map[string]string{
			"white":                     "caucasian",
			"european":                  "caucasian",
			"latino":                    "hispanic",
			"latina":                    "hispanic",
			"latino hispanic":           "hispanic",
			"hispanic or latino":        "hispanic",
			"latinx":                    "hispanic",
			"east asian":                "asian",
			"southeast asian":           "asian",
			"south east asian":          "asian",
			"south asian":               "indian",
			"african":                   "black",
			"african american":          "black",
			"black or african american": "black",
			"arab":                      "middle eastern",
			"middle east":               "middle eastern",
			"middle-eastern":            "middle eastern",
			"mixed":                     "mixed",
			"multiracial":               "mixed",
			"other":                     "mixed",
		},
		Overflow: "mixed",
	}

	Gender = Taxonomy{
		Name:      "gender",
		Canonical: []string{"male", "female"},
		Aliases: map[string]string{
			"masculine": "male",
			"man":       "male",
			"men":       "male",
			"feminine":  "female",
			"woman":     "female",
			"women":     "female",
		},
		Strict: true,
	}

	Age = Taxonomy{
		Name: "age",
	}
)

// NormalizeLabel lowercases a label and turns underscores into spaces.
func NormalizeLabel(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	l = strings.ReplaceAll(l, "_", " ")
	return strings.Join(strings.Fields(l), " ")
}

// Category maps a provider label onto the taxonomy. The second result is
// false when the label is not canonical and would overflow.
func (t Taxonomy) Category(label string) (string, bool) {
	l := NormalizeLabel(label)
	if a, ok := t.Aliases[l]; ok {
		l = a
	}
	if len(t.Canonical) == 0 || l == t.Overflow {
		return l, true
	}
	for _, c := range t.Canonical {
		if c == l {
			return l, true
		}
	}
	return l, false
}

// Canonicalize maps every label of d onto the taxonomy. Non-canonical
// categories fold into the overflow category, or are redistributed
// proportionally when the taxonomy is strict. Negative values count as 0.
func (t Taxonomy) Canonicalize(d core.Distribution) core.Distribution {
	out := core.Distribution{}
	if len(d) == 0 {
		return out
	}
	var stray float64
	for label, v := range d {
		if v < 0 {
			v = 0
		}
		cat, ok := t.Category(label)
		switch {
		case cat == "":
			continue
		case ok:
			out[cat] += v
		case t.Strict:
			stray += v
		default:
			out[t.Overflow] += v
		}
	}
	if t.Strict {
		return t.redistribute(out, stray)
	}
	return out
}

// redistribute spreads stray mass over the canonical categories in
// proportion to their current share, or evenly when they are all zero.
func (t Taxonomy) redistribute(out core.Distribution, stray float64) core.Distribution {
	for _, c := range t.Canonical {
		if _, ok := out[c]; !ok {
			out[c] = 0
		}
	}
	total := out.Sum()
	if total <= 0 {
		share := stray / float64(len(t.Canonical))
		if stray <= 0 {
			share = Total / float64(len(t.Canonical))
		}
		for _, c := range t.Canonical {
			out[c] = share
		}
		return out
	}
	for _, c := range t.Canonical {
		out[c] += stray * out[c] / total
	}
	return out
}

// CollapseGender returns a male/female split that sums to 100. Empty
// input gives 50/50.
func CollapseGender(d core.Distribution) core.Distribution {
	out := Gender.Canonicalize(d)
	if len(out) == 0 {
		return core.Distribution{"male": 50, "female": 50}
	}
	return scaleTo100(out)
}
