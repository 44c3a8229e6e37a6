package core

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strings"
)

// Confidence is a three-level rating.
type Confidence string

const (
	ConfidenceLow    Confidence = "Low"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceHigh   Confidence = "High"
)

// ParseConfidence maps loose labels ("high", "HIGH", "Medium confidence")
// onto a Confidence. The second result is false when nothing matched.
func ParseConfidence(s string) (Confidence, bool) {
	l := strings.ToLower(strings.TrimSpace(s))
	switch {
	case l == "":
		return "", false
	case strings.HasPrefix(l, "high"), strings.HasPrefix(l, "very high"):
		return ConfidenceHigh, true
	case strings.HasPrefix(l, "med"), strings.HasPrefix(l, "moderate"):
		return ConfidenceMedium, true
	case strings.HasPrefix(l, "low"), strings.HasPrefix(l, "very low"):
		return ConfidenceLow, true
	}
	return "", false
}

// Valid reports whether c is one of the three levels.
func (c Confidence) Valid() bool {
	return c == ConfidenceLow || c == ConfidenceMedium || c == ConfidenceHigh
}

// UnmarshalJSON accepts any casing and unknown labels (decoded as empty).
func (c *Confidence) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*c = ""
		return nil
	}
	parsed, _ := ParseConfidence(s)
	*c = parsed
	return nil
}

// Score is a 0-100 value that decodes from numbers, numeric strings,
// percentages and qualitative descriptors.
type Score float64

// UnmarshalJSON implements tolerant decoding. Anything unusable decodes to
// zero without failing the surrounding document.
func (s *Score) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*s = Score(ClampScore(f))
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		if v, ok := ParseScore(str); ok {
			*s = Score(v)
			return nil
		}
	}
	*s = 0
	return nil
}

// ClampScore bounds v to [0,100]. NaN becomes 0.
func ClampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// NormalizedMetric is one canonical metric produced by normalization.
type NormalizedMetric struct {
	Name       string             `json:"name,omitempty"`
	Score      Score              `json:"score"`
	Confidence Confidence         `json:"confidence"`
	Insights   string             `json:"insights,omitempty"`
	Breakdown  map[string]float64 `json:"breakdown"`
	// Defaulted marks metrics substituted with neutral defaults.
	Defaulted bool `json:"-"`
}

// UnmarshalJSON tolerates loosely typed generated output: a bare number is
// taken as the score, breakdown values may be strings, and insights may be
// a list.
func (m *NormalizedMetric) UnmarshalJSON(data []byte) error {
	if t := bytes.TrimSpace(data); len(t) > 0 && t[0] != '{' {
		var bare Score
		if err := json.Unmarshal(t, &bare); err != nil {
			return err
		}
		*m = NormalizedMetric{Score: bare, Breakdown: map[string]float64{}}
		return nil
	}
	var raw struct {
		Name       string           `json:"name"`
		Score      Score            `json:"score"`
		Confidence Confidence       `json:"confidence"`
		Insights   json.RawMessage  `json:"insights"`
		Breakdown  map[string]Score `json:"breakdown"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = NormalizedMetric{
		Name:       raw.Name,
		Score:      raw.Score,
		Confidence: raw.Confidence,
		Insights:   looseText(raw.Insights),
		Breakdown:  make(map[string]float64, len(raw.Breakdown)),
	}
	for k, v := range raw.Breakdown {
		m.Breakdown[k] = float64(v)
	}
	return nil
}

func looseText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	return ""
}

// NeutralMetric returns the default substitute for a missing metric.
func NeutralMetric(name string) NormalizedMetric {
	return NormalizedMetric{
		Name:       name,
		Score:      NeutralScore,
		Confidence: ConfidenceMedium,
		Insights:   "No " + name + " data available",
		Breakdown:  map[string]float64{},
		Defaulted:  true,
	}
}

// Clamp enforces the [0,100] range on score and breakdown values.
func (m NormalizedMetric) Clamp() NormalizedMetric {
	m.Score = Score(ClampScore(float64(m.Score)))
	if !m.Confidence.Valid() {
		m.Confidence = ConfidenceMedium
	}
	if m.Breakdown == nil {
		m.Breakdown = map[string]float64{}
		return m
	}
	b := make(map[string]float64, len(m.Breakdown))
	for k, v := range m.Breakdown {
		b[k] = ClampScore(v)
	}
	m.Breakdown = b
	return m
}

// Distribution maps categories to percentages.
type Distribution map[string]float64

// Sum returns the total over all entries.
func (d Distribution) Sum() float64 {
	var total float64
	for _, v := range d {
		total += v
	}
	return total
}

// Clone returns a copy.
func (d Distribution) Clone() Distribution {
	c := make(Distribution, len(d))
	for k, v := range d {
		c[k] = v
	}
	return c
}

// Keys returns the categories in sorted order.
func (d Distribution) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ByValue returns the categories by descending value, ties in key order.
func (d Distribution) ByValue() []string {
	keys := d.Keys()
	sort.SliceStable(keys, func(i, j int) bool { return d[keys[i]] > d[keys[j]] })
	return keys
}

// Largest returns the category with the highest value. Ties resolve to the
// lexically smallest key so the choice is stable.
func (d Distribution) Largest() string {
	best := ""
	bestVal := math.Inf(-1)
	for _, k := range d.Keys() {
		if d[k] > bestVal {
			best, bestVal = k, d[k]
		}
	}
	return best
}

// UnmarshalJSON accepts values written as numbers or strings ("40%").
func (d *Distribution) UnmarshalJSON(data []byte) error {
	var raw map[string]Score
	if err := json.Unmarshal(data, &raw); err != nil {
		*d = Distribution{}
		return nil
	}
	out := make(Distribution, len(raw))
	for k, v := range raw {
		out[strings.ToLower(strings.TrimSpace(k))] = float64(v)
	}
	*d = out
	return nil
}

// ContradictionRecord documents a material disagreement between sources.
type ContradictionRecord struct {
	Metric              string     `json:"metric"`
	NarrativeAssessment string     `json:"gemini_assessment"`
	VisionAssessment    string     `json:"clarifai_assessment"`
	Reconciliation      string     `json:"reconciliation"`
	Confidence          Confidence `json:"confidence_in_reconciliation"`
}

// Count is a non-negative integer that also decodes from strings and floats.
type Count int

// UnmarshalJSON implements tolerant decoding.
func (c *Count) UnmarshalJSON(data []byte) error {
	var s Score
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil && f > 100 {
		*c = Count(math.Round(f))
		return nil
	}
	*c = Count(math.Round(float64(s)))
	return nil
}
