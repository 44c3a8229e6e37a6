package normalize

import (
	"strings"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

// scored is a value that may be absent.
type scored struct {
	value float64
	ok    bool
}

func present(v float64) scored {
	return scored{value: core.ClampScore(v), ok: true}
}

// scoreField parses numbers, percentages and descriptors.
func scoreField(s string) scored {
	v, ok := core.ParseScore(s)
	return scored{value: v, ok: ok}
}

// qualitative scores prose through the descriptor table only.
func qualitative(s string) scored {
	v, ok := core.QualitativeScore(s)
	return scored{value: v, ok: ok}
}

func firstOf(values ...scored) scored {
	for _, v := range values {
		if v.ok {
			return v
		}
	}
	return scored{}
}

// mean averages the present values.
func mean(values ...scored) scored {
	var sum float64
	n := 0
	for _, v := range values {
		if v.ok {
			sum += v.value
			n++
		}
	}
	if n == 0 {
		return scored{}
	}
	return present(sum / float64(n))
}

func isNumeric(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

// metricFrom builds a metric. An absent score yields the neutral default,
// still carrying any breakdown values that were present. Absent breakdown
// entries take the metric score.
func metricFrom(name string, score scored, insights string, breakdown map[string]scored) core.NormalizedMetric {
	m := core.NeutralMetric(name)
	fill := float64(core.NeutralScore)
	if score.ok {
		m.Score = core.Score(score.value)
		m.Defaulted = false
		fill = score.value
		if insights != "" {
			m.Insights = insights
		}
	}
	m.Breakdown = make(map[string]float64, len(breakdown))
	for k, v := range breakdown {
		if v.ok {
			m.Breakdown[k] = v.value
		} else {
			m.Breakdown[k] = fill
		}
	}
	return m.Clamp()
}
