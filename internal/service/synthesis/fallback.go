package synthesis

import (
	"encoding/json"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

// FallbackMerge is the minimal report used when synthesis output cannot
// be parsed: default metadata (confidence index 70, both sources) and the
// two normalized analyses attached verbatim.
func FallbackMerge(in Input) *core.UnifiedReport {
	r := core.NewUnifiedReport(in.VideoID)
	r.NarrativeAnalysis = rawJSON(in.Narrative)
	r.VisionAnalysis = rawJSON(in.Vision)
	return r
}

func rawJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}
