package render

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/fsutil"
)

// frontmatter is the YAML header of an exported report. Field order is the
// output order.
type frontmatter struct {
	JobID        string   `yaml:"job_id"`
	Name         string   `yaml:"name,omitempty"`
	Source       string   `yaml:"source,omitempty"`
	Status       string   `yaml:"status"`
	OverallScore *float64 `yaml:"overall_score,omitempty"`
	HasErrors    bool     `yaml:"has_errors"`
	Defaulted    []string `yaml:"defaulted_metrics,omitempty"`
	CreatedAt    string   `yaml:"created_at,omitempty"`
	UpdatedAt    string   `yaml:"updated_at,omitempty"`
}

// Document renders a job as Markdown with a YAML frontmatter block.
func Document(view core.ProgressView) ([]byte, error) {
	fm := frontmatter{
		JobID:     string(view.JobID),
		Name:      view.Name,
		Source:    view.SourceRef,
		Status:    string(view.Status),
		HasErrors: view.Error != nil,
		CreatedAt: timestamp(view.CreatedAt),
		UpdatedAt: timestamp(view.UpdatedAt),
	}
	if r := view.Result; r != nil {
		if r.Summary != nil {
			score := float64(r.Summary.OverallPerformanceScore)
			fm.OverallScore = &score
		}
		fm.HasErrors = fm.HasErrors || r.Metadata.HasErrors
		fm.Defaulted = r.Metadata.Defaulted
	}

	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("encoding frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(header)
	buf.WriteString("---\n\n")
	buf.WriteString(Markdown(view))
	return buf.Bytes(), nil
}

// WriteFile exports a job to path atomically.
func WriteFile(path string, view core.ProgressView) error {
	data, err := Document(view)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, data, 0o644)
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
