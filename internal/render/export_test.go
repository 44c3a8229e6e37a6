package render

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/reelsight/internal/testutil"
)

func splitFrontmatter(t *testing.T, doc []byte) (map[string]any, string) {
	t.Helper()
	if !bytes.HasPrefix(doc, []byte("---\n")) {
		t.Fatalf("document does not start with frontmatter:\n%s", doc)
	}
	rest := doc[4:]
	end := bytes.Index(rest, []byte("\n---\n"))
	if end < 0 {
		t.Fatalf("unterminated frontmatter:\n%s", doc)
	}
	var fm map[string]any
	if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
		t.Fatalf("frontmatter is not yaml: %v", err)
	}
	return fm, string(rest[end+5:])
}

func TestDocument_Completed(t *testing.T) {
	view := testutil.CompletedView()
	doc, err := Document(view)
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	fm, body := splitFrontmatter(t, doc)

	if fm["job_id"] != string(view.JobID) || fm["status"] != "completed" {
		t.Errorf("frontmatter = %v", fm)
	}
	if fm["overall_score"] != 72 {
		t.Errorf("overall_score = %v, want 72", fm["overall_score"])
	}
	if fm["has_errors"] != false {
		t.Errorf("has_errors = %v, want false", fm["has_errors"])
	}
	if fm["updated_at"] != "2024-05-01T10:00:00Z" {
		t.Errorf("updated_at = %v", fm["updated_at"])
	}
	if !strings.HasPrefix(strings.TrimLeft(body, "\n"), "# clip\n") {
		t.Errorf("body should be the markdown report:\n%s", body)
	}
}

func TestDocument_FailedOmitsScore(t *testing.T) {
	doc, err := Document(testutil.FailedView())
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	fm, _ := splitFrontmatter(t, doc)
	if _, ok := fm["overall_score"]; ok {
		t.Error("failed job has no score")
	}
	if _, ok := fm["name"]; ok {
		t.Error("empty name should be omitted")
	}
	if fm["has_errors"] != true {
		t.Errorf("has_errors = %v, want true", fm["has_errors"])
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.md")
	view := testutil.CompletedView()

	if err := WriteFile(path, view); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := Document(view)
	if !bytes.Equal(got, want) {
		t.Error("written file differs from Document()")
	}
}
