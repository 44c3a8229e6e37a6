package service

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

//go:embed prompts/*.md.tmpl
var promptsFS embed.FS

const promptExt = ".md.tmpl"

// Prompt names, one per embedded template.
const (
	PromptNarrative = "narrative"
	PromptUnify     = "unify"
	PromptValidate  = "validate"
)

// PromptRenderer renders the generation prompts. It is immutable after
// construction and safe for concurrent use.
type PromptRenderer struct {
	set *template.Template
}

// NewPromptRenderer parses the embedded prompts and checks that every prompt
// the pipeline sends is present.
func NewPromptRenderer() (*PromptRenderer, error) {
	set, err := template.New("prompts").ParseFS(promptsFS, "prompts/*"+promptExt)
	if err != nil {
		return nil, fmt.Errorf("parsing prompts: %w", err)
	}
	r := &PromptRenderer{set: set}
	for _, name := range []string{PromptNarrative, PromptUnify, PromptValidate} {
		if !r.HasTemplate(name) {
			return nil, fmt.Errorf("prompt %q is not embedded", name)
		}
	}
	return r, nil
}

// NarrativeParams fills the narrative provider prompt.
type NarrativeParams struct {
	VideoRef string
	IsURL    bool
}

// RenderNarrative renders the prompt sent to the narrative provider.
func (r *PromptRenderer) RenderNarrative(params NarrativeParams) (string, error) {
	return r.Render(PromptNarrative, params)
}

// UnifyParams fills the synthesis prompt. The JSON fields are already
// serialized.
type UnifyParams struct {
	VideoID        string
	NarrativeJSON  string
	VisionJSON     string
	ReconciledJSON string
	Contradictions []string
}

// RenderUnify renders the synthesis prompt.
func (r *PromptRenderer) RenderUnify(params UnifyParams) (string, error) {
	return r.Render(PromptUnify, params)
}

// ValidateParams fills the validation prompt.
type ValidateParams struct {
	ReportJSON string
}

// RenderValidate renders the validation prompt.
func (r *PromptRenderer) RenderValidate(params ValidateParams) (string, error) {
	return r.Render(PromptValidate, params)
}

// Render executes the named prompt.
func (r *PromptRenderer) Render(name string, data any) (string, error) {
	tmpl := r.set.Lookup(name + promptExt)
	if tmpl == nil {
		return "", fmt.Errorf("prompt %q not found", name)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering prompt %s: %w", name, err)
	}
	return b.String(), nil
}

// ListTemplates returns the prompt names in sorted order.
func (r *PromptRenderer) ListTemplates() []string {
	var names []string
	for _, t := range r.set.Templates() {
		if name, ok := strings.CutSuffix(t.Name(), promptExt); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// HasTemplate reports whether a prompt exists.
func (r *PromptRenderer) HasTemplate(name string) bool {
	return r.set.Lookup(name+promptExt) != nil
}
