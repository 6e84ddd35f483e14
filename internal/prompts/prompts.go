// Package prompts holds the versioned prompt templates used by the engine,
// keyed by use case. Templates are embedded resources rendered with
// text/template; the engine defines the inputs, not the wording.
package prompts

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

// Version identifies the template set. Bump when wording changes in a way
// that affects downstream parsing expectations.
const Version = "v1"

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Template names, one per use case.
const (
	Standard       = "standard"
	Complex        = "complex"
	NoContext      = "no_context"
	SubQuery       = "sub_query"
	Synthesis      = "synthesis"
	SynthesisRetry = "synthesis_retry"
	Decompose      = "decompose"
	RelevanceJudge = "relevance_judge"
	SupportJudge   = "support_judge"
	Classify       = "classify"
)

// Data carries every input a template may reference. Unused fields are
// ignored by templates that do not need them.
type Data struct {
	Query      string
	Context    string
	Answer     string
	SubAnswers string
	Issues     string
	DocTypes   string
}

// Builder renders prompt templates.
type Builder struct {
	tmpl *template.Template
}

// New parses the embedded template set.
func New() (*Builder, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing prompt templates: %w", err)
	}
	return &Builder{tmpl: tmpl}, nil
}

// Render fills the named template with data.
func (b *Builder) Render(name string, data Data) (string, error) {
	var sb strings.Builder
	if err := b.tmpl.ExecuteTemplate(&sb, name+".tmpl", data); err != nil {
		return "", fmt.Errorf("rendering prompt %q: %w", name, err)
	}
	return sb.String(), nil
}
