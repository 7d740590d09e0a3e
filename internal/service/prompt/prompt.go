// Package prompt holds the evaluation prompt templates and assembles the
// instruction and content blocks sent to the model.
package prompt

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
)

//go:embed templates/*.yaml
var templatesFS embed.FS

// PageSeparator joins tagged pages in the content block.
const PageSeparator = "\n\n---\n\n"

// DefaultLanguage is used when no language is configured.
const DefaultLanguage = "ja"

// Labels are the headings of the content block.
type Labels struct {
	Target               string `yaml:"target"`
	TargetType           string `yaml:"targetType"`
	Name                 string `yaml:"name"`
	Version              string `yaml:"version"`
	Provider             string `yaml:"provider"`
	Criteria             string `yaml:"criteria"`
	CriterionID          string `yaml:"criterionID"`
	CriterionName        string `yaml:"criterionName"`
	CriterionCategory    string `yaml:"criterionCategory"`
	CriterionRequirement string `yaml:"criterionRequirement"`
	Content              string `yaml:"content"`
	Page                 string `yaml:"page"`
}

// Fallback holds the fixed texts of a fallback evaluation.
type Fallback struct {
	Summary        string `yaml:"summary"`
	Risk           string `yaml:"risk"`
	Recommendation string `yaml:"recommendation"`
	Reason         string `yaml:"reason"`
}

// Template is one language's prompt configuration.
type Template struct {
	Language        string   `yaml:"language"`
	Instructions    string   `yaml:"instructions"`
	Labels          Labels   `yaml:"labels"`
	Closing         string   `yaml:"closing"`
	NotStatedReason string   `yaml:"notStatedReason"`
	Fallback        Fallback `yaml:"fallback"`
}

// Prompt is the assembled model input.
type Prompt struct {
	Instructions string
	Content      string
}

// Load returns the embedded template for lang ("" selects DefaultLanguage).
func Load(lang string) (Template, error) {
	if lang == "" {
		lang = DefaultLanguage
	}
	b, err := templatesFS.ReadFile("templates/" + strings.ToLower(lang) + ".yaml")
	if err != nil {
		return Template{}, fmt.Errorf("op=prompt.Load: unknown language %q: %w", lang, domain.ErrInvalidArgument)
	}
	return parse(b, "op=prompt.Load")
}

// LoadFile reads a template from a YAML file.
func LoadFile(path string) (Template, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Template{}, fmt.Errorf("op=prompt.LoadFile: %w", err)
	}
	return parse(b, "op=prompt.LoadFile")
}

func parse(b []byte, op string) (Template, error) {
	var t Template
	if err := yaml.Unmarshal(b, &t); err != nil {
		return Template{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := t.Validate(); err != nil {
		return Template{}, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// Validate checks that every text needed for prompts and fallbacks is set.
func (t Template) Validate() error {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("instructions", t.Instructions)
	check("labels.content", t.Labels.Content)
	check("labels.page", t.Labels.Page)
	check("labels.criteria", t.Labels.Criteria)
	check("notStatedReason", t.NotStatedReason)
	check("fallback.summary", t.Fallback.Summary)
	check("fallback.risk", t.Fallback.Risk)
	check("fallback.recommendation", t.Fallback.Recommendation)
	check("fallback.reason", t.Fallback.Reason)
	if len(missing) > 0 {
		return fmt.Errorf("%w: template missing %s", domain.ErrInvalidArgument, strings.Join(missing, ", "))
	}
	return nil
}

// Build assembles the instruction block and the content block: target
// metadata, the criteria list and every page tagged with its number.
func (t Template) Build(criteria []domain.CriteriaItem, pages []domain.DocumentPage, target domain.TargetInfo) Prompt {
	l := t.Labels
	var b strings.Builder

	fmt.Fprintf(&b, "%s:\n", l.Target)
	fmt.Fprintf(&b, "- %s: %s\n", l.TargetType, target.TargetType)
	fmt.Fprintf(&b, "- %s: %s\n", l.Name, target.Name)
	if target.Version != "" {
		fmt.Fprintf(&b, "- %s: %s\n", l.Version, target.Version)
	}
	if target.Provider != "" {
		fmt.Fprintf(&b, "- %s: %s\n", l.Provider, target.Provider)
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, l.Criteria, len(criteria))
	b.WriteString(":\n")
	for i, c := range criteria {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s\n%s: %s\n%s: %s\n%s: %s\n",
			l.CriterionID, c.ItemID,
			l.CriterionName, c.ItemName,
			l.CriterionCategory, c.Category,
			l.CriterionRequirement, c.Definition)
	}

	fmt.Fprintf(&b, "\n%s:\n", l.Content)
	tagged := make([]string, len(pages))
	for i, p := range pages {
		tagged[i] = fmt.Sprintf("[%s %d]\n%s", l.Page, p.PageNumber, p.Text)
	}
	b.WriteString(strings.Join(tagged, PageSeparator))

	if t.Closing != "" {
		b.WriteString("\n\n")
		b.WriteString(t.Closing)
	}
	return Prompt{Instructions: strings.TrimSpace(t.Instructions), Content: b.String()}
}
