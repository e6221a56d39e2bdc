package prompts

import (
	"maps"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/pkg/llms"
)

// ErrMissingInputVariable is returned when a declared input variable has no value
var ErrMissingInputVariable = errors.New("missing input variable")

// PromptValue is the output of a prompt template
type PromptValue interface {
	String() string
	Messages() []llms.Message
}

// PromptTemplate is a template of a single prompt
type PromptTemplate struct {
	Template         string
	TemplateFormat   TemplateFormat
	InputVariables   []string
	PartialVariables map[string]any
}

// NewPromptTemplate returns go-template prompt with the input variables
func NewPromptTemplate(template string, inputVars []string) PromptTemplate {
	return PromptTemplate{
		Template:       template,
		TemplateFormat: TemplateFormatGoTemplate,
		InputVariables: inputVars,
	}
}

// Format renders the template.
// All input variables must be present in the values.
func (p PromptTemplate) Format(values map[string]any) (string, error) {
	all := make(map[string]any, len(values)+len(p.PartialVariables))
	maps.Copy(all, p.PartialVariables)
	maps.Copy(all, values)

	if missing := missingVariables(p.InputVariables, all); len(missing) > 0 {
		return "", errors.Wrapf(ErrMissingInputVariable, "%s", strings.Join(missing, ", "))
	}
	return RenderTemplate(p.Template, p.TemplateFormat, all)
}

// FormatPrompt renders the template as a prompt value
func (p PromptTemplate) FormatPrompt(values map[string]any) (StringPromptValue, error) {
	s, err := p.Format(values)
	if err != nil {
		return "", err
	}
	return StringPromptValue(s), nil
}

// GetInputVariables returns the input variables
func (p PromptTemplate) GetInputVariables() []string {
	return p.InputVariables
}

// StringPromptValue is a prompt value of a string
type StringPromptValue string

var _ PromptValue = StringPromptValue("")

func (v StringPromptValue) String() string {
	return string(v)
}

// Messages returns the prompt as a single human message
func (v StringPromptValue) Messages() []llms.Message {
	return []llms.Message{
		llms.MessageFromTextParts(llms.RoleHuman, string(v)),
	}
}
