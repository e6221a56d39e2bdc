package prompts

import (
	"bytes"
	"slices"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/cockroachdb/errors"
	"github.com/nikolalohinski/gonja"
)

// ErrInvalidTemplateFormat is returned for unsupported template format
var ErrInvalidTemplateFormat = errors.New("invalid template format")

// TemplateFormat is the format of the template
type TemplateFormat string

const (
	// TemplateFormatGoTemplate is text/template with sprig functions
	TemplateFormatGoTemplate TemplateFormat = "go-template"
	// TemplateFormatJinja2 is jinja2 template
	TemplateFormatJinja2 TemplateFormat = "jinja2"
)

// RenderTemplate renders the template with the values
func RenderTemplate(tmpl string, format TemplateFormat, values map[string]any) (string, error) {
	switch format {
	case TemplateFormatGoTemplate, "":
		return renderGoTemplate(tmpl, values)
	case TemplateFormatJinja2:
		return renderJinja2(tmpl, values)
	default:
		return "", errors.Wrapf(ErrInvalidTemplateFormat, "%s", format)
	}
}

// CheckValidTemplate parses the template with dummy values
func CheckValidTemplate(tmpl string, format TemplateFormat, inputVariables []string) error {
	values := make(map[string]any, len(inputVariables))
	for _, v := range inputVariables {
		values[v] = "foo"
	}
	_, err := RenderTemplate(tmpl, format, values)
	return err
}

func renderGoTemplate(tmpl string, values map[string]any) (string, error) {
	t, err := template.New("prompt").
		Option("missingkey=zero").
		Funcs(sprig.TxtFuncMap()).
		Parse(tmpl)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse template")
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, values); err != nil {
		return "", errors.Wrap(err, "failed to render template")
	}
	return buf.String(), nil
}

func renderJinja2(tmpl string, values map[string]any) (string, error) {
	t, err := gonja.FromString(tmpl)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse template")
	}
	out, err := t.Execute(values)
	if err != nil {
		return "", errors.Wrap(err, "failed to render template")
	}
	return out, nil
}

func missingVariables(inputVariables []string, values map[string]any) []string {
	var missing []string
	for _, v := range inputVariables {
		if _, ok := values[v]; !ok && !slices.Contains(missing, v) {
			missing = append(missing, v)
		}
	}
	return missing
}
