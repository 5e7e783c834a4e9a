package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/pkg/errors"
)

// Template is a string-based enum naming email templates.
type Template string

const (
	// TemplateOTP corresponds to templates/emails/otp.html
	TemplateOTP Template = "otp"
)

//go:embed templates/emails/*.html
var templateFS embed.FS

// templates are parsed once; sprig adds helpers such as default, trim and date.
var templates = template.Must(
	template.New("emails").
		Funcs(sprig.FuncMap()).
		ParseFS(templateFS, "templates/emails/*.html"),
)

// Render executes a template with data.
func Render(name Template, data map[string]string) (string, error) {
	tmpl := templates.Lookup(fmt.Sprintf("%s.html", name))
	if tmpl == nil {
		return "", errors.Errorf("unknown email template %s", name)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", errors.Wrapf(err, "failed to execute email template %s", name)
	}
	return body.String(), nil
}
