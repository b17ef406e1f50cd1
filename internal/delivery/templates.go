// Package delivery sends rendered notifications to users over chat webhooks
// and a transactional email HTTP API.
package delivery

import (
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/stacklok/npm-sync/internal/notify"
	"github.com/stacklok/npm-sync/internal/releases"
)

// ErrUnknownTemplate is returned when a job names a template that does not exist
var ErrUnknownTemplate = errors.New("unknown notification template")

// Message is a rendered notification
type Message struct {
	Subject string
	Text    string
}

type messageTemplate struct {
	subject *template.Template
	text    *template.Template
}

func mustTemplate(name, subject, text string) messageTemplate {
	return messageTemplate{
		subject: template.Must(template.New(name + ".subject").Option("missingkey=zero").Parse(subject)),
		text:    template.Must(template.New(name + ".text").Option("missingkey=zero").Parse(text)),
	}
}

var templates = map[string]messageTemplate{
	notify.TemplatePackageUpdate: mustTemplate(notify.TemplatePackageUpdate,
		`{{.packageName}} {{.newVersion}} released`,
		`{{.packageName}} was updated from {{.previousVersion}} to {{.newVersion}} ({{.diffKind}}).
{{- if .vulnerabilitiesFixed}}
This release fixes {{.vulnerabilitiesFixed}} known vulnerabilities.
{{- end}}
{{- if .changelog}}

{{.changelog}}
{{- end}}
{{- if .appURL}}

{{.appURL}}/packages/{{.packageName}}
{{- end}}`),

	notify.TemplateSecurityUpdate: mustTemplate(notify.TemplateSecurityUpdate,
		`[{{.severity}}] Security update for {{.packageName}} {{.newVersion}}`,
		`{{.packageName}} {{.newVersion}} fixes {{.vulnerabilitiesFixed}} known vulnerabilities present in {{.previousVersion}}.
Upgrading is strongly recommended.
{{- if .changelog}}

{{.changelog}}
{{- end}}
{{- if .appURL}}

{{.appURL}}/packages/{{.packageName}}
{{- end}}`),

	releases.TemplateReleaseLaunched: mustTemplate(releases.TemplateReleaseLaunched,
		`{{.releaseTitle}} is out`,
		`{{.packageName}} {{.version}} has been published, launching {{.releaseTitle}} (targeting {{.targetVersion}}).
{{- if .appURL}}

{{.appURL}}/packages/{{.packageName}}
{{- end}}`),
}

// Render fills the named template with props. appURL, when set, is exposed
// to the template as a link back to the application.
func Render(name string, props map[string]string, appURL string) (Message, error) {
	tmpl, ok := templates[name]
	if !ok {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}

	data := make(map[string]string, len(props)+1)
	for k, v := range props {
		data[k] = v
	}
	data["appURL"] = strings.TrimSuffix(appURL, "/")

	var subject, text strings.Builder
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("failed to render %s subject: %w", name, err)
	}
	if err := tmpl.text.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("failed to render %s body: %w", name, err)
	}
	return Message{Subject: subject.String(), Text: text.String()}, nil
}
