// ABOUTME: Template rendering for task notification emails.
// ABOUTME: Templates parsed once at init from embedded FS; rendered per recipient.
package notify

import (
	"bytes"
	"embed"
	"fmt"
	htmltpl "html/template"
	"strings"
	texttpl "text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	taskHTML *htmltpl.Template
	taskText *texttpl.Template
)

func init() {
	taskHTML = htmltpl.Must(htmltpl.New("").ParseFS(templateFS, "templates/task_event.html.tmpl"))
	taskText = texttpl.Must(texttpl.New("").ParseFS(templateFS, "templates/task_event.txt.tmpl"))
}

// RenderTaskEmail renders a task event email. Returns subject, HTML body, and plaintext body.
func RenderTaskEmail(data TaskEmailData) (string, string, string, error) {
	var subjectBuf bytes.Buffer
	if err := taskText.ExecuteTemplate(&subjectBuf, "subject", data); err != nil {
		return "", "", "", fmt.Errorf("render subject: %w", err)
	}
	subject := sanitizeSubject(subjectBuf.String())

	var htmlBuf bytes.Buffer
	if err := taskHTML.ExecuteTemplate(&htmlBuf, "body", data); err != nil {
		return "", "", "", fmt.Errorf("render html: %w", err)
	}

	var textBuf bytes.Buffer
	if err := taskText.ExecuteTemplate(&textBuf, "body", data); err != nil {
		return "", "", "", fmt.Errorf("render text: %w", err)
	}

	return subject, htmlBuf.String(), textBuf.String(), nil
}

// sanitizeSubject strips CR/LF to prevent email header injection.
func sanitizeSubject(s string) string {
	s = strings.TrimSpace(s)
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}
