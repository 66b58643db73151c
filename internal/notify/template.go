// ABOUTME: Template data for task notification emails.
// ABOUTME: Built per recipient from an Event and the recipient's profile.
package notify

import "unicode/utf8"

// excerptLimit caps quoted comment text in emails, in runes.
const excerptLimit = 280

// TaskEmailData is the context passed to the task event templates.
type TaskEmailData struct {
	Kind          string
	ProjectName   string
	TaskTitle     string
	RecipientName string
	Message       string
	Excerpt       string
	TaskURL       string
}

// excerpt shortens s to at most excerptLimit runes.
func excerpt(s string) string {
	if utf8.RuneCountInString(s) <= excerptLimit {
		return s
	}
	r := []rune(s)
	return string(r[:excerptLimit-3]) + "..."
}
