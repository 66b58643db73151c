// ABOUTME: Tests for task notification email rendering.
// ABOUTME: Verifies subjects per event kind, HTML escaping, and excerpt truncation.
package notify

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestRenderTaskEmail_Assigned(t *testing.T) {
	subject, html, text, err := RenderTaskEmail(TaskEmailData{
		Kind:          KindTaskAssigned,
		ProjectName:   "Apollo",
		TaskTitle:     "Write launch notes",
		RecipientName: "Dana",
		Message:       "Lee assigned you to \"Write launch notes\".",
		TaskURL:       "https://pm.example.com/projects/p/tasks/t",
	})
	if err != nil {
		t.Fatalf("RenderTaskEmail: %v", err)
	}
	if subject != "[Apollo] You were assigned: Write launch notes" {
		t.Errorf("subject = %q", subject)
	}
	if !strings.Contains(text, "Hi Dana") || !strings.Contains(text, "https://pm.example.com/projects/p/tasks/t") {
		t.Errorf("text body missing greeting or link:\n%s", text)
	}
	if !strings.Contains(html, `href="https://pm.example.com/projects/p/tasks/t"`) {
		t.Errorf("html body missing link:\n%s", html)
	}
}

func TestRenderTaskEmail_CommentEscapesHTML(t *testing.T) {
	subject, html, _, err := RenderTaskEmail(TaskEmailData{
		Kind:          KindTaskCommented,
		ProjectName:   "Apollo",
		TaskTitle:     "Fix login",
		RecipientName: "Sam",
		Message:       "Ana commented.",
		Excerpt:       "<script>alert(1)</script>",
	})
	if err != nil {
		t.Fatalf("RenderTaskEmail: %v", err)
	}
	if !strings.HasPrefix(subject, "[Apollo] New comment on") {
		t.Errorf("subject = %q", subject)
	}
	if strings.Contains(html, "<script>") {
		t.Error("html body contains unescaped script tag")
	}
}

func TestRenderTaskEmail_SubjectInjectionStripped(t *testing.T) {
	subject, _, _, err := RenderTaskEmail(TaskEmailData{
		Kind:        KindTaskAssigned,
		ProjectName: "P",
		TaskTitle:   "T\r\nBcc: attacker@evil.example",
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.ContainsAny(subject, "\r\n") {
		t.Errorf("subject contains CR/LF: %q", subject)
	}
}

func TestExcerpt(t *testing.T) {
	short := "fine"
	if excerpt(short) != short {
		t.Errorf("short excerpt changed")
	}
	long := strings.Repeat("é", excerptLimit+50)
	got := excerpt(long)
	if n := utf8.RuneCountInString(got); n != excerptLimit {
		t.Errorf("excerpt rune count = %d, want %d", n, excerptLimit)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated excerpt should end with ...")
	}
}
