package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/rentatutor/rentatutor/internal/model"
)

// maxMessageRunes caps a single student message inside a prompt.
const maxMessageRunes = 2000

//go:embed templates/*.txt
var templateFS embed.FS

// FS holds the built-in reply templates.
var FS fs.FS = templateFS

var (
	studentMessageRegex     = regexp.MustCompile(`(?i)</?\s*student-message\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

// Variant is a tutor persona for generated replies.
type Variant string

const (
	// VariantPatient explains slowly and checks understanding.
	VariantPatient Variant = "patient"
	// VariantStandard is the default persona.
	VariantStandard Variant = "standard"
	// VariantConcise keeps replies to the point for short sessions.
	VariantConcise Variant = "concise"
)

// Variants lists every persona in display order.
var Variants = []Variant{VariantPatient, VariantStandard, VariantConcise}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[Variant]*template.Template
)

// IsValidVariant checks if a persona name is valid.
func IsValidVariant(v string) bool {
	for _, known := range Variants {
		if Variant(v) == known {
			return true
		}
	}
	return false
}

// ReplyData holds template data for reply prompts.
type ReplyData struct {
	TutorName       string
	Subject         string
	DurationMinutes int
	Conversation    string
}

// Load parses the reply templates from fsys. Only the first call has any
// effect.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		templates = make(map[Variant]*template.Template)
		for _, v := range Variants {
			name := "templates/reply_" + string(v) + ".txt"
			content, err := fs.ReadFile(fsys, name)
			if err != nil {
				loadErr = errors.New("failed to read prompt file " + name + ": " + err.Error())
				return
			}
			tmpl, err := template.New(string(v)).Parse(string(content))
			if err != nil {
				loadErr = errors.New("failed to parse prompt template " + name + ": " + err.Error())
				return
			}
			templates[v] = tmpl
		}
	})
	return loadErr
}

// BuildReplyPrompt renders the system prompt for the tutor's next message.
func BuildReplyPrompt(variant Variant, desc model.SessionDescriptor, history []model.ChatMessage) (string, error) {
	if templates == nil {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := templates[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	data := ReplyData{
		TutorName:       desc.TutorName,
		Subject:         desc.Subject,
		DurationMinutes: desc.DurationMinutes,
		Conversation:    Conversation(history),
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Conversation renders the chat so far, one line per message, with
// student text fenced and sanitized.
func Conversation(history []model.ChatMessage) string {
	var sb strings.Builder
	for _, m := range history {
		if m.Sender == model.SenderStudent {
			sb.WriteString("[" + m.Time + "] Student: <student-message>" + sanitizeMessage(m.Text) + "</student-message>\n")
			continue
		}
		sb.WriteString("[" + m.Time + "] Tutor: " + m.Text + "\n")
	}
	return sb.String()
}

// LastStudentMessage returns the most recent student line, or "".
func LastStudentMessage(history []model.ChatMessage) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Sender == model.SenderStudent {
			return history[i].Text
		}
	}
	return ""
}

func sanitizeMessage(msg string) string {
	msg = studentMessageRegex.ReplaceAllString(msg, "")
	msg = systemInstructionsRegex.ReplaceAllString(msg, "")
	msg = strings.TrimSpace(msg)

	if msg == "" {
		return "[empty message]"
	}
	if utf8.RuneCountInString(msg) > maxMessageRunes {
		runes := []rune(msg)
		msg = string(runes[:maxMessageRunes]) + " [message truncated]"
	}
	return msg
}
