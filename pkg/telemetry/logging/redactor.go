package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redactor masks credentials in log values.
type Redactor struct {
	patterns []redactPattern
}

type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// sensitiveKeys are attribute names whose values are always masked.
var sensitiveKeys = map[string]bool{
	"authorization": true,
	"token":         true,
	"api_key":       true,
	"secret":        true,
	"password":      true,
}

// NewRedactor returns a redactor for bearer headers, workflow personal
// access tokens (pat_...) and sk- style API keys.
func NewRedactor() *Redactor {
	return &Redactor{patterns: []redactPattern{
		{regex: regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`), replacement: "Bearer ***"},
		{regex: regexp.MustCompile(`\bpat_[a-zA-Z0-9]+`), replacement: "pat_***"},
		{regex: regexp.MustCompile(`\bsk-[a-zA-Z0-9]+`), replacement: "sk-***"},
	}}
}

// RedactString masks every credential found in value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr hook.
func (r *Redactor) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, "***")
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, r.RedactString(a.Value.String()))
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
	}
	return a
}
