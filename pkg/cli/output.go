package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is plain text output (default).
	FormatText OutputFormat = "text"
	// FormatJSON is JSON output.
	FormatJSON OutputFormat = "json"
)

// Formatter formats command output.
type Formatter interface {
	Format(data any) ([]byte, error)
	FormatTo(w io.Writer, data any) error
}

// Texter is implemented by results with a human-readable rendering.
type Texter interface {
	Text() string
}

// TextFormatter formats output as plain text.
type TextFormatter struct{}

// Format converts data to text format.
func (f *TextFormatter) Format(data any) ([]byte, error) {
	if t, ok := data.(Texter); ok {
		s := t.Text()
		if !strings.HasSuffix(s, "\n") {
			s += "\n"
		}
		return []byte(s), nil
	}
	return []byte(fmt.Sprintf("%v\n", data)), nil
}

// FormatTo writes data to writer in text format.
func (f *TextFormatter) FormatTo(w io.Writer, data any) error {
	out, err := f.Format(data)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// JSONFormatter formats output as JSON. HTML characters are not escaped,
// since workflow output routinely contains markup and CJK text.
type JSONFormatter struct {
	Indent bool
}

// Format converts data to JSON format.
func (f *JSONFormatter) Format(data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.FormatTo(&buf, data); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// FormatTo writes data to writer in JSON format.
func (f *JSONFormatter) FormatTo(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

// NewFormatter creates a new formatter for the specified format.
func NewFormatter(format OutputFormat) (Formatter, error) {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}, nil
	case FormatText, "":
		return &TextFormatter{}, nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}
