// Package normalize turns the many shapes the workflow has returned over
// time into one display contract.
package normalize

import (
	"bytes"
	"encoding/json"
)

// Source names the strategy that produced a result's content.
type Source string

const (
	SourceNestedFortuneContent Source = "nested_fortune_content"
	SourceFortuneContent       Source = "fortune_content"
	SourceNamedSections        Source = "named_sections"
	SourceLegacyOutputs        Source = "legacy_outputs"
	SourcePlainText            Source = "plain_text"
	SourceRaw                  Source = "raw"
)

// Result is the normalized response body.
type Result struct {
	Success        bool      `json:"success"`
	Name           string    `json:"name"`
	BasicInfo      BasicInfo `json:"basic_info"`
	FortuneContent Content   `json:"fortune_content"`
	DebugURL       string    `json:"debug_url,omitempty"`
	Usage          any       `json:"usage,omitempty"`
	Source         Source    `json:"source"`

	// Diagnostic is set when no known shape matched and the raw payload
	// is being shown instead.
	Diagnostic bool `json:"diagnostic,omitempty"`
}

// BasicInfo echoes identity fields from the original request.
type BasicInfo struct {
	BirthDate  string `json:"birth_date"`
	BirthPlace string `json:"birth_place"`
	Gender     string `json:"gender"`
}

// Section is one titled block of analysis.
type Section struct {
	Key     string `json:"-"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Content is either plain text or an ordered list of sections.
type Content struct {
	Text     string
	Sections []Section
}

// TextContent returns plain-text content.
func TextContent(s string) Content { return Content{Text: s} }

// IsSections reports whether the content is sectioned.
func (c Content) IsSections() bool { return len(c.Sections) > 0 }

// MarshalJSON encodes text as a JSON string and sections as an object
// whose keys keep their order.
func (c Content) MarshalJSON() ([]byte, error) {
	if !c.IsSections() {
		return marshalNoEscape(c.Text)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range c.Sections {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalNoEscape(s.Key)
		if err != nil {
			return nil, err
		}
		val, err := marshalNoEscape(s)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts either a string or a section object. Section
// order follows the document.
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = Content{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		*c = Content{}
		return json.Unmarshal(data, &c.Text)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	var sections []Section
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var s Section
		if err := dec.Decode(&s); err != nil {
			return err
		}
		s.Key = key
		sections = append(sections, s)
	}
	*c = Content{Sections: sections}
	return nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
