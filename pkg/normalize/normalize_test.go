package normalize

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ailife-hq/fortune-proxy/pkg/birth"
	"ailife-hq/fortune-proxy/pkg/workflow"
)

var testRequest = birth.Request{
	Name:       "A",
	Gender:     "male",
	BirthPlace: "X",
	Year:       1990,
	Month:      5,
	Day:        15,
	Hour:       14,
	Minute:     30,
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestNormalize_KnownShapes(t *testing.T) {
	report := map[string]any{"life": "命盘", "geju": "格局", "unrelated": "skip"}

	tests := []struct {
		name       string
		result     map[string]any
		wantSource Source
		wantText   string
		wantKeys   []string
	}{
		{
			name: "fortune_content as JSON string",
			result: map[string]any{"code": 0, "data": mustJSON(t, map[string]any{
				"fortune_content": mustJSON(t, report),
			})},
			wantSource: SourceNestedFortuneContent,
			wantKeys:   []string{"life", "geju"},
		},
		{
			name: "fortune_content under outputs",
			result: map[string]any{"code": 0, "data": map[string]any{
				"outputs": map[string]any{"fortune_content": "plain report"},
			}},
			wantSource: SourceNestedFortuneContent,
			wantText:   "plain report",
		},
		{
			name:       "fortune_content as invalid JSON string",
			result:     map[string]any{"data": map[string]any{"fortune_content": "{not json"}},
			wantSource: SourceNestedFortuneContent,
			wantText:   "{not json",
		},
		{
			name:       "top level fortune_content",
			result:     map[string]any{"code": 0, "fortune_content": "top level"},
			wantSource: SourceFortuneContent,
			wantText:   "top level",
		},
		{
			name: "direct named sections",
			result: map[string]any{"code": 0, "data": mustJSON(t, map[string]any{
				"dayun": "大运", "output": "总结", "now_dayun1": "  ",
			})},
			wantSource: SourceNamedSections,
			wantKeys:   []string{"dayun", "output"},
		},
		{
			name:       "single section collapses",
			result:     map[string]any{"code": 0, "data": `{"output":"hello"}`},
			wantSource: SourceNamedSections,
			wantText:   "hello",
		},
		{
			name: "legacy outputs container",
			result: map[string]any{"code": 0, "data": map[string]any{
				"outputs": map[string]any{"geju": "g", "five_dayun": "f"},
			}},
			wantSource: SourceLegacyOutputs,
			wantKeys:   []string{"five_dayun", "geju"},
		},
		{
			name:       "plain string data",
			result:     map[string]any{"code": 0, "data": "just text"},
			wantSource: SourcePlainText,
			wantText:   "just text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.result, testRequest)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if got.Source != tt.wantSource {
				t.Errorf("Source = %s, want %s", got.Source, tt.wantSource)
			}
			if got.Diagnostic {
				t.Error("known shapes must not be diagnostic")
			}

			if tt.wantKeys == nil {
				if got.FortuneContent.IsSections() || got.FortuneContent.Text != tt.wantText {
					t.Errorf("content = %+v, want text %q", got.FortuneContent, tt.wantText)
				}
				return
			}
			var keys []string
			for _, s := range got.FortuneContent.Sections {
				if s.Title == "" || s.Content == "" {
					t.Errorf("section %q missing title or content", s.Key)
				}
				keys = append(keys, s.Key)
			}
			if diff := cmp.Diff(tt.wantKeys, keys); diff != "" {
				t.Errorf("section keys mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalize_UnknownShapeFallsBackToRaw(t *testing.T) {
	result := map[string]any{"code": 0, "data": map[string]any{"mystery": 1}}

	got, err := Normalize(result, testRequest)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got.Source != SourceRaw || !got.Diagnostic {
		t.Errorf("expected raw diagnostic result, got source %s diagnostic %v", got.Source, got.Diagnostic)
	}
	if !strings.Contains(got.FortuneContent.Text, `"mystery": 1`) {
		t.Errorf("raw payload not surfaced: %q", got.FortuneContent.Text)
	}
}

func TestNormalize_BasicInfoFromRequest(t *testing.T) {
	result := map[string]any{
		"code": 0,
		"data": map[string]any{
			"output":     "hello",
			"name":       "someone else",
			"basic_info": map[string]any{"gender": "female"},
		},
		"debug_url": "https://debug.example/3",
		"usage":     map[string]any{"token_count": 3},
	}

	got, err := Normalize(result, testRequest)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	want := BasicInfo{BirthDate: "1990-05-15 14:30:00", BirthPlace: "X", Gender: "male"}
	if diff := cmp.Diff(want, got.BasicInfo); diff != "" {
		t.Errorf("basic_info mismatch (-want +got):\n%s", diff)
	}
	if got.Name != "A" {
		t.Errorf("Name = %q, want A", got.Name)
	}
	if got.DebugURL != "https://debug.example/3" || got.Usage == nil {
		t.Errorf("debug_url/usage not carried: %+v", got)
	}
}

func TestNormalize_BusinessError(t *testing.T) {
	tests := []struct {
		name string
		code any
		want int64
	}{
		{name: "int", code: 4000, want: 4000},
		{name: "float", code: float64(720701002), want: 720701002},
		{name: "json number", code: json.Number("13"), want: 13},
		{name: "string", code: "42", want: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := map[string]any{"code": tt.code, "msg": "bad param", "debug_url": "https://debug.example/4"}

			got, err := Normalize(result, testRequest)
			if got != nil {
				t.Error("expected no result alongside an error")
			}

			var berr *workflow.BusinessError
			if !errors.As(err, &berr) {
				t.Fatalf("expected *workflow.BusinessError, got %v", err)
			}
			want := &workflow.BusinessError{Code: tt.want, Message: "bad param", DebugURL: "https://debug.example/4"}
			if diff := cmp.Diff(want, berr); diff != "" {
				t.Errorf("error mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestContent_JSON(t *testing.T) {
	sections := Content{Sections: []Section{
		{Key: "output", Title: "📝 综合分析", Content: "b"},
		{Key: "life", Title: "🌟 命理基础", Content: "a"},
	}}

	b, err := json.Marshal(sections)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"output":{"title":"📝 综合分析","content":"b"},"life":{"title":"🌟 命理基础","content":"a"}}`
	if string(b) != want {
		t.Errorf("Marshal() = %s\nwant %s", b, want)
	}

	var back Content
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if diff := cmp.Diff(sections, back); diff != "" {
		t.Errorf("section order lost (-want +got):\n%s", diff)
	}

	text, _ := json.Marshal(TextContent("hello"))
	if string(text) != `"hello"` {
		t.Errorf("text content = %s", text)
	}
}
