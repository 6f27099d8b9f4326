package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"ailife-hq/fortune-proxy/pkg/birth"
	"ailife-hq/fortune-proxy/pkg/workflow"
)

// sectionKeys lists the workflow's section outputs in display order.
var sectionKeys = []string{
	"life", "wuxinggeju", "shishen", "geju", "old_dayun",
	"now_dayun", "dayun", "five_dayun", "now_dayun1", "output",
}

// legacyKeys is the subset older workflows put under data.outputs.
var legacyKeys = []string{"dayun", "five_dayun", "geju", "output"}

// sectionTitles are used for sections found directly on data and in the
// legacy outputs container.
var sectionTitles = map[string]string{
	"life":       "🌟 命理基础",
	"wuxinggeju": "⚡ 五行格局",
	"shishen":    "🎭 十神分析",
	"geju":       "🎯 格局特点",
	"old_dayun":  "📜 过往大运",
	"now_dayun":  "🔄 当前大运",
	"dayun":      "📅 大运流年",
	"five_dayun": "📊 近五年流年",
	"now_dayun1": "🎯 现运详析",
	"output":     "📝 综合分析",
}

// reportTitles are the longer titles used inside a fortune_content
// object, which may also carry output1.
var reportTitles = map[string]string{
	"life":       "🌟 命盘基本结构",
	"wuxinggeju": "⚡ 五行格局强弱与阴阳平衡",
	"shishen":    "🎭 十神旺意与喜用神分析",
	"geju":       "🎯 格局特点与核心命题",
	"old_dayun":  "📜 往昔大运深度解析",
	"now_dayun":  "🔄 当前大运深度解析与人生导航",
	"dayun":      "📅 大运流年解析报告",
	"five_dayun": "📊 近五年流年关键节点",
	"now_dayun1": "🎯 现代可行建议",
	"output":     "📝 总结输出",
	"output1":    "📄 文本处理",
}

var reportKeys = append(append([]string(nil), sectionKeys...), "output1")

// payload is the upstream result with data decoded once.
type payload struct {
	result map[string]any
	data   any
}

func (p payload) dataMap() map[string]any {
	m, _ := p.data.(map[string]any)
	return m
}

// strategy is one tagged extractor. extract reports false when the
// payload does not have the strategy's shape.
type strategy struct {
	source  Source
	extract func(p payload) (Content, bool)
}

// strategies are tried in order; the first match wins. The raw fallback
// always matches.
var strategies = []strategy{
	{source: SourceNestedFortuneContent, extract: nestedFortuneContent},
	{source: SourceFortuneContent, extract: topLevelFortuneContent},
	{source: SourceNamedSections, extract: namedSections},
	{source: SourceLegacyOutputs, extract: legacyOutputs},
	{source: SourcePlainText, extract: plainText},
	{source: SourceRaw, extract: rawPayload},
}

// Normalize converts one upstream result into a Result. A non-zero code
// in the result is returned as *workflow.BusinessError. basic_info and
// name always come from req.
func Normalize(result map[string]any, req birth.Request) (*Result, error) {
	if code, ok := businessCode(result["code"]); ok && code != 0 {
		return nil, &workflow.BusinessError{
			Code:     code,
			Message:  firstString(result, "msg", "message"),
			DebugURL: firstString(result, "debug_url"),
		}
	}

	p := payload{result: result, data: decodeMaybeJSON(result["data"])}

	out := &Result{
		Success: true,
		Name:    req.Name,
		BasicInfo: BasicInfo{
			BirthDate:  req.Datetime(),
			BirthPlace: req.BirthPlace,
			Gender:     req.Gender,
		},
		DebugURL: firstString(result, "debug_url"),
		Usage:    result["usage"],
	}

	for _, s := range strategies {
		content, ok := s.extract(p)
		if !ok {
			continue
		}
		out.FortuneContent = content
		out.Source = s.source
		out.Diagnostic = s.source == SourceRaw
		break
	}
	return out, nil
}

func nestedFortuneContent(p payload) (Content, bool) {
	data := p.dataMap()
	if data == nil {
		return Content{}, false
	}

	value, ok := data["fortune_content"]
	if !ok || isBlank(value) {
		outputs, _ := data["outputs"].(map[string]any)
		value, ok = outputs["fortune_content"]
		if !ok || isBlank(value) {
			return Content{}, false
		}
	}

	switch v := decodeMaybeJSON(value).(type) {
	case map[string]any:
		if sections := collect(v, reportKeys, reportTitles); len(sections) > 0 {
			return Content{Sections: sections}, true
		}
		if sections := collectAll(v); len(sections) > 0 {
			return Content{Sections: sections}, true
		}
		return Content{}, false
	default:
		return TextContent(stringify(v)), true
	}
}

func topLevelFortuneContent(p payload) (Content, bool) {
	s, ok := p.result["fortune_content"].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return Content{}, false
	}
	return TextContent(s), true
}

func namedSections(p payload) (Content, bool) {
	return sectionsOrText(collect(p.dataMap(), sectionKeys, sectionTitles))
}

func legacyOutputs(p payload) (Content, bool) {
	outputs, _ := p.dataMap()["outputs"].(map[string]any)
	return sectionsOrText(collect(outputs, legacyKeys, sectionTitles))
}

// plainText covers data that is just a string, as a terminal stream node
// produces, and the top-level output field some runs return.
func plainText(p payload) (Content, bool) {
	if s, ok := p.data.(string); ok && strings.TrimSpace(s) != "" {
		return TextContent(s), true
	}
	if s, ok := p.result["output"].(string); ok && strings.TrimSpace(s) != "" {
		return TextContent(s), true
	}
	return Content{}, false
}

func rawPayload(p payload) (Content, bool) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p.result); err != nil {
		return TextContent(fmt.Sprintf("%v", p.result)), true
	}
	return TextContent(strings.TrimRight(buf.String(), "\n")), true
}

func sectionsOrText(sections []Section) (Content, bool) {
	switch len(sections) {
	case 0:
		return Content{}, false
	case 1:
		return TextContent(sections[0].Content), true
	default:
		return Content{Sections: sections}, true
	}
}

func collect(m map[string]any, keys []string, titles map[string]string) []Section {
	var sections []Section
	for _, key := range keys {
		value, ok := m[key]
		if !ok || isBlank(value) {
			continue
		}
		sections = append(sections, Section{Key: key, Title: titles[key], Content: stringify(value)})
	}
	return sections
}

// collectAll keeps unknown keys visible, titled by the key itself.
func collectAll(m map[string]any) []Section {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sections []Section
	for _, key := range keys {
		if isBlank(m[key]) {
			continue
		}
		sections = append(sections, Section{Key: key, Title: key, Content: stringify(m[key])})
	}
	return sections
}

// decodeMaybeJSON parses strings that look like JSON objects. Anything
// else, including strings that fail to parse, is returned unchanged.
func decodeMaybeJSON(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") {
		return v
	}

	var parsed map[string]any
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&parsed); err != nil {
		return v
	}
	return parsed
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := marshalNoEscape(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// businessCode reads the upstream code field, which arrives as a number
// or, from some gateways, a numeric string.
func businessCode(v any) (int64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case int:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		return int64(t), true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
		f, err := t.Float64()
		return int64(f), err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return i, err == nil
	}
	return 0, false
}
