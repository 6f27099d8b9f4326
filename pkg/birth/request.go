// Package birth defines the inbound birth-data request and its validation.
package birth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Bounds accepted for the numeric fields.
const (
	MinYear = 1900
	MaxYear = 2030
)

// Request is a validated birth-data submission. Values are produced by
// Parse and are not modified afterwards.
type Request struct {
	Name          string  `json:"name"`
	Gender        string  `json:"gender"`
	BirthPlace    string  `json:"birth_place"`
	BirthDatetime string  `json:"birth_datetime,omitempty"`
	Year          FlexInt `json:"year"`
	Month         FlexInt `json:"month"`
	Day           FlexInt `json:"day"`
	Hour          FlexInt `json:"hour"`
	Minute        FlexInt `json:"minute"`
	Second        FlexInt `json:"second"`
}

// FlexInt is an integer that also decodes from a string of digits, since
// HTML forms post every field as text.
type FlexInt int

// UnmarshalJSON accepts 1990, 1990.0 and "1990".
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			return nil
		}
	}

	if i, err := strconv.Atoi(raw); err == nil {
		*f = FlexInt(i)
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v != math.Trunc(v) {
		return fmt.Errorf("not an integer: %s", raw)
	}
	if v < math.MinInt || v >= math.MaxInt {
		return fmt.Errorf("integer out of range: %s", raw)
	}
	*f = FlexInt(int(v))
	return nil
}

// Int returns the value as an int.
func (f FlexInt) Int() int { return int(f) }

// Datetime returns the caller-supplied birth_datetime, or one built from
// the numeric fields as YYYY-MM-DD HH:MM:SS.
func (r Request) Datetime() string {
	if strings.TrimSpace(r.BirthDatetime) != "" {
		return r.BirthDatetime
	}
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d",
		r.Year, r.Month, r.Day, r.Hour, r.Minute, r.Second)
}

// Parameters maps the request onto the workflow's input parameters.
func (r Request) Parameters() map[string]any {
	return map[string]any{
		"birth_datetime": r.Datetime(),
		"birth_place":    r.BirthPlace,
		"gender":         r.Gender,
		"name":           r.Name,
		"year":           r.Year.Int(),
		"month":          r.Month.Int(),
		"day":            r.Day.Int(),
		"hour":           r.Hour.Int(),
		"minute":         r.Minute.Int(),
		"second":         r.Second.Int(),
	}
}
