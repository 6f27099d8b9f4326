package birth

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON []byte

var requestSchema = mustCompile(schemaJSON)

func mustCompile(raw []byte) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("birth: invalid embedded schema: %v", err))
	}
	return schema
}

// ValidationError reports why a submission was rejected. It is never
// retryable.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid birth request"
	}
	return "invalid birth request: " + strings.Join(e.Problems, "; ")
}

// Retryable always reports false.
func (e *ValidationError) Retryable() bool { return false }

// Parse decodes and validates a request body. Structure is checked against
// the embedded JSON schema; ranges and calendar validity are checked after
// decoding.
func Parse(body []byte) (Request, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Request{}, &ValidationError{Problems: []string{"request body is empty"}}
	}

	result, err := requestSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return Request{}, &ValidationError{Problems: []string{fmt.Sprintf("malformed JSON: %v", err)}}
	}
	if !result.Valid() {
		verr := &ValidationError{}
		for _, e := range result.Errors() {
			verr.Problems = append(verr.Problems, e.String())
		}
		return Request{}, verr
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return Request{}, &ValidationError{Problems: []string{err.Error()}}
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Validate checks numeric ranges and that the date exists on the calendar.
func (r Request) Validate() error {
	var problems []string

	check := func(field string, v FlexInt, lo, hi int) {
		if int(v) < lo || int(v) > hi {
			problems = append(problems, fmt.Sprintf("%s must be between %d and %d, got %d", field, lo, hi, v))
		}
	}
	check("year", r.Year, MinYear, MaxYear)
	check("month", r.Month, 1, 12)
	check("day", r.Day, 1, 31)
	check("hour", r.Hour, 0, 23)
	check("minute", r.Minute, 0, 59)
	check("second", r.Second, 0, 59)

	if len(problems) == 0 {
		t := time.Date(int(r.Year), time.Month(r.Month), int(r.Day), 0, 0, 0, 0, time.UTC)
		if t.Day() != int(r.Day) {
			problems = append(problems, fmt.Sprintf("%04d-%02d-%02d is not a calendar date", r.Year, r.Month, r.Day))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
