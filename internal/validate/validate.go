// Package validate checks raw model output against declarative schemas
// and produces repair diagnostics for the single bounded re-ask.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// ErrValidation is the terminal error after the one repair attempt has
// been spent.
var ErrValidation = errors.New("model output failed validation")

// ErrNoJSON reports that no JSON object could be located in the text.
var ErrNoJSON = errors.New("no JSON object found in model output")

// ParseJSONBlock extracts a JSON object from model output. It first
// attempts a strict parse; on failure it makes one bounded extraction
// pass over the outermost brace pair and retries. Markdown code fences
// around the object are tolerated.
func ParseJSONBlock(text string) (map[string]any, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if trimmed == "" {
		return nil, ErrNoJSON
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
		return obj, nil
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return nil, ErrNoJSON
	}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoJSON, err)
	}
	return obj, nil
}

// Kind is the expected JSON type of a schema field.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindInteger
	KindObject
	KindList
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindInteger:
		return "integer"
	case KindObject:
		return "object"
	case KindList:
		return "list"
	case KindEnum:
		return "enum"
	}
	return "unknown"
}

// Field declares one key of an object schema.
type Field struct {
	Name        string
	Kind        Kind
	Required    bool
	NonNegative bool
	Enum        []string // allowed values for KindEnum
	Object      *Schema  // nested schema for KindObject
	Elem        *Schema  // element schema for KindList of objects
}

// Schema is a declarative description of an expected JSON object:
// required keys, value kinds, numeric ranges and enums. Unknown extra
// keys are ignored for forward compatibility.
type Schema struct {
	Name   string
	Fields []Field
}

// RepairRequest describes why an object failed the schema, in a form
// suitable for feeding back to the model. For identical input it always
// carries the same diagnostics.
type RepairRequest struct {
	Schema   string
	Problems []string
}

// Description renders the problems as one human-readable message.
func (r *RepairRequest) Description() string {
	return fmt.Sprintf("the %s object is invalid: %s", r.Schema, strings.Join(r.Problems, "; "))
}

// Validate checks obj against the schema. It returns nil when the
// object is valid, so re-validating an accepted object is a no-op.
// Fields are checked in declaration order, which keeps diagnostics
// deterministic.
func (s *Schema) Validate(obj map[string]any) *RepairRequest {
	problems := s.check(obj, "")
	if len(problems) == 0 {
		return nil
	}
	return &RepairRequest{Schema: s.Name, Problems: problems}
}

func (s *Schema) check(obj map[string]any, prefix string) []string {
	var problems []string
	for _, f := range s.Fields {
		path := f.Name
		if prefix != "" {
			path = prefix + "." + f.Name
		}
		value, present := obj[f.Name]
		if !present || value == nil {
			if f.Required {
				problems = append(problems, fmt.Sprintf("required key %q is missing", path))
			}
			continue
		}
		problems = append(problems, checkValue(path, value, f)...)
	}
	return problems
}

func checkValue(path string, value any, f Field) []string {
	switch f.Kind {
	case KindString:
		if _, ok := value.(string); !ok {
			return []string{fmt.Sprintf("key %q must be a string", path)}
		}
	case KindNumber, KindInteger:
		num, ok := value.(float64)
		if !ok {
			return []string{fmt.Sprintf("key %q must be a number", path)}
		}
		if f.Kind == KindInteger && num != math.Trunc(num) {
			return []string{fmt.Sprintf("key %q must be an integer", path)}
		}
		if f.NonNegative && num < 0 {
			return []string{fmt.Sprintf("key %q must not be negative", path)}
		}
	case KindEnum:
		str, ok := value.(string)
		if !ok {
			return []string{fmt.Sprintf("key %q must be a string", path)}
		}
		for _, allowed := range f.Enum {
			if str == allowed {
				return nil
			}
		}
		return []string{fmt.Sprintf("key %q must be one of %s", path, strings.Join(f.Enum, ", "))}
	case KindObject:
		nested, ok := value.(map[string]any)
		if !ok {
			return []string{fmt.Sprintf("key %q must be an object", path)}
		}
		if f.Object != nil {
			return f.Object.check(nested, path)
		}
	case KindList:
		list, ok := value.([]any)
		if !ok {
			return []string{fmt.Sprintf("key %q must be a list", path)}
		}
		if f.Elem != nil {
			var problems []string
			for i, elem := range list {
				nested, ok := elem.(map[string]any)
				if !ok {
					problems = append(problems, fmt.Sprintf("element %d of %q must be an object", i, path))
					continue
				}
				problems = append(problems, f.Elem.check(nested, fmt.Sprintf("%s[%d]", path, i))...)
			}
			return problems
		}
	}
	return nil
}

var numberPattern = regexp.MustCompile(`[-+]?[0-9]+(?:[\s,.][0-9]+)?`)

// ParseInt coerces loose numeric values such as "150 kcal" or "20 g"
// into integers. It never invents a value: absent or unparseable input
// reports ok=false. Used only where the original data already carries
// the field, never to fill a missing required key.
func ParseInt(value any) (int, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case int:
		return v, true
	case float64:
		return int(math.Round(v)), true
	case string:
		m := numberPattern.FindString(v)
		if m == "" {
			return 0, false
		}
		m = strings.ReplaceAll(m, " ", "")
		m = strings.ReplaceAll(m, ",", ".")
		var f float64
		if _, err := fmt.Sscanf(m, "%g", &f); err != nil {
			return 0, false
		}
		return int(math.Round(f)), true
	}
	return 0, false
}

// CoerceNumbers rewrites loosely typed numeric fields of obj in place
// using ParseInt, leaving anything unparseable untouched so the schema
// check still reports it.
func CoerceNumbers(obj map[string]any, keys ...string) {
	for _, key := range keys {
		if v, ok := obj[key]; ok {
			if n, ok := ParseInt(v); ok {
				obj[key] = float64(n)
			}
		}
	}
}
