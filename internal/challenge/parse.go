package challenge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

var (
	// ErrUnknownType is returned for a missing or unsupported "type" field.
	ErrUnknownType = errors.New("unknown challenge type")
	// ErrInvalidPayload wraps schema violations of a known challenge type.
	ErrInvalidPayload = errors.New("invalid challenge payload")
)

const optionSchema = `{"type": ["string", "number"]}`

var schemaSources = map[Type]string{
	TypeSingleChoice: `{
		"type": "object",
		"required": ["type", "correct_option"],
		"properties": {
			"correct_option": ` + optionSchema + `
		}
	}`,
	TypeMultipleChoice: `{
		"type": "object",
		"required": ["type", "correct_options"],
		"properties": {
			"correct_options": {"type": "array", "minItems": 1, "items": ` + optionSchema + `}
		}
	}`,
	TypeDragDropTable: `{
		"type": "object",
		"required": ["type", "columns"],
		"properties": {
			"columns": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"required": ["title", "options"],
					"properties": {
						"title": {"type": "string", "minLength": 1},
						"options": {"type": "array", "items": ` + optionSchema + `}
					}
				}
			}
		}
	}`,
	TypeImageMCQ: `{
		"type": "object",
		"required": ["type", "sub_questions"],
		"properties": {
			"sub_questions": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"required": ["question", "correct_option"],
					"properties": {
						"question": {"type": "string", "minLength": 1},
						"correct_option": ` + optionSchema + `
					}
				}
			}
		}
	}`,
	TypeDescriptive: `{
		"type": "object",
		"required": ["type", "sub_questions"],
		"properties": {
			"sub_questions": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"required": ["question", "answer"],
					"properties": {
						"question": {"type": "string", "minLength": 1},
						"answer": {"type": "string", "minLength": 1}
					}
				}
			}
		}
	}`,
}

var (
	schemasOnce sync.Once
	schemas     map[Type]*gojsonschema.Schema
	schemasErr  error
)

func compiledSchemas() (map[Type]*gojsonschema.Schema, error) {
	schemasOnce.Do(func() {
		schemas = make(map[Type]*gojsonschema.Schema, len(schemaSources))
		for t, src := range schemaSources {
			s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
			if err != nil {
				schemasErr = fmt.Errorf("compile %s schema: %w", t, err)
				return
			}
			schemas[t] = s
		}
	})
	return schemas, schemasErr
}

// PeekType returns the "type" field of a challenge_data payload without validating the rest.
func PeekType(raw json.RawMessage) Type {
	var envelope struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return ""
	}
	return envelope.Type
}

// Parse validates raw challenge_data against the schema of its type and
// decodes it into the matching Definition.
func Parse(raw json.RawMessage) (Definition, error) {
	t := PeekType(raw)
	if !t.Known() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}

	all, err := compiledSchemas()
	if err != nil {
		return nil, err
	}
	result, err := all[t].Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrInvalidPayload, t, strings.Join(msgs, "; "))
	}

	var def Definition
	switch t {
	case TypeSingleChoice:
		def, err = decodeAs[SingleChoice](raw)
	case TypeMultipleChoice:
		def, err = decodeAs[MultipleChoice](raw)
	case TypeDragDropTable:
		def, err = decodeAs[DragDropTable](raw)
	case TypeImageMCQ:
		def, err = decodeAs[ImageMCQ](raw)
	case TypeDescriptive:
		def, err = decodeAs[Descriptive](raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidPayload, t, err)
	}
	return def, nil
}

// decodeAs keeps numbers as json.Number so option identifiers compare exactly.
func decodeAs[T Definition](raw json.RawMessage) (Definition, error) {
	var v T
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
