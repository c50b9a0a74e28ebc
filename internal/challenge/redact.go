package challenge

import (
	"bytes"
	"encoding/json"
	"sort"
)

var answerKeys = map[string]bool{
	"correct_option":  true,
	"correct_options": true,
	"answer":          true,
}

// Redact returns challenge_data safe to show a learner. Answer fields are
// removed at every depth. Drag-and-drop columns keep their titles and their
// options move into one sorted top-level "options" pool.
// Input that is not a JSON object yields nil.
func Redact(raw json.RawMessage) json.RawMessage {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	if Type(asString(obj["type"])) == TypeDragDropTable {
		poolColumns(obj)
	}

	out, err := json.Marshal(stripAnswers(obj))
	if err != nil {
		return nil
	}
	return out
}

func stripAnswers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if answerKeys[k] {
				delete(t, k)
				continue
			}
			t[k] = stripAnswers(child)
		}
		return t
	case []any:
		for i := range t {
			t[i] = stripAnswers(t[i])
		}
		return t
	default:
		return v
	}
}

func poolColumns(obj map[string]any) {
	cols, _ := obj["columns"].([]any)
	pool := []any{}
	for _, c := range cols {
		col, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if opts, ok := col["options"].([]any); ok {
			pool = append(pool, opts...)
		}
		col["options"] = []any{}
	}

	sort.SliceStable(pool, func(i, j int) bool {
		a, _ := optionKey(pool[i])
		b, _ := optionKey(pool[j])
		return a < b
	})
	obj["options"] = pool
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
