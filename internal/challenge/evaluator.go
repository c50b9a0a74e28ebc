package challenge

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// DescriptiveMode selects how free-text answers are graded.
type DescriptiveMode string

const (
	// DescriptiveOverlap passes when the share of reference keywords found among
	// the answer's words reaches the overlap threshold.
	DescriptiveOverlap DescriptiveMode = "overlap"
	// DescriptiveStrict passes only when every reference keyword occurs in the answer.
	DescriptiveStrict DescriptiveMode = "strict"
)

// DefaultOverlapThreshold is the keyword share required in overlap mode.
const DefaultOverlapThreshold = 0.6

// EvaluatorConfig configures descriptive grading. Zero values select the defaults.
type EvaluatorConfig struct {
	DescriptiveMode  DescriptiveMode
	OverlapThreshold float64
}

// Evaluator decides whether submitted answers are correct for a challenge.
type Evaluator struct {
	mode      DescriptiveMode
	threshold float64
}

// NewEvaluator creates an evaluator.
func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	mode := cfg.DescriptiveMode
	if mode != DescriptiveStrict {
		mode = DescriptiveOverlap
	}
	threshold := cfg.OverlapThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultOverlapThreshold
	}
	return &Evaluator{mode: mode, threshold: threshold}
}

// Mode returns the active descriptive grading mode.
func (e *Evaluator) Mode() DescriptiveMode { return e.mode }

// Threshold returns the overlap threshold.
func (e *Evaluator) Threshold() float64 { return e.threshold }

// EvaluateRaw parses challengeData and grades answers against it.
// Unknown types and malformed payloads grade as incorrect.
func (e *Evaluator) EvaluateRaw(challengeData, answers json.RawMessage) bool {
	def, err := Parse(challengeData)
	if err != nil {
		return false
	}
	return e.Evaluate(def, answers)
}

// Evaluate grades JSON-encoded answers against a parsed definition. It never fails:
// answers of the wrong shape are simply incorrect.
func (e *Evaluator) Evaluate(def Definition, answers json.RawMessage) bool {
	submitted, ok := decodeAnswers(answers)
	if !ok {
		return false
	}

	switch d := def.(type) {
	case SingleChoice:
		return gradeSingle(d, submitted)
	case MultipleChoice:
		return gradeMultiple(d, submitted)
	case DragDropTable:
		return gradeDragDrop(d, submitted)
	case ImageMCQ:
		return gradeImage(d, submitted)
	case Descriptive:
		return e.gradeDescriptive(d, submitted)
	default:
		return false
	}
}

func gradeSingle(d SingleChoice, submitted any) bool {
	list, ok := submitted.([]any)
	if !ok || len(list) != 1 {
		return false
	}
	want, ok := optionKey(d.CorrectOption)
	if !ok {
		return false
	}
	got, ok := optionKey(list[0])
	return ok && got == want
}

func gradeMultiple(d MultipleChoice, submitted any) bool {
	list, ok := submitted.([]any)
	if !ok {
		return false
	}
	want, ok := optionSet(d.CorrectOptions)
	if !ok || len(want) == 0 {
		return false
	}
	got, ok := optionSet(list)
	return ok && sameSet(got, want)
}

func gradeDragDrop(d DragDropTable, submitted any) bool {
	list, ok := submitted.([]any)
	if !ok || len(list) != len(d.Columns) {
		return false
	}

	byTitle := make(map[string]map[string]struct{}, len(list))
	for _, item := range list {
		col, ok := item.(map[string]any)
		if !ok {
			return false
		}
		title, ok := col["title"].(string)
		if !ok {
			return false
		}
		opts, ok := col["options"].([]any)
		if !ok {
			return false
		}
		set, ok := optionSet(opts)
		if !ok {
			return false
		}
		byTitle[title] = set
	}

	for _, col := range d.Columns {
		got, found := byTitle[col.Title]
		if !found {
			return false
		}
		want, ok := optionSet(col.Options)
		if !ok || !sameSet(got, want) {
			return false
		}
	}
	return true
}

func gradeImage(d ImageMCQ, submitted any) bool {
	byQuestion, ok := submitted.(map[string]any)
	if !ok || len(d.SubQuestions) == 0 {
		return false
	}
	for _, sq := range d.SubQuestions {
		want, ok := optionText(sq.CorrectOption)
		if !ok || sq.Question == "" {
			return false
		}
		got, ok := optionText(byQuestion[sq.Question])
		if !ok || got != want {
			return false
		}
	}
	return true
}

func (e *Evaluator) gradeDescriptive(d Descriptive, submitted any) bool {
	byQuestion, ok := submitted.(map[string]any)
	if !ok || len(d.SubQuestions) == 0 {
		return false
	}
	for _, sq := range d.SubQuestions {
		answer, _ := byQuestion[sq.Question].(string)
		if !e.gradeFreeText(sq.Answer, answer) {
			return false
		}
	}
	return true
}

func (e *Evaluator) gradeFreeText(reference, answer string) bool {
	if strings.TrimSpace(reference) == "" || strings.TrimSpace(answer) == "" {
		return false
	}
	if e.mode == DescriptiveStrict {
		lowered := normalize(answer)
		for _, k := range Keywords(reference) {
			if !strings.Contains(lowered, k) {
				return false
			}
		}
		return true
	}
	return KeywordCoverage(reference, answer) >= e.threshold
}

// KeywordCoverage returns the share of reference keywords present as words of answer.
func KeywordCoverage(reference, answer string) float64 {
	keywords := Keywords(reference)
	if len(keywords) == 0 {
		return 1
	}
	words := tokens(answer)
	matched := 0
	for _, k := range keywords {
		if _, ok := words[k]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(keywords))
}

func decodeAnswers(raw json.RawMessage) (any, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, v != nil
}

// optionKey returns an identity for an option that keeps strings and numbers apart,
// so "2" and 2 are different options while 2 and 2.0 are the same.
func optionKey(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return "s:" + x, true
	case bool:
		return "b:" + strconv.FormatBool(x), true
	}
	if n, ok := numberText(v); ok {
		return "n:" + n, true
	}
	return "", false
}

// optionText coerces an option to text for comparisons that ignore JSON types.
func optionText(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	}
	return numberText(v)
}

func numberText(v any) (string, bool) {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return strconv.FormatInt(i, 10), true
		}
		if f, err := x.Float64(); err == nil {
			return floatText(f), true
		}
		return x.String(), true
	case float64:
		return floatText(x), true
	case float32:
		return floatText(float64(x)), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	}
	return "", false
}

// floatText writes integral values in integer form so 1e6 and 1000000 agree.
func floatText(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func optionSet(values []any) (map[string]struct{}, bool) {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		k, ok := optionKey(v)
		if !ok {
			return nil, false
		}
		set[k] = struct{}{}
	}
	return set, true
}

func sameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
