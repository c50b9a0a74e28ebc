package challenge_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/p-n-ai/pai-academy/internal/challenge"
)

func TestEvaluateRaw(t *testing.T) {
	eval := challenge.NewEvaluator(challenge.EvaluatorConfig{})

	tests := []struct {
		name    string
		data    string
		answers string
		want    bool
	}{
		{"single correct", `{"type":"multiple_choice_single","correct_option":"B"}`, `["B"]`, true},
		{"single wrong", `{"type":"multiple_choice_single","correct_option":"B"}`, `["A"]`, false},
		{"single two answers", `{"type":"multiple_choice_single","correct_option":"B"}`, `["B","A"]`, false},
		{"single not a list", `{"type":"multiple_choice_single","correct_option":"B"}`, `"B"`, false},
		{"single number vs string", `{"type":"multiple_choice_single","correct_option":2}`, `["2"]`, false},
		{"single numeric", `{"type":"multiple_choice_single","correct_option":2}`, `[2]`, true},
		{"single exponent form", `{"type":"multiple_choice_single","correct_option":1000000}`, `[1e6]`, true},
		{"single large ids distinct", `{"type":"multiple_choice_single","correct_option":9007199254740993}`, `[9007199254740992]`, false},
		{"single large id exact", `{"type":"multiple_choice_single","correct_option":9007199254740993}`, `[9007199254740993]`, true},
		{"multiple ordered", `{"type":"multiple_choice_multiple","correct_options":[1,2]}`, `[1,2]`, true},
		{"multiple reversed", `{"type":"multiple_choice_multiple","correct_options":[1,2]}`, `[2,1]`, true},
		{"multiple partial", `{"type":"multiple_choice_multiple","correct_options":[1,2]}`, `[1]`, false},
		{"multiple extra", `{"type":"multiple_choice_multiple","correct_options":[1,2]}`, `[1,2,3]`, false},
		{"unknown type", `{"type":"essay","correct_option":"B"}`, `["B"]`, false},
		{"missing type", `{"correct_option":"B"}`, `["B"]`, false},
		{"malformed data", `not json`, `["B"]`, false},
		{"empty answers", `{"type":"multiple_choice_single","correct_option":"B"}`, ``, false},
		{"null answers", `{"type":"multiple_choice_single","correct_option":"B"}`, `null`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := eval.EvaluateRaw(json.RawMessage(tt.data), json.RawMessage(tt.answers))
			if got != tt.want {
				t.Errorf("EvaluateRaw() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate_DragDropTable(t *testing.T) {
	eval := challenge.NewEvaluator(challenge.EvaluatorConfig{})
	data := json.RawMessage(`{"type":"drag_drop_table","columns":[
		{"title":"Input","options":["keyboard","mouse"]},
		{"title":"Output","options":["monitor"]}
	]}`)

	tests := []struct {
		name    string
		answers string
		want    bool
	}{
		{"exact", `[{"title":"Input","options":["keyboard","mouse"]},{"title":"Output","options":["monitor"]}]`, true},
		{"options reordered", `[{"title":"Output","options":["monitor"]},{"title":"Input","options":["mouse","keyboard"]}]`, true},
		{"missing column", `[{"title":"Input","options":["keyboard","mouse"]}]`, false},
		{"renamed column", `[{"title":"Input","options":["keyboard","mouse"]},{"title":"Outputs","options":["monitor"]}]`, false},
		{"wrong bucket", `[{"title":"Input","options":["keyboard"]},{"title":"Output","options":["monitor","mouse"]}]`, false},
		{"extra column", `[{"title":"Input","options":["keyboard","mouse"]},{"title":"Output","options":["monitor"]},{"title":"Other","options":[]}]`, false},
		{"not a list", `{"Input":["keyboard","mouse"]}`, false},
		{"column without options", `[{"title":"Input"},{"title":"Output","options":["monitor"]}]`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eval.EvaluateRaw(data, json.RawMessage(tt.answers)); got != tt.want {
				t.Errorf("EvaluateRaw() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate_ImageMCQ(t *testing.T) {
	eval := challenge.NewEvaluator(challenge.EvaluatorConfig{})
	data := json.RawMessage(`{"type":"image_based_mcq","sub_questions":[
		{"question":"Which planet?","correct_option":3},
		{"question":"Which colour?","correct_option":"red"}
	]}`)

	tests := []struct {
		name    string
		answers string
		want    bool
	}{
		{"all correct", `{"Which planet?":3,"Which colour?":"red"}`, true},
		{"number as text", `{"Which planet?":"3","Which colour?":"red"}`, true},
		{"one wrong", `{"Which planet?":"4","Which colour?":"red"}`, false},
		{"one missing", `{"Which planet?":"3"}`, false},
		{"list instead of map", `["3","red"]`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eval.EvaluateRaw(data, json.RawMessage(tt.answers)); got != tt.want {
				t.Errorf("EvaluateRaw() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate_Descriptive(t *testing.T) {
	data := json.RawMessage(`{"type":"descriptive","sub_questions":[
		{"question":"Why?","answer":"the sun is a star that emits light"}
	]}`)

	tests := []struct {
		name    string
		cfg     challenge.EvaluatorConfig
		answers string
		want    bool
	}{
		// keywords: sun, star, emits, light
		{"overlap half is below default", challenge.EvaluatorConfig{}, `{"Why?":"a star emitting light"}`, false},
		{"overlap three of four", challenge.EvaluatorConfig{}, `{"Why?":"The Sun is a star emitting light."}`, true},
		{"overlap lower threshold", challenge.EvaluatorConfig{OverlapThreshold: 0.5}, `{"Why?":"a star emitting light"}`, true},
		{"overlap empty answer", challenge.EvaluatorConfig{}, `{"Why?":"   "}`, false},
		{"overlap missing answer", challenge.EvaluatorConfig{}, `{"Other?":"sun star emits light"}`, false},
		{"strict all present", challenge.EvaluatorConfig{DescriptiveMode: challenge.DescriptiveStrict}, `{"Why?":"Our sun: a star which emits light"}`, true},
		{"strict one missing", challenge.EvaluatorConfig{DescriptiveMode: challenge.DescriptiveStrict}, `{"Why?":"The Sun is a star emitting light."}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := challenge.NewEvaluator(tt.cfg)
			if got := eval.EvaluateRaw(data, json.RawMessage(tt.answers)); got != tt.want {
				t.Errorf("EvaluateRaw() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate_DescriptiveEverySubQuestion(t *testing.T) {
	eval := challenge.NewEvaluator(challenge.EvaluatorConfig{})
	data := json.RawMessage(`{"type":"descriptive","sub_questions":[
		{"question":"Q1","answer":"water boils at hundred degrees"},
		{"question":"Q2","answer":"ice melts at zero degrees"}
	]}`)

	if !eval.EvaluateRaw(data, json.RawMessage(`{"Q1":"water boils at hundred degrees","Q2":"ice melts at zero degrees"}`)) {
		t.Error("both sub-questions answered should pass")
	}
	if eval.EvaluateRaw(data, json.RawMessage(`{"Q1":"water boils at hundred degrees","Q2":"no idea"}`)) {
		t.Error("one failing sub-question should fail the whole attempt")
	}
}

func TestNewEvaluator_Defaults(t *testing.T) {
	eval := challenge.NewEvaluator(challenge.EvaluatorConfig{OverlapThreshold: 1.5})
	if eval.Mode() != challenge.DescriptiveOverlap {
		t.Errorf("Mode() = %q, want overlap", eval.Mode())
	}
	if eval.Threshold() != challenge.DefaultOverlapThreshold {
		t.Errorf("Threshold() = %v, want %v", eval.Threshold(), challenge.DefaultOverlapThreshold)
	}
}

func TestKeywords(t *testing.T) {
	got := challenge.Keywords("The sun is a star, that emits light. The sun")
	want := []string{"sun", "star", "emits", "light"}
	if len(got) != len(want) {
		t.Fatalf("Keywords() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keywords()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestKeywordCoverage(t *testing.T) {
	if got := challenge.KeywordCoverage("the sun is a star that emits light", "a star emitting light"); got != 0.5 {
		t.Errorf("KeywordCoverage() = %v, want 0.5", got)
	}
	if got := challenge.KeywordCoverage("the and of", "anything"); got != 1 {
		t.Errorf("KeywordCoverage() with no keywords = %v, want 1", got)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    challenge.Type
		wantErr error
	}{
		{"single", `{"type":"multiple_choice_single","correct_option":"B"}`, challenge.TypeSingleChoice, nil},
		{"multiple", `{"type":"multiple_choice_multiple","correct_options":["a","b"]}`, challenge.TypeMultipleChoice, nil},
		{"table", `{"type":"drag_drop_table","columns":[{"title":"x","options":["1"]}]}`, challenge.TypeDragDropTable, nil},
		{"image", `{"type":"image_based_mcq","sub_questions":[{"question":"q","correct_option":1}]}`, challenge.TypeImageMCQ, nil},
		{"descriptive", `{"type":"descriptive","sub_questions":[{"question":"q","answer":"a"}]}`, challenge.TypeDescriptive, nil},
		{"unknown", `{"type":"essay"}`, "", challenge.ErrUnknownType},
		{"missing type", `{}`, "", challenge.ErrUnknownType},
		{"single without option", `{"type":"multiple_choice_single"}`, "", challenge.ErrInvalidPayload},
		{"multiple empty", `{"type":"multiple_choice_multiple","correct_options":[]}`, "", challenge.ErrInvalidPayload},
		{"table column without title", `{"type":"drag_drop_table","columns":[{"options":["1"]}]}`, "", challenge.ErrInvalidPayload},
		{"descriptive without answer", `{"type":"descriptive","sub_questions":[{"question":"q"}]}`, "", challenge.ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := challenge.Parse(json.RawMessage(tt.data))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Parse() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if def.Type() != tt.want {
				t.Errorf("Type() = %q, want %q", def.Type(), tt.want)
			}
		})
	}
}
