// Package challenge models the five challenge question types and grades submitted answers.
package challenge

// Type identifies the shape of a challenge_data payload.
type Type string

const (
	TypeSingleChoice   Type = "multiple_choice_single"
	TypeMultipleChoice Type = "multiple_choice_multiple"
	TypeDragDropTable  Type = "drag_drop_table"
	TypeImageMCQ       Type = "image_based_mcq"
	TypeDescriptive    Type = "descriptive"
)

// Known reports whether t is one of the supported challenge types.
func (t Type) Known() bool {
	switch t {
	case TypeSingleChoice, TypeMultipleChoice, TypeDragDropTable, TypeImageMCQ, TypeDescriptive:
		return true
	default:
		return false
	}
}

// Definition is a parsed, validated challenge_data payload.
// Exactly one concrete type exists per challenge Type.
type Definition interface {
	Type() Type
}

// SingleChoice has exactly one correct option identifier.
type SingleChoice struct {
	CorrectOption any `json:"correct_option"`
}

func (SingleChoice) Type() Type { return TypeSingleChoice }

// MultipleChoice is correct when the selected set equals CorrectOptions.
type MultipleChoice struct {
	CorrectOptions []any `json:"correct_options"`
}

func (MultipleChoice) Type() Type { return TypeMultipleChoice }

// Column is one titled bucket of a drag-and-drop table.
type Column struct {
	Title   string `json:"title"`
	Options []any  `json:"options"`
}

// DragDropTable asks the learner to sort options into titled columns.
type DragDropTable struct {
	Columns []Column `json:"columns"`
}

func (DragDropTable) Type() Type { return TypeDragDropTable }

// ImageSubQuestion is one question about the challenge image.
type ImageSubQuestion struct {
	Question      string `json:"question"`
	CorrectOption any    `json:"correct_option"`
}

// ImageMCQ groups several single-answer questions about an image.
type ImageMCQ struct {
	SubQuestions []ImageSubQuestion `json:"sub_questions"`
}

func (ImageMCQ) Type() Type { return TypeImageMCQ }

// DescriptiveSubQuestion carries the reference answer keywords are taken from.
type DescriptiveSubQuestion struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Descriptive is graded by keyword coverage of free-text answers.
type Descriptive struct {
	SubQuestions []DescriptiveSubQuestion `json:"sub_questions"`
}

func (Descriptive) Type() Type { return TypeDescriptive }
