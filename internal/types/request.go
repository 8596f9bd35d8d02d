package types

import (
	"fmt"
	"strings"
)

// QuestionType is a kind of assessment question
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
	QuestionEssay          QuestionType = "essay"
	QuestionMatching       QuestionType = "matching"
)

// IsValid checks if the question type value is valid
func (q QuestionType) IsValid() bool {
	switch q {
	case QuestionMultipleChoice, QuestionTrueFalse, QuestionShortAnswer, QuestionEssay, QuestionMatching:
		return true
	}
	return false
}

// QuestionTypeConfig requests an exact number of questions of one type
type QuestionTypeConfig struct {
	Type       QuestionType `json:"type"`
	Count      int          `json:"count"`
	PointsEach int          `json:"points_each"`
}

const (
	maxQuestionsPerType  = 50
	maxPointsPerQuestion = 100
	maxClasses           = 60
	maxSlides            = 80
	maxObjectives        = 20
)

// GenerationRequest carries the caller-supplied parameters of one turn.
// A request without a ThreadID is a first call.
type GenerationRequest struct {
	ThreadID string       `json:"thread_id,omitempty"`
	Kind     ArtifactKind `json:"kind"`
	Message  string       `json:"message,omitempty"`

	Topic               string               `json:"topic,omitempty"`
	Objectives          []string             `json:"objectives,omitempty"`
	Language            string               `json:"language,omitempty"`
	NumberOfClasses     int                  `json:"number_of_classes,omitempty"`
	SlideCount          int                  `json:"slide_count,omitempty"`
	DurationMinutes     int                  `json:"duration_minutes,omitempty"`
	QuestionTypeConfigs []QuestionTypeConfig `json:"question_type_configs,omitempty"`

	// DocumentSessionID scopes uploaded-document search to this request
	DocumentSessionID string `json:"document_session_id,omitempty"`
}

// IsFirstCall reports whether the request starts a new thread
func (r *GenerationRequest) IsFirstCall() bool {
	return strings.TrimSpace(r.ThreadID) == ""
}

// Validate checks the request parameters. All failures are *ValidationError.
func (r *GenerationRequest) Validate() error {
	if !r.Kind.IsValid() {
		return NewValidationError("kind", fmt.Sprintf("unknown artifact kind %q", r.Kind))
	}
	if !r.IsFirstCall() {
		if strings.TrimSpace(r.Message) == "" {
			return NewValidationError("message", "follow-up message is required")
		}
		return nil
	}

	if strings.TrimSpace(r.Topic) == "" {
		return NewValidationError("topic", "topic is required on the first call")
	}
	if len(r.Objectives) > maxObjectives {
		return NewValidationError("objectives",
			fmt.Sprintf("at most %d objectives allowed (got %d)", maxObjectives, len(r.Objectives)))
	}
	for i, o := range r.Objectives {
		if strings.TrimSpace(o) == "" {
			return NewValidationError("objectives", fmt.Sprintf("objective %d is empty", i+1))
		}
	}

	switch r.Kind {
	case KindCourseOutline:
		if r.NumberOfClasses < 1 || r.NumberOfClasses > maxClasses {
			return NewValidationError("number_of_classes",
				fmt.Sprintf("must be between 1 and %d (got %d)", maxClasses, r.NumberOfClasses))
		}
	case KindLessonPlan:
		if r.DurationMinutes < 5 || r.DurationMinutes > 480 {
			return NewValidationError("duration_minutes",
				fmt.Sprintf("must be between 5 and 480 (got %d)", r.DurationMinutes))
		}
	case KindPresentation:
		if r.SlideCount < 1 || r.SlideCount > maxSlides {
			return NewValidationError("slide_count",
				fmt.Sprintf("must be between 1 and %d (got %d)", maxSlides, r.SlideCount))
		}
	case KindAssessment:
		if err := validateQuestionConfigs(r.QuestionTypeConfigs); err != nil {
			return err
		}
	}
	return nil
}

func validateQuestionConfigs(configs []QuestionTypeConfig) error {
	if len(configs) == 0 {
		return NewValidationError("question_type_configs", "at least one question type is required")
	}
	seen := make(map[QuestionType]bool, len(configs))
	for _, c := range configs {
		if !c.Type.IsValid() {
			return NewValidationError("question_type_configs", fmt.Sprintf("unknown question type %q", c.Type))
		}
		if seen[c.Type] {
			return NewValidationError("question_type_configs", fmt.Sprintf("duplicate question type %q", c.Type))
		}
		seen[c.Type] = true
		if c.Count < 1 || c.Count > maxQuestionsPerType {
			return NewValidationError("question_type_configs",
				fmt.Sprintf("%s count must be between 1 and %d (got %d)", c.Type, maxQuestionsPerType, c.Count))
		}
		if c.PointsEach < 1 || c.PointsEach > maxPointsPerQuestion {
			return NewValidationError("question_type_configs",
				fmt.Sprintf("%s points_each must be between 1 and %d (got %d)", c.Type, maxPointsPerQuestion, c.PointsEach))
		}
	}
	return nil
}

// TotalPoints returns the maximum score of an assessment request
func (r *GenerationRequest) TotalPoints() int {
	total := 0
	for _, c := range r.QuestionTypeConfigs {
		total += c.Count * c.PointsEach
	}
	return total
}
