package artifacts

import "github.com/gabormeresz/profAssistant-sub000/internal/types"

// CourseOutline is the structured form of a course outline
type CourseOutline struct {
	Title       string         `json:"title" validate:"required"`
	Description string         `json:"description,omitempty"`
	Classes     []OutlineClass `json:"classes" validate:"required,dive"`
}

// OutlineClass is one class session of an outline
type OutlineClass struct {
	Number     int      `json:"number" validate:"min=1"`
	Title      string   `json:"title" validate:"required"`
	Objectives []string `json:"objectives" validate:"required,min=1,dive,required"`
	Topics     []string `json:"topics" validate:"required,min=1,dive,required"`
}

// LessonPlan is the structured form of a lesson plan
type LessonPlan struct {
	Title           string           `json:"title" validate:"required"`
	DurationMinutes int              `json:"duration_minutes" validate:"min=1"`
	Objectives      []string         `json:"objectives" validate:"required,min=1,dive,required"`
	Activities      []LessonActivity `json:"activities" validate:"required,min=1,dive"`
	Assessment      string           `json:"assessment" validate:"required"`
	Materials       []string         `json:"materials,omitempty"`
}

// LessonActivity is one timed block of a lesson
type LessonActivity struct {
	Name        string `json:"name" validate:"required"`
	Minutes     int    `json:"minutes" validate:"min=1"`
	Description string `json:"description" validate:"required"`
}

// TotalMinutes sums activity durations
func (p *LessonPlan) TotalMinutes() int {
	total := 0
	for _, a := range p.Activities {
		total += a.Minutes
	}
	return total
}

// Presentation is the structured form of a slide deck
type Presentation struct {
	Title  string  `json:"title" validate:"required"`
	Slides []Slide `json:"slides" validate:"required,dive"`
}

// Slide is one slide of a presentation
type Slide struct {
	Title        string   `json:"title" validate:"required"`
	Bullets      []string `json:"bullets" validate:"required,min=1,max=8,dive,required"`
	SpeakerNotes string   `json:"speaker_notes,omitempty"`
}

// Assessment is the structured form of an assessment
type Assessment struct {
	Title    string              `json:"title" validate:"required"`
	Sections []AssessmentSection `json:"sections" validate:"required,dive"`
}

// AssessmentSection groups questions of a single type
type AssessmentSection struct {
	QuestionType types.QuestionType `json:"question_type" validate:"required"`
	Questions    []Question         `json:"questions" validate:"required,dive"`
}

// Question is one assessment item
type Question struct {
	Prompt  string   `json:"prompt" validate:"required"`
	Options []string `json:"options,omitempty"`
	Answer  string   `json:"answer" validate:"required"`
	Points  int      `json:"points" validate:"min=1"`
}

// TotalPoints sums the points of every question
func (a *Assessment) TotalPoints() int {
	total := 0
	for _, s := range a.Sections {
		for _, q := range s.Questions {
			total += q.Points
		}
	}
	return total
}
