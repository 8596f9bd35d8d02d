package rubric

import (
	"fmt"

	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

// CourseOutline scores course outlines
func CourseOutline() *Rubric {
	return &Rubric{Kind: types.KindCourseOutline, Dimensions: []Dimension{
		{Name: "learning_objectives", Weight: 0.20, Description: "Objectives are specific, measurable and covered by the classes"},
		{Name: "structure", Weight: 0.35, Description: "Exactly the requested number of classes, each with a title, objectives and topics", Structural: true},
		{Name: "progression", Weight: 0.15, Description: "Topics build on each other in a sensible order"},
		{Name: "content_depth", Weight: 0.15, Description: "Topics are substantive and appropriate for the level"},
		{Name: "clarity", Weight: 0.15, Description: "Titles and descriptions are concise and unambiguous"},
	}}
}

// LessonPlan scores lesson plans
func LessonPlan() *Rubric {
	return &Rubric{Kind: types.KindLessonPlan, Dimensions: []Dimension{
		{Name: "objective_alignment", Weight: 0.20, Description: "Activities serve the stated learning objectives"},
		{Name: "structure", Weight: 0.35, Description: "Activity timings add up to the requested duration", Structural: true},
		{Name: "engagement", Weight: 0.15, Description: "Activities are varied and actively involve students"},
		{Name: "assessment_strategy", Weight: 0.15, Description: "The plan checks whether objectives were met"},
		{Name: "clarity", Weight: 0.15, Description: "Instructions are concrete enough to teach from"},
	}}
}

// Presentation scores slide decks
func Presentation() *Rubric {
	return &Rubric{Kind: types.KindPresentation, Dimensions: []Dimension{
		{Name: "content_accuracy", Weight: 0.20, Description: "Statements are correct and sourced where needed"},
		{Name: "structure", Weight: 0.35, Description: "Exactly the requested number of slides in a logical order", Structural: true},
		{Name: "objective_alignment", Weight: 0.15, Description: "Slides serve the stated learning objectives"},
		{Name: "visual_clarity", Weight: 0.15, Description: "Bullets are short and slides are not overloaded"},
		{Name: "speaker_notes", Weight: 0.15, Description: "Notes add explanation beyond the bullets"},
	}}
}

// Assessment scores assessments
func Assessment() *Rubric {
	return &Rubric{Kind: types.KindAssessment, Dimensions: []Dimension{
		{Name: "structural_compliance", Weight: 0.35, Description: "Exactly the requested question types, counts and points", Structural: true},
		{Name: "question_quality", Weight: 0.20, Description: "Questions are unambiguous and have one defensible answer"},
		{Name: "objective_alignment", Weight: 0.20, Description: "Questions measure the stated learning objectives"},
		{Name: "difficulty_balance", Weight: 0.15, Description: "A sensible spread of difficulty"},
		{Name: "answer_key", Weight: 0.10, Description: "Every question has a correct, complete answer"},
	}}
}

// ForKind returns the built-in rubric for an artifact kind
func ForKind(kind types.ArtifactKind) (*Rubric, error) {
	switch kind {
	case types.KindCourseOutline:
		return CourseOutline(), nil
	case types.KindLessonPlan:
		return LessonPlan(), nil
	case types.KindPresentation:
		return Presentation(), nil
	case types.KindAssessment:
		return Assessment(), nil
	default:
		return nil, fmt.Errorf("no rubric for artifact kind %q", kind)
	}
}
