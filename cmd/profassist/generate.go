package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gabormeresz/profAssistant-sub000/internal/events"
	"github.com/gabormeresz/profAssistant-sub000/internal/iterative"
	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new artifact",
	Long: `Start a new conversation and generate one artifact.

Examples:
  profassist generate --kind course_outline --topic "Intro to Statistics" --classes 12
  profassist generate --kind lesson_plan --topic "Photosynthesis" --duration 50
  profassist generate --kind presentation --topic "Cell division" --slides 10 --doc notes.txt
  profassist generate --kind assessment --topic "World War I" \
      --question multiple_choice:10:1 --question essay:2:10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := requestFromFlags(cmd)
		if err != nil {
			return err
		}
		quiet, _ := cmd.Flags().GetBool("quiet")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		docs, _ := cmd.Flags().GetStringSlice("doc")
		if len(docs) > 0 {
			req.DocumentSessionID = uuid.New().String()
			if err := a.indexDocuments(req.DocumentSessionID, docs); err != nil {
				return err
			}
		}

		result, err := a.controller.Run(cmd.Context(), req, eventSink(quiet))
		if err != nil {
			return err
		}
		return printResult(result)
	},
}

func init() {
	addGenerateFlags(generateCmd)
	_ = generateCmd.MarkFlagRequired("kind")
	_ = generateCmd.MarkFlagRequired("topic")
	rootCmd.AddCommand(generateCmd)
}

func addGenerateFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("kind", "", "Artifact kind: course_outline, lesson_plan, presentation, assessment")
	flags.String("topic", "", "Topic of the artifact")
	flags.StringSlice("objective", nil, "Learning objective (repeatable)")
	flags.String("language", "", "Output language (default: English)")
	flags.Int("classes", 0, "Number of class sessions (course_outline)")
	flags.Int("slides", 0, "Number of slides (presentation)")
	flags.Int("duration", 0, "Lesson length in minutes (lesson_plan)")
	flags.StringArray("question", nil, "Question section as type:count:points (assessment, repeatable)")
	flags.StringSlice("doc", nil, "Text file the model may search while drafting (repeatable)")
	flags.BoolP("quiet", "q", false, "Only print the final artifact")
}

// requestFromFlags builds a first-call request. Semantic validation is
// left to the controller.
func requestFromFlags(cmd *cobra.Command) (*types.GenerationRequest, error) {
	flags := cmd.Flags()
	kind, _ := flags.GetString("kind")
	topic, _ := flags.GetString("topic")
	objectives, _ := flags.GetStringSlice("objective")
	language, _ := flags.GetString("language")
	classes, _ := flags.GetInt("classes")
	slides, _ := flags.GetInt("slides")
	duration, _ := flags.GetInt("duration")
	questions, _ := flags.GetStringArray("question")

	req := &types.GenerationRequest{
		Kind:            types.ArtifactKind(kind),
		Topic:           topic,
		Objectives:      objectives,
		Language:        language,
		NumberOfClasses: classes,
		SlideCount:      slides,
		DurationMinutes: duration,
	}
	for _, q := range questions {
		qc, err := parseQuestionSpec(q)
		if err != nil {
			return nil, err
		}
		req.QuestionTypeConfigs = append(req.QuestionTypeConfigs, qc)
	}
	return req, nil
}

// parseQuestionSpec parses "type:count:points"
func parseQuestionSpec(spec string) (types.QuestionTypeConfig, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 3 {
		return types.QuestionTypeConfig{}, fmt.Errorf("invalid --question %q: expected type:count:points", spec)
	}
	count, err := strconv.Atoi(parts[1])
	if err != nil {
		return types.QuestionTypeConfig{}, fmt.Errorf("invalid --question %q: count: %w", spec, err)
	}
	points, err := strconv.Atoi(parts[2])
	if err != nil {
		return types.QuestionTypeConfig{}, fmt.Errorf("invalid --question %q: points: %w", spec, err)
	}
	return types.QuestionTypeConfig{
		Type:       types.QuestionType(strings.TrimSpace(parts[0])),
		Count:      count,
		PointsEach: points,
	}, nil
}

// indexDocuments loads text files into the document search index
func (a *app) indexDocuments(sessionID string, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read document: %w", err)
		}
		chunks := a.documents.Add(sessionID, filepath.Base(path), string(data))
		a.logger.Debug("indexed document", slog.String("path", path), slog.Int("chunks", chunks))
	}
	return nil
}

func eventSink(quiet bool) events.Sink {
	if quiet {
		return events.Discard
	}
	return events.SinkFunc(func(e *events.Event) {
		displayEvent(os.Stderr, e)
	})
}

// printResult writes the artifact JSON to stdout and a summary to stderr
func printResult(result *iterative.TurnResult) error {
	var out bytes.Buffer
	if err := json.Indent(&out, result.ArtifactJSON, "", "  "); err != nil {
		return fmt.Errorf("failed to format artifact: %w", err)
	}
	fmt.Println(out.String())

	green := color.New(color.FgGreen).SprintFunc()
	score := "n/a"
	if result.Score != nil {
		score = fmt.Sprintf("%.2f", *result.Score)
	}
	fmt.Fprintf(os.Stderr, "\n%s thread %s, turn %d: score %s after %d evaluation(s) (%s) in %s\n",
		green("✓"), result.ThreadID, result.Turn, score, result.EvaluationCount,
		result.ExitReason, result.Duration.Round(time.Millisecond))
	return nil
}
