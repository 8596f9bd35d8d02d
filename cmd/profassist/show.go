package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a conversation checkpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		threadID, _ := cmd.Flags().GetString("thread")

		a, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return showThread(cmd, a, threadID)
	},
}

func init() {
	showCmd.Flags().StringP("thread", "t", "", "Conversation id")
	_ = showCmd.MarkFlagRequired("thread")
	rootCmd.AddCommand(showCmd)
}

func showThread(cmd *cobra.Command, a *app, threadID string) error {
	state, err := a.store.Load(cmd.Context(), threadID)
	if errors.Is(err, types.ErrThreadNotFound) {
		return fmt.Errorf("no conversation with id %s", threadID)
	}
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}
	fmt.Print(formatCheckpoint(state))
	return nil
}

// formatCheckpoint renders a checkpoint summary followed by the artifact
func formatCheckpoint(state *types.ConversationState) string {
	var b bytes.Buffer
	bold := color.New(color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(&b, "%s %s\n", bold("Thread:"), state.ThreadID)
	fmt.Fprintf(&b, "%s %s\n", bold("Kind:"), state.Kind)
	if state.Request != nil {
		fmt.Fprintf(&b, "%s %s\n", bold("Topic:"), state.Request.Topic)
	}
	fmt.Fprintf(&b, "%s %d\n", bold("Turn:"), state.Turn)
	fmt.Fprintf(&b, "%s %d\n", bold("Evaluations:"), state.EvaluationCount)
	if state.CurrentScore != nil {
		fmt.Fprintf(&b, "%s %.2f\n", bold("Score:"), *state.CurrentScore)
	}
	fmt.Fprintf(&b, "%s %s\n", bold("Updated:"), state.UpdatedAt.Local().Format("2006-01-02 15:04:05"))

	if last := state.LastEvaluation(); last != nil {
		verdict := color.New(color.FgYellow).Sprint("needs refinement")
		if last.Approved() {
			verdict = color.New(color.FgGreen).Sprint("approved")
		}
		fmt.Fprintf(&b, "%s %s (round %d)\n", bold("Verdict:"), verdict, last.Round)
		if last.Reasoning != "" {
			fmt.Fprintf(&b, "%s %s\n", bold("Feedback:"), gray(last.Reasoning))
		}
	}
	if state.Error != "" {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(&b, "%s %s\n", bold("Last turn failed:"), red(types.UserMessage(types.ErrorKindExtraction)))
	}

	if len(state.FinalArtifact) > 0 {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, state.FinalArtifact, "", "  "); err != nil {
			pretty.Reset()
			pretty.Write(state.FinalArtifact)
		}
		fmt.Fprintf(&b, "\n%s\n", pretty.String())
	}
	return b.String()
}
