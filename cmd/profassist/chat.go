package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Revise an artifact with follow-up requests",
	Long: `Open an interactive session on an existing conversation. Every line you
enter is sent as a follow-up request; the revised artifact is printed when
the turn finishes.

Commands:
  /show   print the current artifact
  /quit   leave the session (Ctrl+D works too)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		threadID, _ := cmd.Flags().GetString("thread")
		quiet, _ := cmd.Flags().GetBool("quiet")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		state, err := a.store.Load(cmd.Context(), threadID)
		if errors.Is(err, types.ErrThreadNotFound) {
			return fmt.Errorf("no conversation with id %s", threadID)
		}
		if err != nil {
			return fmt.Errorf("failed to load conversation: %w", err)
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		rl, err := readline.NewEx(&readline.Config{
			Prompt:            cyan("profassist> "),
			InterruptPrompt:   "^C",
			EOFPrompt:         "exit",
			HistorySearchFold: true,
		})
		if err != nil {
			return fmt.Errorf("failed to create readline: %w", err)
		}
		defer rl.Close()

		fmt.Printf("Revising %s %s (turn %d). Type /quit to leave.\n", state.Kind, threadID, state.Turn)

		for {
			line, err := rl.Readline()
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			} else if errors.Is(err, io.EOF) {
				fmt.Println("\nGoodbye!")
				return nil
			} else if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			line = strings.TrimSpace(line)
			switch line {
			case "":
				continue
			case "/quit", "/exit":
				fmt.Println("Goodbye!")
				return nil
			case "/show":
				if err := showThread(cmd, a, threadID); err != nil {
					printError(err)
				}
				continue
			}

			req := &types.GenerationRequest{ThreadID: threadID, Kind: state.Kind, Message: line}
			result, err := a.controller.Run(cmd.Context(), req, eventSink(quiet))
			if err != nil {
				printError(err)
				if cmd.Context().Err() != nil {
					return nil
				}
				continue
			}
			if err := printResult(result); err != nil {
				printError(err)
			}
		}
	},
}

func init() {
	chatCmd.Flags().StringP("thread", "t", "", "Conversation id")
	chatCmd.Flags().BoolP("quiet", "q", false, "Hide progress events")
	_ = chatCmd.MarkFlagRequired("thread")
	rootCmd.AddCommand(chatCmd)
}

// printError shows the generic message for err; details go to the log
func printError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Printf("%s %s\n", red("✗"), types.UserMessage(types.KindOf(err)))
}
