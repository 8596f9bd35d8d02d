package main

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the turns of a conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		threadID, _ := cmd.Flags().GetString("thread")

		a, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		turns, err := a.store.ListTurns(cmd.Context(), threadID)
		if err != nil {
			return fmt.Errorf("failed to list turns: %w", err)
		}
		if len(turns) == 0 {
			fmt.Printf("No turns recorded for %s\n", threadID)
			return nil
		}
		fmt.Print(formatTurns(turns))
		return nil
	},
}

func init() {
	historyCmd.Flags().StringP("thread", "t", "", "Conversation id")
	_ = historyCmd.MarkFlagRequired("thread")
	rootCmd.AddCommand(historyCmd)
}

// formatTurns renders turn records as an aligned table
func formatTurns(turns []types.TurnRecord) string {
	var b bytes.Buffer
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TURN\tSCORE\tEVALS\tEXIT\tSTATUS\tDURATION\tCOMPLETED")
	for _, r := range turns {
		status := "ok"
		if r.ErrorKind != "" {
			status = string(r.ErrorKind)
		}
		exit := r.ExitReason
		if exit == "" {
			exit = "-"
		}
		fmt.Fprintf(w, "%d\t%.2f\t%d\t%s\t%s\t%s\t%s\n",
			r.Turn, r.Score, r.EvaluationCount, exit, status,
			formatDuration(r.Duration()), r.CompletedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
	return b.String()
}
