package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "profassist.yaml"

var rootCmd = &cobra.Command{
	Use:   "profassist",
	Short: "Generate course outlines, lesson plans, slides and assessments",
	Long: `profassist drafts educational artifacts with a language model, scores each
draft against a rubric, and refines it until it is approved, stops improving,
or runs out of retries. The result is validated against the requested
structure before it is printed.

Conversations are checkpointed, so an artifact can be revised later with
follow-up requests (see 'profassist chat').`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to config file (default: ./"+defaultConfigFile+" if present)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("storage", "", "Checkpoint backend: memory, sqlite, badger")
	flags.String("db", "", "Checkpoint database file (sqlite) or directory (badger)")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	flags.String("provider", "", "Model provider: anthropic, openai")
	flags.String("model", "", "Model id")
	flags.Bool("no-wait", false, "Fail instead of waiting when the conversation is busy")
}

func main() {
	// Cancel in-flight turns on Ctrl+C; the prior checkpoint stays intact
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		stop()
		os.Exit(1)
	}
}
