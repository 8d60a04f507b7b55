package main

import (
	"context"
	"fmt"

	"chatharvest/internal/digest"
	"chatharvest/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var assistCmd = &cobra.Command{
	Use:   "assist",
	Short: "Collect recent messages, then summarize them and suggest replies",
	Long: `Runs a harvest and sends the transcript to the configured language model.

Modes:
  summarize  one-paragraph summary of the collected messages
  reply      three reply options for the newest --reply-window messages
  both       both of the above (default)`,
	RunE: runAssistCmd,
}

func registerAssistFlags(cmd *cobra.Command) {
	cmd.Flags().String("mode", "", "summarize, reply or both (default from config)")
	cmd.Flags().String("user", "", "Your display name in the chat (default from config)")
	cmd.Flags().Int("reply-window", 0, "Newest messages considered for replies (default from config)")
	cmd.Flags().Int("summary-window", 0, "Newest messages considered for the summary; 0 = all")
}

func applyAssistFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("mode") {
		cfg.Assist.Mode, _ = f.GetString("mode")
	}
	if f.Changed("user") {
		cfg.Assist.UserID, _ = f.GetString("user")
	}
	if f.Changed("reply-window") {
		cfg.Assist.ReplyWindow, _ = f.GetInt("reply-window")
	}
	if f.Changed("summary-window") {
		cfg.Assist.SummaryWindow, _ = f.GetInt("summary-window")
	}
}

func runAssistCmd(cmd *cobra.Command, args []string) error {
	applyHarvestFlags(cmd)
	applyAssistFlags(cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateLLM(); err != nil {
		return err
	}

	digestLog := logging.For(logger, cfg.Logging, logging.CategoryDigest)
	completer, err := digest.NewCompleter(context.Background(), cfg.LLM, digestLog)
	if err != nil {
		return err
	}

	harvestCtx, cancel := signalContext()
	res, err := collect(harvestCtx)
	cancel()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), renderStats(res))

	// --timeout bounds the harvest only; the model client has its own per-request timeout.
	ctx, stop := interruptContext()
	defer stop()
	out, err := digest.NewAssistant(completer, digestLog).Assist(ctx, res.Records, digestRequest())
	if err != nil {
		return fmt.Errorf("assist failed: %w", err)
	}
	digestLog.Info("assist complete",
		zap.String("mode", cfg.Assist.Mode),
		zap.Int("records", len(res.Records)),
		zap.Int("replies", len(out.Replies)))

	fmt.Fprintln(cmd.OutOrStdout(), renderDigest(out))
	return nil
}

func digestRequest() digest.Request {
	return digest.Request{
		Mode:          cfg.Assist.Mode,
		UserID:        cfg.Assist.UserID,
		ReplyWindow:   cfg.Assist.ReplyWindow,
		SummaryWindow: cfg.Assist.SummaryWindow,
	}
}
