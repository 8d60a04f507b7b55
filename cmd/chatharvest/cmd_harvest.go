package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chatharvest/internal/browser"
	"chatharvest/internal/harvest"
	"chatharvest/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Collect the most recent messages and print them",
	Long: `Scrolls the conversation list toward older messages until the requested number
of messages has been collected, the pass budget runs out, or scrolling stops
revealing anything new. Messages are printed oldest first as "Sender: Content".`,
	RunE: runHarvestCmd,
}

func registerHarvestFlags(cmd *cobra.Command) {
	cmd.Flags().Int("count", 0, "Number of messages to collect (default from config)")
	cmd.Flags().Int("wheel", 0, "Wheel notches per scroll (default from config)")
	cmd.Flags().Duration("pause", 0, "Settle pause after each scroll (default from config)")
	cmd.Flags().Int("passes", 0, "Maximum scroll passes (default from config)")
	cmd.Flags().Int("no-progress", 0, "Stop after this many passes without new messages (default from config)")
}

// applyHarvestFlags overlays explicitly set flags onto the loaded config.
func applyHarvestFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("count") {
		cfg.Harvest.TargetCount, _ = f.GetInt("count")
	}
	if f.Changed("wheel") {
		cfg.Harvest.WheelDistance, _ = f.GetInt("wheel")
	}
	if f.Changed("pause") {
		d, _ := f.GetDuration("pause")
		cfg.Harvest.SettlePause = d.String()
	}
	if f.Changed("passes") {
		cfg.Harvest.MaxPasses, _ = f.GetInt("passes")
	}
	if f.Changed("no-progress") {
		cfg.Harvest.NoProgressLimit, _ = f.GetInt("no-progress")
	}
}

func runHarvestCmd(cmd *cobra.Command, args []string) error {
	applyHarvestFlags(cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	res, err := collect(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTranscript(res.Records))
	fmt.Fprintln(cmd.ErrOrStderr(), renderStats(res))
	return nil
}

// interruptContext is cancelled on SIGINT/SIGTERM.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// signalContext is interruptContext bounded by --timeout.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, stop := interruptContext()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// collect attaches to the running browser and runs one harvest session.
func collect(ctx context.Context) (*harvest.Result, error) {
	browserLog := logging.For(logger, cfg.Logging, logging.CategoryBrowser)

	bcfg := cfg.Browser
	if bcfg.DebuggerURL == "" {
		url, err := readControlFile(controlFilePath())
		if err != nil {
			return nil, err
		}
		bcfg.DebuggerURL = url
		browserLog.Debug("using launched browser", zap.String("url", url))
	}

	mgr := browser.NewSessionManager(bcfg, browserLog)
	if err := mgr.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer func() {
		if err := mgr.Shutdown(context.Background()); err != nil {
			browserLog.Warn("browser shutdown failed", zap.Error(err))
		}
	}()

	conv, err := browser.NewConversation(mgr)
	if err != nil {
		return nil, err
	}

	opts := cfg.Harvest.Options()
	opts.Logger = logging.For(logger, cfg.Logging, logging.CategoryHarvest)
	res, err := harvest.New(conv, opts).Harvest(ctx, cfg.Harvest.Request())
	if err != nil {
		var f *harvest.Failure
		if errors.As(err, &f) && errors.Is(err, harvest.ErrConnectionLost) {
			return nil, fmt.Errorf("%w (is the chat tab still open?)", err)
		}
		return nil, err
	}
	return res, nil
}

func readControlFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no browser configured: set browser.debugger_url or run 'chatharvest browser launch'")
		}
		return "", fmt.Errorf("failed to read browser control file: %w", err)
	}
	url := strings.TrimSpace(string(data))
	if url == "" {
		return "", fmt.Errorf("browser control file %s is empty", path)
	}
	return url, nil
}
