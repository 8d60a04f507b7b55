package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"chatharvest/internal/browser"
	"chatharvest/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// defaultControlFile is relative to the working directory.
var defaultControlFile = filepath.Join(".chatharvest", "browser", "control.txt")

var browserCmd = &cobra.Command{
	Use:   "browser",
	Short: "Manage the Chrome instance chatharvest attaches to",
}

var browserLaunchCmd = &cobra.Command{
	Use:   "launch [url]",
	Short: "Launch Chrome, optionally open the chat app, and keep it running",
	Long: `Launches a Chrome instance and records its DevTools URL in the control file so
later harvest and assist runs attach to it. Log in to the chat app in the opened
window, then run 'chatharvest harvest' from another terminal.

Example:
  chatharvest browser launch https://wx.qq.com`,
	Args: cobra.MaximumNArgs(1),
	RunE: browserLaunch,
}

func controlFilePath() string {
	if cfg != nil && cfg.Browser.ControlFile != "" {
		return cfg.Browser.ControlFile
	}
	return defaultControlFile
}

func browserLaunch(cmd *cobra.Command, args []string) error {
	log := logging.For(logger, cfg.Logging, logging.CategoryBrowser)
	log.Info("Launching browser")

	bcfg := cfg.Browser
	bcfg.DebuggerURL = ""
	mgr := browser.NewSessionManager(bcfg, log)

	ctx, stop := interruptContext()
	defer stop()

	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	defer func() {
		if err := mgr.Shutdown(context.Background()); err != nil {
			log.Warn("failed to shutdown browser", zap.Error(err))
		}
	}()

	if len(args) == 1 {
		if _, err := mgr.OpenPage(ctx, args[0]); err != nil {
			return err
		}
	}

	controlFile := controlFilePath()
	if err := writeControlFile(controlFile, mgr.ControlURL()); err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(controlFile); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove browser control file", zap.Error(err))
		}
	}()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Browser launched. Control URL: %s\n", mgr.ControlURL())
	fmt.Fprintf(out, "Control file: %s\n", controlFile)
	fmt.Fprintln(out, "Press Ctrl+C to shutdown")

	<-ctx.Done()
	return nil
}

func writeControlFile(path, url string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create control file directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(url), 0o644); err != nil {
		return fmt.Errorf("failed to write browser control file: %w", err)
	}
	return nil
}
