// Package cmd provides the forum's command-line interface.
package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/jacobshu/forum/internal/bootstrap"
	"github.com/jacobshu/forum/internal/config"
	"github.com/jacobshu/forum/internal/core"
	"github.com/jacobshu/forum/internal/logger"
	"github.com/spf13/cobra"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	infoColor    = color.New(color.FgCyan)
)

var noColor bool

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "forum",
		Short:         "A small discussion forum",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	root.AddCommand(newServeCmd())
	root.AddCommand(newDBCmd())
	return root
}

// Execute runs the root command against the process arguments.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadApp reads the environment and builds an application. The returned
// closer releases the application and the log file.
func loadApp() (*core.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	log, sink, err := logger.New(logger.Options{
		File:         cfg.LogFile,
		MaxSizeMB:    cfg.LogMaxSizeMB,
		MaxBackups:   cfg.LogMaxBackups,
		MaxAgeDays:   cfg.LogMaxAgeDays,
		ConsoleLevel: level,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	app, err := bootstrap.CreateApp(cfg, log)
	if err != nil {
		_ = sink.Close()
		return nil, nil, err
	}
	return app, closeAll(app, sink), nil
}

func closeAll(app *core.App, sink io.Closer) func() {
	return func() {
		if err := app.Close(); err != nil {
			app.Log.Warn("Failed to close database", "error", err)
		}
		_ = sink.Close()
	}
}
