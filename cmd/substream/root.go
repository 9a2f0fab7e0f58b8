package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"substream/config"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	var configFlag string
	var verboseFlag bool

	var settings config.Settings

	rootCmd := &cobra.Command{
		Use:           "substream",
		Short:         "Subtitle discovery and conversion toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			mgr := config.NewManager(configFlag)
			if err := mgr.EnsureDir(); err != nil {
				return fmt.Errorf("prepare config dir: %w", err)
			}
			s, err := mgr.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			settings = s
			setupLogging(settings.Log, verboseFlag)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "substream.json", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log debug detail to stderr")

	rootCmd.AddCommand(newConvertCommand(&settings))
	rootCmd.AddCommand(newProbeCommand(&settings))
	rootCmd.AddCommand(newCacheCommand(&settings))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// setupLogging routes logrus to a rotated file, mirroring warnings and
// above (everything with -v) to stderr.
func setupLogging(cfg config.LogConfig, verbose bool) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if verbose {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var out io.Writer = os.Stderr
	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		if verbose {
			out = io.MultiWriter(rotated, os.Stderr)
		} else {
			out = rotated
		}
	}
	logrus.SetOutput(out)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "substream "+strings.TrimSpace(version))
		},
	}
}
