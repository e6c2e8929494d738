package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/NamanBalaji/bsfetch/internal/config"
	"github.com/NamanBalaji/bsfetch/internal/download"
	"github.com/NamanBalaji/bsfetch/internal/logger"
)

var (
	debug       bool
	configPath  string
	outputDir   string
	chunkSize   int64
	retries     int
	concurrency int

	cfg *config.Config
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "bsfetch",
	Short:         "bsfetch downloads platform files in parallel chunks",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath != "" {
			cfg, err = config.Load(configPath)
		} else {
			cfg, err = config.GetConfig()
		}
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}

		if err := logger.InitLogging(debug, cfg.LogPath); err != nil {
			return err
		}

		applyFlagOverrides(cmd)

		return cfg.Validate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default "+config.Path()+")")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "Output directory")
	rootCmd.PersistentFlags().Int64Var(&chunkSize, "chunk-size", 0, "Chunk size in bytes")
	rootCmd.PersistentFlags().IntVar(&retries, "retries", 0, "Retries per chunk")
	rootCmd.PersistentFlags().IntVarP(&concurrency, "concurrency", "c", 0, "Maximum chunks in flight")

	rootCmd.AddCommand(downloadCmd, s3Cmd, historyCmd)
}

func applyFlagOverrides(cmd *cobra.Command) {
	flags := cmd.Flags()

	if flags.Changed("output") {
		cfg.DownloadDir = outputDir
	}

	if flags.Changed("chunk-size") {
		cfg.FileMultipartSizeThreshold = chunkSize
	}

	if flags.Changed("retries") {
		cfg.RetryAttempts = retries
	}

	if flags.Changed("concurrency") {
		cfg.MaxConcurrency = concurrency
	}
}

func settings() download.Settings {
	return download.SettingsFromConfig(cfg)
}

// Execute runs the root command. Ctrl-C cancels in-progress transfers; chunks
// already in flight are allowed to finish.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(err.Error())
		stop()
		os.Exit(1)
	}
}
