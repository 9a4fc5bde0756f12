package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"codeberg.org/snonux/clarity/internal/archive"
	"codeberg.org/snonux/clarity/internal/cli"
	"codeberg.org/snonux/clarity/internal/logging"
	"codeberg.org/snonux/clarity/internal/models"
	"codeberg.org/snonux/clarity/internal/processor"
)

func main() {
	// Create flags instance
	flags := cli.NewFlags()

	// Create root command
	rootCmd := cli.CreateRootCommand(flags)

	var closeLog func() error
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cli.ApplyConfig(flags)
		var err error
		closeLog, err = logging.Setup(logging.Options{Level: flags.LogLevel, File: flags.LogFile})
		return err
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if closeLog != nil {
			return closeLog()
		}
		return nil
	}

	// Set up command initialization
	cobra.OnInitialize(func() {
		cli.InitConfig(flags.CfgFile)
	})

	// Set the run function
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, args, flags)
	}

	addSubcommands(rootCmd, flags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Execute command
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func runCommand(cmd *cobra.Command, args []string, flags *cli.Flags) error {
	ctx := cmd.Context()

	// Handle --archive flag
	if flags.Archive {
		result, err := archive.ArchiveOutputs(flags.OutputDir)
		if err != nil {
			return fmt.Errorf("failed to archive outputs: %w", err)
		}
		fmt.Printf("Output directory archived to: %s\n", result)
		return nil
	}

	creds, err := cli.LoadCredentials()
	if err != nil {
		return err
	}

	// Handle --list-models flag
	if flags.ListModels {
		lister, err := models.NewLister(ctx, processor.LLMConfig(flags, creds))
		if err != nil {
			return err
		}
		return lister.ListAvailableModels(ctx)
	}

	if flags.BatchFile == "" && len(args) == 0 {
		return cmd.Help()
	}

	// Create processor
	proc, err := processor.NewProcessor(ctx, flags, creds)
	if err != nil {
		return err
	}
	defer func() {
		if err := proc.Close(); err != nil {
			log.Warn("Failed to close resources", "err", err)
		}
	}()

	// Handle batch processing
	if flags.BatchFile != "" {
		summary, err := proc.ProcessBatch(ctx, flags.BatchFile)
		if err != nil {
			return err
		}
		if summary.Failed > 0 {
			return fmt.Errorf("%d of %d questions failed", summary.Failed, summary.Total)
		}
		fmt.Printf("\nDone! Videos saved to: %s\n", flags.OutputDir)
		return nil
	}

	artifact, err := proc.ProcessSingle(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("\nVideo: %s\n", artifact.VideoPath)
	fmt.Printf("Description:\n%s\n", artifact.Description)
	return nil
}
