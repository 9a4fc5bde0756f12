package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"codeberg.org/snonux/clarity/internal"
	"codeberg.org/snonux/clarity/internal/cli"
	"codeberg.org/snonux/clarity/internal/history"
	"codeberg.org/snonux/clarity/internal/processor"
	"codeberg.org/snonux/clarity/internal/server"
	"codeberg.org/snonux/clarity/internal/speech"
)

func addSubcommands(rootCmd *cobra.Command, flags *cli.Flags) {
	serveFlags := cli.NewServeFlags()
	serveCmd := cli.CreateServeCommand(serveFlags)
	serveCmd.RunE = func(cmd *cobra.Command, args []string) error {
		cli.ApplyServeConfig(serveFlags)
		return runServe(cmd, flags, serveFlags)
	}

	voicesCmd := cli.CreateVoicesCommand()
	voicesCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runVoices(cmd, flags)
	}

	historyFlags := &cli.HistoryFlags{}
	historyCmd := cli.CreateHistoryCommand(historyFlags)
	historyCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runHistory(cmd, args, flags, historyFlags)
	}

	cacheCmd, statsCmd, clearCmd := cli.CreateCacheCommand()
	statsCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runCacheStats(flags)
	}
	clearCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runCacheClear(flags)
	}

	rootCmd.AddCommand(serveCmd, voicesCmd, historyCmd, cacheCmd)
}

func runServe(cmd *cobra.Command, flags *cli.Flags, serveFlags *cli.ServeFlags) error {
	ctx := cmd.Context()

	creds, err := cli.LoadCredentials()
	if err != nil {
		return err
	}

	c, err := processor.Build(ctx, flags, creds)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Warn("Failed to close resources", "err", err)
		}
	}()

	proc := processor.New(c.Pipeline, flags.OutputDir, processor.WithHistory(c.History))
	srv := server.New(server.Config{
		Addr:          serveFlags.Addr,
		AllowedOrigin: serveFlags.AllowedOrigin,
		MaxRenders:    serveFlags.MaxRenders,
		SpeechDir:     filepath.Join(flags.OutputDir, "speech"),
	}, proc, c.Speech)

	return srv.ListenAndServe(ctx)
}

func runVoices(cmd *cobra.Command, flags *cli.Flags) error {
	creds, err := cli.LoadCredentials()
	if err != nil {
		return err
	}

	provider, err := speech.NewProvider(processor.SpeechConfig(flags, creds))
	if err != nil {
		return err
	}

	switch p := provider.(type) {
	case *speech.ElevenLabs:
		voices, err := p.ListVoices(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VOICE ID\tNAME\tCATEGORY\tPRESET")
		for _, v := range voices {
			preset := ""
			if slices.Contains(speech.PresetVoiceIDs, v.ID) {
				preset = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.ID, v.Name, v.Category, preset)
		}
		return w.Flush()

	case *speech.OpenAI:
		fmt.Println("OpenAI voices:")
		for _, v := range speech.OpenAIVoices {
			fmt.Printf("  %s\n", v)
		}
		return nil

	default:
		fmt.Printf("%s does not list voices; pass one with --voice\n", provider.Name())
		return nil
	}
}

func openHistory(flags *cli.Flags) (*history.Store, error) {
	path := flags.HistoryDB
	if path == "" {
		paths, err := cli.DefaultPaths()
		if err != nil {
			return nil, err
		}
		path = paths.HistoryDB
	}
	return history.Open(path)
}

func runHistory(cmd *cobra.Command, args []string, flags *cli.Flags, historyFlags *cli.HistoryFlags) error {
	store, err := openHistory(flags)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) == 1 {
		run, err := store.Get(cmd.Context(), args[0])
		if errors.Is(err, history.ErrNotFound) {
			return fmt.Errorf("no run with id %s", args[0])
		}
		if err != nil {
			return err
		}
		printRun(run)
		return nil
	}

	runs, err := store.Recent(cmd.Context(), historyFlags.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tSTATUS\tATTEMPTS\tTOOK\tQUESTION")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, humanize.Time(r.StartedAt), r.Status, r.Attempts,
			r.Duration().Round(time.Second), internal.Truncate(r.Query, 50))
	}
	return w.Flush()
}

func printRun(r *history.Run) {
	fmt.Printf("ID:       %s\n", r.ID)
	fmt.Printf("Question: %s\n", r.Query)
	fmt.Printf("Status:   %s\n", r.Status)
	fmt.Printf("Attempts: %d\n", r.Attempts)
	fmt.Printf("Started:  %s (%s)\n", r.StartedAt.Local().Format(time.DateTime), humanize.Time(r.StartedAt))
	if r.FinishedAt != nil {
		fmt.Printf("Took:     %s\n", r.Duration().Round(time.Millisecond))
	}
	if r.VideoPath != "" {
		fmt.Printf("Video:    %s\n", r.VideoPath)
	}
	if r.Error != "" {
		fmt.Printf("Error:    %s\n", r.Error)
	}
}

func openCache(flags *cli.Flags) (*speech.Cache, error) {
	dir := flags.CacheDir
	if dir == "" {
		paths, err := cli.DefaultPaths()
		if err != nil {
			return nil, err
		}
		dir = paths.CacheDir
	}
	return speech.OpenCache(dir)
}

func runCacheStats(flags *cli.Flags) error {
	cache, err := openCache(flags)
	if err != nil {
		return err
	}
	defer cache.Close()

	stats, err := cache.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", cache.Dir(), stats)
	return nil
}

func runCacheClear(flags *cli.Flags) error {
	cache, err := openCache(flags)
	if err != nil {
		return err
	}
	defer cache.Close()

	if err := cache.Clear(); err != nil {
		return err
	}
	fmt.Printf("Cleared narration cache in %s\n", cache.Dir())
	return nil
}
