package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/contre95/usbdeck/src/features/copying"
	"github.com/contre95/usbdeck/src/infra/database"
	"github.com/contre95/usbdeck/src/infra/tag"
	"github.com/contre95/usbdeck/src/music"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
)

func copyCommand() *cli.Command {
	return &cli.Command{
		Name:      "copy",
		Usage:     "Copy a playlist to a USB stick, one folder per destination. Ctrl+C cancels",
		ArgsUsage: "<playlist.m3u>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "usb", Aliases: []string{"u"}, Usage: "USB root to copy to, defaults to usb.root"},
			&cli.StringFlag{Name: "album", Usage: "Album tag to write on every copy"},
			&cli.StringFlag{Name: "genre", Usage: "Genre tag to write on every copy"},
			&cli.StringFlag{Name: "comment", Usage: "Comment tag (accepted, not written)"},
			&cli.StringFlag{Name: "cover", Usage: "Image to embed as front cover"},
		},
		Action: runCopy,
	}
}

func runCopy(ctx context.Context, cmd *cli.Command) error {
	cfgManager, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg := cfgManager.Get()
	path, _, err := playlistArgs(cmd, 0)
	if err != nil {
		return err
	}
	_, pl, err := openPlaylist(path)
	if err != nil {
		return err
	}

	usbRoot := cmd.String("usb")
	if usbRoot == "" {
		usbRoot = cfg.USB.Root
	}
	if usbRoot == "" {
		return fmt.Errorf("no USB root given, use --usb or set usb.root")
	}
	patch := music.MetadataPatch{
		Album:     cmd.String("album"),
		Genre:     cmd.String("genre"),
		Comment:   cmd.String("comment"),
		CoverPath: cmd.String("cover"),
	}

	job := copying.NewCopyJob(pl.Snapshot(), usbRoot, patch, tag.NewTagWriter(cfgManager), copying.Options{
		PollInterval:   cfgManager.PollInterval(),
		EventBuffer:    cfg.Jobs.EventBuffer,
		BytesPerSecond: cfg.USB.BandwidthLimit,
		FATSafeNames:   cfg.USB.FATSafeNames,
		ASCIINames:     cfg.USB.ASCIINames,
		Logger:         slog.Default(),
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	startedAt := time.Now()
	if err := job.Start(ctx); err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(pl.Songs),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Copying"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
	go func() {
		select {
		case <-ctx.Done():
			job.RequestCancel()
		case <-job.Done():
		}
	}()

	for p := range job.Events() {
		bar.Describe(filepath.Base(p.SourcePath))
		bar.Set(p.Index - 1)
	}
	res := job.Result()
	if res.Status == copying.StatusSucceeded {
		bar.Finish()
	} else {
		fmt.Fprintln(os.Stderr)
	}

	state := job.State()
	copied := state.CurrentIndex - 1
	if res.Status == copying.StatusSucceeded {
		copied = state.Total
	}
	recordCopy(cfg.Database.Path, music.CopyRecord{
		ID:         uuid.New().String(),
		Name:       filepath.Base(path),
		USBRoot:    usbRoot,
		Status:     string(res.Status),
		Copied:     max(copied, 0),
		Total:      state.Total,
		Error:      res.Message,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	})

	switch res.Status {
	case copying.StatusSucceeded:
		fmt.Printf("Copied %d songs to %s in %s\n", state.Total, usbRoot, time.Since(startedAt).Round(time.Second))
		if state.LastError != "" {
			fmt.Printf("Some tags could not be written, last error: %s\n", state.LastError)
		}
		return nil
	case copying.StatusCancelled:
		fmt.Printf("Cancelled after %d of %d songs\n", max(copied, 0), state.Total)
		return nil
	default:
		return fmt.Errorf("copy failed: %s", res.Message)
	}
}

// recordCopy stores the outcome in the job history. Failures only warn, the copy already happened.
func recordCopy(dbPath string, record music.CopyRecord) {
	if dbPath == "" {
		return
	}
	db, err := database.NewSqliteHistory(dbPath)
	if err != nil {
		slog.Warn("Failed to open job history", "path", dbPath, "error", err)
		return
	}
	defer db.Close()
	if err := db.Record(context.Background(), record); err != nil {
		slog.Warn("Failed to record copy job", "error", err)
	}
}
