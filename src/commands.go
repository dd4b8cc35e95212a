package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/contre95/usbdeck/src/features/config"
	"github.com/contre95/usbdeck/src/features/logging"
	"github.com/contre95/usbdeck/src/features/playlists"
	"github.com/contre95/usbdeck/src/infra/database"
	"github.com/contre95/usbdeck/src/infra/devices"
	"github.com/contre95/usbdeck/src/infra/playlist"
	"github.com/contre95/usbdeck/src/infra/tag"
	"github.com/contre95/usbdeck/src/music"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"
)

// loadConfig reads the --config file and installs the process logger.
func loadConfig(cmd *cli.Command) (*config.Manager, error) {
	cfgManager, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.SetDefault(logging.SetupLogger(cfgManager))
	return cfgManager, nil
}

// playlistArgs returns the playlist path and the remaining arguments, requiring at least min of them.
func playlistArgs(cmd *cli.Command, min int) (string, []string, error) {
	args := cmd.Args().Slice()
	if len(args) < 1+min {
		return "", nil, fmt.Errorf("usage: %s %s", cmd.FullName(), cmd.ArgsUsage)
	}
	return args[0], args[1:], nil
}

func openPlaylist(path string) (*playlist.M3UStore, *music.Playlist, error) {
	store := playlist.NewM3UStore()
	pl, err := playlists.Open(store, path)
	if err != nil {
		return nil, nil, err
	}
	return store, pl, nil
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add files or directories to a playlist. Directories are grouped under their name",
		ArgsUsage: "<playlist.m3u> <paths...>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dest",
				Aliases: []string{"d"},
				Usage:   "Destination folder for the added songs",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if _, err := loadConfig(cmd); err != nil {
				return err
			}
			path, paths, err := playlistArgs(cmd, 1)
			if err != nil {
				return err
			}
			store, pl, err := openPlaylist(path)
			if err != nil {
				return err
			}
			var songs []music.Song
			for _, p := range paths {
				collected, err := playlists.CollectAudio(p, cmd.String("dest"))
				if err != nil {
					return err
				}
				songs = append(songs, collected...)
			}
			pl.AddMany(songs)
			if err := store.Save(pl, path); err != nil {
				return err
			}
			fmt.Printf("Added %d songs to %s (%d total)\n", len(songs), path, len(pl.Songs))
			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Aliases:   []string{"ls"},
		Usage:     "List the songs of a playlist with their tags",
		ArgsUsage: "<playlist.m3u>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfgManager, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path, _, err := playlistArgs(cmd, 0)
			if err != nil {
				return err
			}
			_, pl, err := openPlaylist(path)
			if err != nil {
				return err
			}
			base1024 := cfgManager.Get().USB.Base1024

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"#", "Destination", "File", "Size", "Title", "Artist", "Duration"})
			table.SetAutoWrapText(false)
			for _, v := range playlists.Describe(ctx, tag.NewTagReader(cfgManager), pl.Songs) {
				table.Append([]string{
					strconv.Itoa(v.Index + 1),
					v.Destination,
					v.FileName,
					music.FormatSize(v.Size, base1024),
					v.Metadata.Title,
					v.Metadata.Artist,
					music.FormatDuration(v.Metadata.Duration),
				})
			}
			table.Render()
			return nil
		},
	}
}

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "Show the playlist size and the USB stick it fits on",
		ArgsUsage: "<playlist.m3u>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfgManager, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path, _, err := playlistArgs(cmd, 0)
			if err != nil {
				return err
			}
			_, pl, err := openPlaylist(path)
			if err != nil {
				return err
			}
			base1024 := cfgManager.Get().USB.Base1024
			report := music.NewCapacityReport(pl.TotalSize(), base1024)

			fmt.Printf("%-20s : %d\n", "Songs", len(pl.Songs))
			fmt.Printf("%-20s : %s\n", "Total size", music.FormatSize(report.TotalBytes, base1024))
			fmt.Printf("%-20s : %d GB\n", "Suitable USB", report.USBSizeGB)
			fmt.Printf("%-20s : %.2f MB\n", "Available", report.AvailableMB)
			fmt.Printf("%-20s : %.1f%%\n", "Usage", report.UsagePercent)

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Destination", "Songs", "Size"})
			for _, group := range pl.GroupByDestination() {
				var size int64
				for _, song := range group.Songs {
					size += song.Size()
				}
				table.Append([]string{group.Destination, strconv.Itoa(len(group.Songs)), music.FormatSize(size, base1024)})
			}
			table.Render()
			return nil
		},
	}
}

func destCommand() *cli.Command {
	return &cli.Command{
		Name:  "dest",
		Usage: "Manage destination folders",
		Commands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Move songs (1-based numbers from list) under a destination, / for the root",
				ArgsUsage: "<playlist.m3u> <label> <numbers...>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					path, rest, err := playlistArgs(cmd, 2)
					if err != nil {
						return err
					}
					indices, err := parseIndices(rest[1:])
					if err != nil {
						return err
					}
					return editPlaylist(cmd, path, func(pl *music.Playlist) (string, error) {
						pl.SetDestination(indices, rest[0])
						return fmt.Sprintf("Moved %d songs to %s", len(indices), rest[0]), nil
					})
				},
			},
			{
				Name:      "rename",
				Usage:     "Rename a destination",
				ArgsUsage: "<playlist.m3u> <old> <new>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					path, rest, err := playlistArgs(cmd, 2)
					if err != nil {
						return err
					}
					return editPlaylist(cmd, path, func(pl *music.Playlist) (string, error) {
						n := pl.RenameDestination(rest[0], rest[1])
						if n == 0 {
							return "", fmt.Errorf("%w: %s", playlists.ErrDestinationNotFound, rest[0])
						}
						return fmt.Sprintf("Renamed %s to %s (%d songs)", rest[0], rest[1], n), nil
					})
				},
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Remove a destination and its songs",
				ArgsUsage: "<playlist.m3u> <label>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					path, rest, err := playlistArgs(cmd, 1)
					if err != nil {
						return err
					}
					return editPlaylist(cmd, path, func(pl *music.Playlist) (string, error) {
						n := pl.RemoveDestination(rest[0])
						if n == 0 {
							return "", fmt.Errorf("%w: %s", playlists.ErrDestinationNotFound, rest[0])
						}
						return fmt.Sprintf("Removed %s (%d songs)", rest[0], n), nil
					})
				},
			},
		},
	}
}

// editPlaylist loads a playlist, applies edit and saves it when edit succeeds.
func editPlaylist(cmd *cli.Command, path string, edit func(pl *music.Playlist) (string, error)) error {
	if _, err := loadConfig(cmd); err != nil {
		return err
	}
	store, pl, err := openPlaylist(path)
	if err != nil {
		return err
	}
	message, err := edit(pl)
	if err != nil {
		return err
	}
	if err := store.Save(pl, path); err != nil {
		return err
	}
	fmt.Println(message)
	return nil
}

func parseIndices(args []string) ([]int, error) {
	indices := make([]int, len(args))
	for i, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid song number %q", arg)
		}
		indices[i] = n - 1
	}
	return indices, nil
}

func devicesCommand() *cli.Command {
	return &cli.Command{
		Name:  "devices",
		Usage: "List mounted drives under usb.mount_root",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfgManager, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg := cfgManager.Get()
			found, err := devices.Scan(cfg.USB.MountRoot)
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Name", "Path", "Free", "Total", "Used"})
			for _, d := range found {
				table.Append([]string{
					d.Name,
					d.Path,
					music.FormatSize(int64(d.Free), cfg.USB.Base1024),
					music.FormatSize(int64(d.Total), cfg.USB.Base1024),
					fmt.Sprintf("%.1f%%", d.UsedPercent()),
				})
			}
			table.Render()
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show the most recent copy jobs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of jobs to show",
				Value: 20,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfgManager, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := database.NewSqliteHistory(cfgManager.Get().Database.Path)
			if err != nil {
				return err
			}
			defer db.Close()
			records, err := db.List(ctx, int(cmd.Int("limit")))
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Finished", "Name", "Target", "Status", "Copied", "Elapsed", "Error"})
			for _, r := range records {
				table.Append([]string{
					r.FinishedAt.Local().Format("2006-01-02 15:04"),
					r.Name,
					r.USBRoot,
					r.Status,
					fmt.Sprintf("%d/%d", r.Copied, r.Total),
					r.Elapsed().Round(time.Second).String(),
					r.Error,
				})
			}
			table.Render()
			return nil
		},
	}
}
