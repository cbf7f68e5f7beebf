package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/rescp17/ticketShare/internal/config"
	"github.com/rescp17/ticketShare/internal/session"
	"github.com/rescp17/ticketShare/internal/util"
	"github.com/rescp17/ticketShare/pkg/picker"
	receiverApp "github.com/rescp17/ticketShare/pkg/receiver"
	senderApp "github.com/rescp17/ticketShare/pkg/sender"
)

func newSendCmd(cfg *config.Config) *cobra.Command {
	var copyTicket bool
	cmd := &cobra.Command{
		Use:   "send <path>",
		Short: "Share a file without the TUI and print its ticket",
		Long:  "Share a file and print its ticket. The share stays up until interrupted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd.Context(), cfg, args[0], copyTicket, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().BoolVar(&copyTicket, "copy", false, "copy the ticket to the clipboard")
	return cmd
}

func newReceiveCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "receive <ticket>",
		Short: "Download the file behind a ticket without the TUI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReceive(cmd.Context(), cfg, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func runSend(ctx context.Context, cfg *config.Config, path string, copyTicket bool, stdout, stderr io.Writer) error {
	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}
	store := session.NewStore(0)
	defer store.Close()

	snd := senderApp.NewApp(store, eng, picker.StaticSource{Path: path},
		senderApp.WithProgressBuffer(cfg.ProgressBuffer),
		senderApp.WithShutdownTimeout(cfg.ShutdownTimeout),
	)
	defer func() {
		if err := snd.Close(); err != nil {
			slog.Warn("failed to stop share", "error", err)
		}
	}()

	if err := snd.SetPath(util.ExpandHome(path)); err != nil {
		return err
	}
	ticket, err := snd.ShareSelectedFile(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, ticket)
	if copyTicket {
		if err := snd.CopyTicket(); err != nil {
			fmt.Fprintf(stderr, "could not copy ticket: %v\n", err)
		} else {
			fmt.Fprintln(stderr, "ticket copied to clipboard")
		}
	}
	fmt.Fprintln(stderr, "sharing, press ctrl+c to stop")

	watchProgress(ctx, store, session.Sending, filepath.Base(path), stderr)
	snd.Disconnect(context.Background())
	return nil
}

func runReceive(ctx context.Context, cfg *config.Config, ticket string, stdout, stderr io.Writer) error {
	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := eng.Shutdown(stopCtx); err != nil {
			slog.Warn("engine shutdown failed", "error", err)
		}
	}()
	store := session.NewStore(0)
	defer store.Close()

	dir := util.ExpandHome(cfg.DownloadDir)
	rcv := receiverApp.NewApp(store, eng, picker.StaticSource{Path: dir}, cfg.ProgressBuffer)

	watchCtx, stopWatch := context.WithCancel(ctx)
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		watchProgress(watchCtx, store, session.Receiving, "receiving", stderr)
	}()

	err = rcv.Receive(ctx, ticket)
	stopWatch()
	<-watched
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "saved into %s\n", dir)
	return nil
}

// watchProgress draws a bar for every transfer of role until ctx is done.
func watchProgress(ctx context.Context, store *session.Store, role session.Role, label string, w io.Writer) {
	snapshots, unsubscribe := store.Subscribe()
	defer unsubscribe()

	var bar *progressbar.ProgressBar
	completed := false // terminal sample seen, waiting for the grace delay to end
	finish := func() {
		if bar != nil {
			_ = bar.Finish()
			fmt.Fprintln(w)
			bar = nil
		}
	}
	defer finish()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			if snap.Role != role || !snap.TransferActive {
				finish()
				completed = false
				continue
			}
			p := snap.Progress
			if completed && p.IsTerminal() {
				continue
			}
			completed = false
			if bar == nil {
				bar = newBar(p.Total, label, w)
			}
			if bar.GetMax64() != p.Total {
				bar.ChangeMax64(p.Total)
			}
			_ = bar.Set64(min(p.Done, p.Total))
			if p.IsTerminal() {
				finish()
				completed = true
			}
		}
	}
}

func newBar(total int64, label string, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(label),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
	)
}

