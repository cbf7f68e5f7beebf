package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rescp17/ticketShare/internal/app"
	"github.com/rescp17/ticketShare/internal/config"
	"github.com/rescp17/ticketShare/internal/session"
	"github.com/rescp17/ticketShare/pkg/discovery"
	"github.com/rescp17/ticketShare/pkg/engine"
	"github.com/rescp17/ticketShare/pkg/picker"
	receiverApp "github.com/rescp17/ticketShare/pkg/receiver"
	senderApp "github.com/rescp17/ticketShare/pkg/sender"
	"github.com/rescp17/ticketShare/pkg/ui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fang.Execute(ctx, newRootCmd()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Default()
	var configPath string
	var logFile io.Closer

	cmd := &cobra.Command{
		Use:   "ticketshare",
		Short: "Share a file with one ticket",
		Long: "ticketshare shares a single file directly between two machines.\n" +
			"The sender gets a ticket, the receiver pastes it.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configPath != "" {
				if err := cfg.ApplyFile(configPath, cmd.Flags()); err != nil {
					return err
				}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			closer, err := setupLogging(cfg)
			if err != nil {
				return err
			}
			logFile = closer
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if logFile != nil {
				if err := logFile.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
				}
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), cfg)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	cfg.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(newSendCmd(cfg), newReceiveCmd(cfg))
	return cmd
}

// setupLogging sends slog and the standard logger to the configured file. The
// terminal belongs to the TUI.
func setupLogging(cfg *config.Config) (io.Closer, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(f)
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})))
	return f, nil
}

func newEngine(cfg *config.Config) (*engine.QUICEngine, error) {
	var opts []engine.Option
	if cfg.MDNS {
		discovery.Quiet()
		opts = append(opts, engine.WithDiscovery(&discovery.MDNSAdapter{}))
	}
	return engine.NewQUICEngine(cfg.TransferConfig(), opts...)
}

func fileConstraints(cfg *config.Config) picker.Constraints {
	c := picker.DefaultFileConstraints()
	if len(cfg.Extensions) > 0 {
		c = c.WithExtensions(cfg.Extensions)
	}
	return c
}

func runTUI(ctx context.Context, cfg *config.Config) error {
	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}
	store := session.NewStore(cfg.GraceDelay)
	defer store.Close()

	prompts := app.NewPromptManager()
	snd := senderApp.NewApp(store, eng, prompts,
		senderApp.WithConstraints(fileConstraints(cfg)),
		senderApp.WithProgressBuffer(cfg.ProgressBuffer),
		senderApp.WithShutdownTimeout(cfg.ShutdownTimeout),
	)
	rcv := receiverApp.NewApp(store, eng, prompts, cfg.ProgressBuffer)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return snd.Run(gctx) })
	g.Go(func() error { return rcv.Run(gctx) })

	snapshots, unsubscribe := store.Subscribe()
	defer unsubscribe()

	p := tea.NewProgram(
		ui.InitialModel(snd, rcv, prompts, snapshots),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, runErr := p.Run()
	cancel()
	if err := g.Wait(); err != nil {
		slog.Error("controller stopped with error", "error", err)
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("alas, there's been an error: %w", runErr)
	}
	return nil
}
