package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/sysfr3ak/archive-sys/internal/config"
	"github.com/sysfr3ak/archive-sys/internal/logging"
	"github.com/sysfr3ak/archive-sys/internal/reminder"
	"github.com/sysfr3ak/archive-sys/internal/reminder/discord"
	"github.com/sysfr3ak/archive-sys/internal/reminder/slack"
	"github.com/sysfr3ak/archive-sys/internal/server"
)

func newServeCmd(opts *rootOpts) *cobra.Command {
	var (
		port       int
		noReminder bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the backup reminder",
		Long: `Serves the JSON API and, unless disabled, runs the scheduled backup
reminder. Only one reminder runs per host; a second serve process skips it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts, port, noReminder)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (default from config)")
	cmd.Flags().BoolVar(&noReminder, "no-reminder", false, "do not run the backup reminder")
	return cmd
}

func runServe(cmd *cobra.Command, opts *rootOpts, port int, noReminder bool) error {
	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	if port > 0 {
		s.cfg.HTTP.Port = port
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !noReminder {
		if err := startReminder(ctx, s); err != nil {
			return err
		}
	}

	return server.Start(ctx, server.StartOpts{
		Options: server.Options{
			DB:     s.db,
			Config: s.cfg,
			Logger: logging.Component(s.log, "http"),
		},
		Out: cmd.OutOrStdout(),
	})
}

// startReminder launches the reminder loop in the background when this
// process wins the host lock.
func startReminder(ctx context.Context, s *session) error {
	log := logging.Component(s.log, "reminder")

	lock, err := reminder.Lock(s.cfg.Backup.LockFile)
	if errors.Is(err, reminder.ErrLocked) {
		log.Info("reminder already running elsewhere, skipping", "lock", s.cfg.Backup.LockFile)
		return nil
	}
	if err != nil {
		return err
	}

	notifiers, err := buildNotifiers(s.cfg)
	if err != nil {
		lock.Unlock()
		return err
	}
	notifiers = append(notifiers, reminder.LogNotifier{Logger: log})

	checker := &reminder.Checker{
		DB:          s.db,
		DueSoonDays: s.cfg.Backup.DueSoonDays,
		Notifiers:   notifiers,
		Logger:      log,
	}
	go func() {
		defer lock.Unlock()
		if err := checker.Run(ctx, s.cfg.Backup.Schedule); err != nil {
			log.Error("reminder stopped", "error", err)
		}
	}()
	log.Info("reminder scheduled", "schedule", s.cfg.Backup.Schedule, "notifiers", len(notifiers))
	return nil
}

func buildNotifiers(cfg *config.Config) ([]reminder.Notifier, error) {
	var out []reminder.Notifier
	if cfg.Notify.Slack.Enabled() {
		n, err := slack.New(slack.Opts{BotToken: cfg.Notify.Slack.BotToken, ChannelID: cfg.Notify.Slack.Channel})
		if err != nil {
			return nil, fmt.Errorf("slack notifier: %w", err)
		}
		out = append(out, n)
	}
	if cfg.Notify.Discord.Enabled() {
		n, err := discord.New(discord.Opts{BotToken: cfg.Notify.Discord.BotToken, ChannelID: cfg.Notify.Discord.Channel})
		if err != nil {
			return nil, fmt.Errorf("discord notifier: %w", err)
		}
		out = append(out, n)
	}
	return out, nil
}
