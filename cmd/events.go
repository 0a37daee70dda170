/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jobtracker/apiserver/config"
	"github.com/jobtracker/apiserver/internal/logging"
	"github.com/jobtracker/apiserver/internal/mq"
	"github.com/jobtracker/apiserver/types"
	"github.com/spf13/cobra"
)

// eventsCmd groups the event bus commands.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect job application events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log every job application event on the configured channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx = logging.IntoContext(ctx, logger)

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("open mq: %w", err)
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is not set")
		}
		defer broker.Close()

		events := mq.NewJobEvents(broker, cfg.MQ.Channel)
		logger.Info("tailing job events", "backend", cfg.MQ.Backend, "channel", events.Channel())

		err = events.Subscribe(ctx, func(ctx context.Context, event types.JobEvent) error {
			logger.Info("job event",
				"type", event.Type,
				"user_id", event.UserID,
				"job_id", event.JobID,
				"status", event.Status,
				"occurred_at", event.OccurredAt,
			)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
