/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/memories-social/apiserver/config"
	"github.com/memories-social/apiserver/internal/db"
	"github.com/memories-social/apiserver/internal/mail"
	"github.com/memories-social/apiserver/internal/server"
	"github.com/memories-social/apiserver/internal/services"
	"github.com/memories-social/apiserver/internal/store"
	"github.com/spf13/cobra"
)

// workerCmd represents the worker command. It consumes activity events
// from the bus and sends notification email.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Runs the notification worker",
	Long: `Runs the notification worker. Consumes activity events and
emails follow notifications. Requires MQ_BACKEND and SMTP settings.

	memories worker
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if cfg.MQ.Backend == "" {
			return errors.New("MQ_BACKEND is required for the worker")
		}
		if cfg.Mail.SMTPHost == "" {
			return errors.New("SMTP_HOST is required for the worker")
		}

		ctx := cmd.Context()

		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		mailer, err := mail.NewSMTPMailer(cfg.Mail)
		if err != nil {
			return err
		}

		bus, err := server.NewEventBus(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		defer bus.Close()

		notifier := services.NewNotifier(store.NewUserRepository(dbConn), mailer, cfg.Mail.From)

		fmt.Fprintln(os.Stderr, "worker: consuming activity events")
		return bus.Subscribe(ctx, services.ActivityChannel, notifier.Handle)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
