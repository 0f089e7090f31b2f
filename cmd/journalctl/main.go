// Command journalctl runs journal generation from the command line.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/AnshRaj112/journeygen-backend/internal/app"
	"github.com/AnshRaj112/journeygen-backend/internal/auth"
	"github.com/AnshRaj112/journeygen-backend/internal/config"
	"github.com/AnshRaj112/journeygen-backend/internal/journalgen"
	"github.com/AnshRaj112/journeygen-backend/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "journalctl",
		Short:        "Operate the journal generator",
		SilenceUsage: true,
	}
	root.AddCommand(newGenerateCmd())
	return root
}

type generateOptions struct {
	clientID    string
	topic       string
	background  string
	bookingLink string
	key         string
	verbose     bool
}

func newGenerateCmd() *cobra.Command {
	var opts generateOptions
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate and store a journal for a client, printing it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.clientID, "client", "", "client id (required)")
	cmd.Flags().StringVar(&opts.topic, "topic", "", "journal topic (required)")
	cmd.Flags().StringVar(&opts.background, "background", "", "background text used when the knowledge bank is empty")
	cmd.Flags().StringVar(&opts.bookingLink, "booking-link", "", "booking link shown with the journal")
	cmd.Flags().StringVar(&opts.key, "idempotency-key", "", "return the existing journal for this key instead of generating again")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

func runGenerate(cmd *cobra.Command, opts generateOptions) error {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logg := logger.Nop()
	if opts.verbose {
		if logg, err = logger.New(cfg.LogMode); err != nil {
			return err
		}
		defer logg.Sync()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := app.New(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer a.Close()

	journal, created, err := a.Journals.CreateJournal(ctx, auth.Admin(cfg.AdminUsername), journalgen.CreateRequest{
		Topic:          opts.topic,
		Background:     opts.background,
		BookingLink:    opts.bookingLink,
		ClientID:       opts.clientID,
		IdempotencyKey: opts.key,
	})
	if err != nil {
		return err
	}
	if !created {
		fmt.Fprintln(cmd.ErrOrStderr(), "journal already existed for this idempotency key")
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(journal)
}
