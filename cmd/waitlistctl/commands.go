package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/revo-marketplace/waitlist/internal/api/dto"
	"github.com/revo-marketplace/waitlist/internal/auth"
	"github.com/revo-marketplace/waitlist/internal/config"
	"github.com/revo-marketplace/waitlist/internal/observability"
	"github.com/revo-marketplace/waitlist/internal/persistence"
	"github.com/revo-marketplace/waitlist/internal/repository"
	"github.com/revo-marketplace/waitlist/internal/validation"
)

var errNoDatabase = errors.New("POSTGRES_DSN is required")

// env is loaded once per invocation in PersistentPreRunE.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "waitlistctl",
		Short:         "Operate the waitlist service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := observability.NewLogger(cfg.Logger)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			e.cfg, e.logger = cfg, logger
			return nil
		},
	}
	root.AddCommand(newMigrateCmd(e), newStatsCmd(e), newUnsubscribeLinkCmd(e))
	return root
}

func newMigrateCmd(e *env) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				dir = e.cfg.Postgres.MigrationsDir
			}
			pg, err := connect(cmd.Context(), e)
			if err != nil {
				return err
			}
			defer pg.Close()
			if err := persistence.RunMigrations(cmd.Context(), pg.PoolHandle(), dir, e.logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "migrations directory (default from POSTGRES_MIGRATIONS_DIR)")
	return cmd
}

func newStatsCmd(e *env) *cobra.Command {
	var recent int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print signup totals as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pg, err := connect(cmd.Context(), e)
			if err != nil {
				return err
			}
			defer pg.Close()

			out, err := repository.NewSubmissionRepository(pg.PoolHandle()).Analytics(cmd.Context(), recent)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), dto.AnalyticsFromDomain(out))
		},
	}
	cmd.Flags().IntVar(&recent, "recent", 10, "number of recent signups to include")
	return cmd
}

func newUnsubscribeLinkCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "unsubscribe-link <email>",
		Short: "Print a signed unsubscribe link for an email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			link, err := unsubscribeLink(e.cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link.URL)
			return nil
		},
	}
}

func unsubscribeLink(cfg *config.Config, email string) (auth.UnsubscribeLink, error) {
	email = validation.NormalizeEmail(email)
	if email == "" {
		return auth.UnsubscribeLink{}, errors.New("email is required")
	}
	signer := auth.NewUnsubscribeSigner(cfg.SigningSecret(), cfg.Email.UnsubscribeTTL())
	return signer.BuildLink(cfg.App.PublicBaseURL, email)
}

func connect(ctx context.Context, e *env) (*persistence.Postgres, error) {
	if e.cfg.Postgres.DSN == "" {
		return nil, errNoDatabase
	}
	return persistence.NewPostgres(ctx, e.cfg.Postgres, e.logger)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
