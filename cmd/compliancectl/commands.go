package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/rto-compliance-api/internal/app"
	"github.com/noah-isme/rto-compliance-api/internal/models"
	"github.com/noah-isme/rto-compliance-api/internal/service"
	"github.com/noah-isme/rto-compliance-api/pkg/config"
	"github.com/noah-isme/rto-compliance-api/pkg/database"
	"github.com/noah-isme/rto-compliance-api/pkg/logger"
)

type globalOptions struct {
	output string
}

// withContainer loads configuration, builds the shared services and runs fn with them.
func withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *app.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := app.Build(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer container.Close()
	return fn(ctx, container)
}

func escalateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "escalate",
		Short: "Escalate active alerts older than the configured age limit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
				result, err := c.Alerts.ProcessEscalations(ctx)
				if err != nil {
					return err
				}
				c.Logger.Info("escalation sweep finished", zap.Int("escalated", len(result.Escalated)))
				return render(cmd.OutOrStdout(), opts.output, result)
			})
		},
	}
}

func scanCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Print expiring documents, breaches and upcoming deadlines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
				report, err := c.Dashboard.ExpiryReport(ctx)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), opts.output, report)
			})
		},
	}
}

func syncAlertsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-alerts",
		Short: "Scan records and raise alerts for findings without an open alert",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
				result, _, err := c.Alerts.SyncFromScan(ctx)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), opts.output, result)
			})
		},
	}
}

func snapshotCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Capture heatmap scores for the current period",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
				result, err := c.Dashboard.CaptureSnapshot(ctx)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), opts.output, result)
			})
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the compliance tables if they are missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			db, err := database.NewPostgres(cfg.Database)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer db.Close()
			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func tokenCmd(opts *globalOptions) *cobra.Command {
	var (
		userID string
		role   string
		email  string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an operator or integration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			tokens := service.NewTokenService(nil, service.TokenConfig{
				Secret:   cfg.JWT.Secret,
				Issuer:   cfg.JWT.Issuer,
				TokenTTL: cfg.JWT.TokenTTL,
			})
			token, expiresAt, err := tokens.IssueToken(userID, models.UserRole(role), email)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, tokenOutput{
				Token:     token,
				ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id placed in the token")
	cmd.Flags().StringVar(&role, "role", string(models.RoleComplianceOfficer), "Role placed in the token")
	cmd.Flags().StringVar(&email, "email", "", "Email placed in the token")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

type tokenOutput struct {
	Token     string `json:"token" yaml:"token"`
	ExpiresAt string `json:"expiresAt" yaml:"expiresAt"`
}
