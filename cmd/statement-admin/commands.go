package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tendant/simple-statement/pkg/simplestatement"
	"github.com/tendant/simple-statement/pkg/simplestatement/api"
	"github.com/tendant/simple-statement/pkg/simplestatement/config"
	"github.com/tendant/simple-statement/pkg/simplestatement/objectkey"
	"github.com/tendant/simple-statement/pkg/simplestatement/reconcile"
	repopg "github.com/tendant/simple-statement/pkg/simplestatement/repo/postgres"
)

func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := postgresConfig()
			if err != nil {
				return err
			}
			return repopg.Migrate(cfg.DatabaseURL, cfg.DBSchema, newLogger(cmd))
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := postgresConfig()
			if err != nil {
				return err
			}
			return repopg.MigrateDown(cfg.DatabaseURL, cfg.DBSchema, steps, newLogger(cmd))
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	return cmd
}

func postgresConfig() (*config.ServerConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.UsesPostgres() {
		return nil, errors.New("DATABASE_URL must point at postgres to run migrations")
	}
	return cfg, nil
}

func NewReconcileCommand() *cobra.Command {
	var prefix, customer string
	var minAge time.Duration
	var del bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Find stored objects that no statement references",
		Long: `Lists objects under --prefix and reports those that no statement row
references. Such objects are left behind when an upload loses a race after
writing its object. Objects younger than --min-age are skipped because their
upload may not have saved its row yet. Pass --delete to remove orphans; this
requires the postgres repository, since an in-memory one references nothing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if minAge < 0 {
				return errors.New("--min-age must not be negative")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if del && !cfg.UsesPostgres() {
				return errors.New("--delete requires DATABASE_URL to point at postgres")
			}
			logger := newLogger(cmd)
			if !cfg.UsesPostgres() {
				logger.Warn("repository is in memory; every object will be reported as an orphan")
			}
			if customer != "" {
				prefix = objectkey.CustomerPrefix(customer)
			}

			comps, err := cfg.Build(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer comps.Close()

			lister, ok := comps.ObjectStore.(simplestatement.ObjectLister)
			if !ok {
				return fmt.Errorf("storage backend %q cannot list objects", cfg.Storage.Backend)
			}
			var deleter simplestatement.ObjectDeleter
			if del {
				if deleter, ok = comps.ObjectStore.(simplestatement.ObjectDeleter); !ok {
					return fmt.Errorf("storage backend %q cannot delete objects", cfg.Storage.Backend)
				}
			}

			report, err := reconcile.Run(cmd.Context(), lister, deleter, comps.Store, reconcile.Options{
				Prefix: prefix,
				MinAge: minAge,
			}, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, key := range report.Orphans {
				fmt.Fprintln(out, key)
			}
			fmt.Fprintf(out, "scanned=%d skipped=%d orphans=%d deleted=%d\n",
				report.Scanned, report.Skipped, len(report.Orphans), report.Deleted)
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "customer/", "object key prefix to scan")
	cmd.Flags().StringVar(&customer, "customer", "", "scan only this customer's objects")
	cmd.Flags().DurationVar(&minAge, "min-age", reconcile.DefaultMinAge, "skip objects modified more recently than this")
	cmd.Flags().BoolVar(&del, "delete", false, "delete orphaned objects")
	cmd.MarkFlagsMutuallyExclusive("prefix", "customer")

	return cmd
}

func NewRevokeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <statement-id>",
		Short: "Revoke a statement so no new download links are issued",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid statement id: %w", err)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cmd)

			comps, err := cfg.Build(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer comps.Close()

			s, err := comps.Service.Revoke(cmd.Context(), id)
			if err != nil {
				return err
			}
			comps.Recorder.Record(cmd.Context(), s.CustomerID, simplestatement.AuditActionRevoke, &s.ID, "cli", "statement-admin")

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (version %d)\n", s.ID, s.Status, s.Version)
			return nil
		},
	}
}

func NewTokenCommand() *cobra.Command {
	var customer, scope string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an access token with JWT_SECRET_BASE64",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecretBase64 == "" {
				return errors.New("JWT_SECRET_BASE64 is not set; the server would reject the token")
			}
			return issueToken(cmd, cfg, customer, scope, ttl)
		},
	}

	cmd.Flags().StringVar(&customer, "customer", "", "customer id carried in the token (required)")
	cmd.Flags().StringVar(&scope, "scope", api.ScopeCustomer, "space separated scopes: customer, admin")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("customer")

	return cmd
}

func issueToken(cmd *cobra.Command, cfg *config.ServerConfig, customer, scope string, ttl time.Duration) error {
	for _, s := range strings.Fields(scope) {
		if s != api.ScopeCustomer && s != api.ScopeAdmin {
			return fmt.Errorf("unknown scope %q", s)
		}
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	secret, err := cfg.JWTSecret()
	if err != nil {
		return err
	}
	auth, err := api.NewTokenAuth(secret)
	if err != nil {
		return err
	}
	token, err := auth.Issue(strings.TrimSpace(customer), scope, ttl)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func NewEnvCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Describe the environment variables the service reads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.Usage())
			return nil
		},
	}
}
