package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pedalhub/rental-service/internal/auth"
	"github.com/pedalhub/rental-service/internal/config"
	"github.com/pedalhub/rental-service/internal/domain"
	"github.com/pedalhub/rental-service/internal/observability"
	"github.com/pedalhub/rental-service/internal/persistence"
	"github.com/pedalhub/rental-service/internal/repository"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "rentalctl",
		Short:         "Operator tooling for the bike rental service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(out)
	root.AddCommand(newTokenCmd(), newMigrateCmd(), newUserCmd())
	return root
}

func newTokenCmd() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Access token utilities",
	}

	var userID, email, role string
	var ttl time.Duration
	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign an access token with AUTH_JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user-id is required")
			}
			userRole := domain.UserRole(strings.ToLower(role))
			if !userRole.Valid() {
				return fmt.Errorf("--role must be one of admin, staff, customer; got %q", role)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Auth.AccessTokenTTL()
			}
			tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, ttl)
			if err != nil {
				return err
			}
			token, exp, err := tokens.Issue(userID, email, userRole)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", exp.Format(time.RFC3339))
			return nil
		},
	}
	issueCmd.Flags().StringVar(&userID, "user-id", "", "subject user id")
	issueCmd.Flags().StringVar(&email, "email", "", "email claim")
	issueCmd.Flags().StringVar(&role, "role", string(domain.UserRoleCustomer), "admin|staff|customer")
	issueCmd.Flags().DurationVar(&ttl, "ttl", 0, "lifetime; defaults to AUTH_ACCESS_TOKEN_TTL_MINUTES")

	verifyCmd := &cobra.Command{
		Use:   "verify <token>",
		Short: "Validate a token and print its identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
			if err != nil {
				return err
			}
			identity, err := tokens.Verify(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user_id=%s email=%s role=%s expires_at=%s\n",
				identity.UserID, identity.Email, identity.UserType, identity.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}

	tokenCmd.AddCommand(issueCmd, verifyCmd)
	return tokenCmd
}

func newMigrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations to POSTGRES_DSN",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPostgres(cmd.Context(), func(cfg *config.Config, pg *persistence.Postgres, logger *zap.Logger) error {
				if dir == "" {
					dir = cfg.Postgres.MigrationsDir
				}
				applied, err := persistence.RunMigrations(cmd.Context(), pg.PoolHandle(), dir, logger)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "migrations directory; defaults to POSTGRES_MIGRATIONS_DIR")
	return cmd
}

func newUserCmd() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Account administration",
	}

	var email, role string
	setRoleCmd := &cobra.Command{
		Use:   "set-role",
		Short: "Change the role of an existing account",
		RunE: func(cmd *cobra.Command, args []string) error {
			userRole := domain.UserRole(strings.ToLower(role))
			if email == "" || !userRole.Valid() {
				return errors.New("--email and --role (admin|staff|customer) are required")
			}
			return withPostgres(cmd.Context(), func(_ *config.Config, pg *persistence.Postgres, _ *zap.Logger) error {
				users := repository.NewUserRepository(pg.PoolHandle())
				user, err := users.GetByEmail(cmd.Context(), email)
				if errors.Is(err, pgx.ErrNoRows) {
					return fmt.Errorf("no account for %s", email)
				}
				if err != nil {
					return err
				}
				user.Role = userRole
				if err := users.Update(cmd.Context(), user); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", user.Email, user.Role)
				return nil
			})
		},
	}
	setRoleCmd.Flags().StringVar(&email, "email", "", "account email")
	setRoleCmd.Flags().StringVar(&role, "role", "", "admin|staff|customer")

	userCmd.AddCommand(setRoleCmd)
	return userCmd
}

func withPostgres(ctx context.Context, fn func(*config.Config, *persistence.Postgres, *zap.Logger) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer pg.Close()
	if pg.PoolHandle() == nil {
		return persistence.ErrPostgresDisabled
	}
	return fn(cfg, pg, logger)
}
