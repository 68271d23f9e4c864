// Command facturectl reads facture statistics and exports factures from the
// command line, using the same services as the HTTP API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/boddenberg/facture-btp-bfa/internal/config"
	"github.com/boddenberg/facture-btp-bfa/internal/domain"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/memstore"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/observability"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/resilience"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/supabase"
	"github.com/boddenberg/facture-btp-bfa/internal/port"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "facturectl",
	Short: "Facture BTP command-line tools",
	Long: `facturectl works on the facture_btp table of the signed-in account.

Required environment variables:
  FACTURE_EMAIL     - account email
  FACTURE_PASSWORD  - account password
  SUPABASE_URL, SUPABASE_ANON_KEY, SUPABASE_JWT_SECRET (unless USE_SUPABASE=false)`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Log level (defaults to LOG_LEVEL, then warn)")
}

func main() {
	_ = config.LoadDotEnv(".env")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// session is a signed-in backend connection.
type session struct {
	store    port.FactureStore
	identity domain.Identity
	logger   *zap.Logger
}

// connect builds the backend from the environment and signs in with
// FACTURE_EMAIL / FACTURE_PASSWORD.
func connect(ctx context.Context, cmd *cobra.Command) (*session, error) {
	cfg := config.Load()

	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level == "" {
		level = "warn"
	}
	logger := observability.NewLogger(level).With(zap.String("component", "facturectl"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	email, password := os.Getenv("FACTURE_EMAIL"), os.Getenv("FACTURE_PASSWORD")
	if email == "" || password == "" {
		return nil, fmt.Errorf("FACTURE_EMAIL and FACTURE_PASSWORD must be set")
	}

	var (
		store    port.FactureStore
		provider port.AuthProvider
	)
	if cfg.UseSupabase {
		guard := resilience.NewGuard("supabase", resilience.Config{
			MaxConcurrency: cfg.MaxConcurrency,
			BreakerTimeout: cfg.BreakerTimeout,
		})
		client := supabase.NewClient(&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseServiceKey, guard, logger)
		store = supabase.NewFactureStore(client, cfg.FactureTable)
		provider = supabase.NewAuth(client, cfg.SupabaseJWTSecret)
	} else {
		// A fresh dev store only knows the account created here.
		mem := memstore.New(cfg.DevJWTSecret, logger, memstore.WithSeed())
		if err := mem.SignUp(ctx, email, password); err != nil {
			return nil, err
		}
		store = mem
		provider = mem
	}

	sess, err := provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	logger.Debug("signed in", zap.String("user_id", sess.UserID))

	return &session{
		store:    store,
		identity: domain.Identity{UserID: sess.UserID, Email: sess.Email, Token: sess.AccessToken},
		logger:   logger,
	}, nil
}

// rangeFlags reads --from/--to. Either bound may be omitted.
func rangeFlags(cmd *cobra.Command) (domain.DateRange, error) {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")

	start, err := domain.ParseDate(from)
	if err != nil {
		return domain.DateRange{}, err
	}
	end, err := domain.ParseDate(to)
	if err != nil {
		return domain.DateRange{}, err
	}
	return domain.DateRange{Start: start, End: end}, nil
}
