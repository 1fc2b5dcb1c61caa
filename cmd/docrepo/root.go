package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/autom8ter/docrepo"
	"github.com/autom8ter/docrepo/errors"
	"github.com/autom8ter/docrepo/migrate"
	"github.com/autom8ter/docrepo/store/redislock"
	"github.com/autom8ter/docrepo/store/registry"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	_ "github.com/autom8ter/docrepo/store/kvstore"
	_ "github.com/autom8ter/docrepo/store/mongostore"
)

// Version is the version of the docrepo cli
const Version = "v0.1.0"

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docrepo",
		Short: "inspect and repair the migration ledger of a document store",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			initConfig()
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().String("provider", "badger", fmt.Sprintf("store provider (%s)", strings.Join(registry.Providers(), ", ")))
	cmd.PersistentFlags().String("params", `{"storage_path": "./tmp"}`, "store provider params (json)")
	cmd.PersistentFlags().String("ledger", migrate.DefaultLedgerCollection, "migration ledger collection")
	cmd.PersistentFlags().String("redis-addr", "", "redis address of the migration run lock (defaults to the store's own lock)")
	cmd.PersistentFlags().String("log-level", "error", "log level")
	_ = viper.BindPFlags(cmd.PersistentFlags())

	cmd.AddCommand(ledgerCmd())
	cmd.AddCommand(providersCmd())
	cmd.AddCommand(versionCmd())
	return cmd
}

// initConfig loads .env files and lets DOCREPO_ prefixed environment variables override flags
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("docrepo")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// openRunner opens the configured store and returns a migration runner over it
func openRunner(ctx context.Context) (*docrepo.Manager, *migrate.Runner, error) {
	params := map[string]any{}
	if raw := viper.GetString("params"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return nil, nil, errors.Wrap(err, errors.Validation, "failed to parse provider params")
		}
	}
	logger, err := docrepo.NewLogger(viper.GetString("log-level"), map[string]any{})
	if err != nil {
		return nil, nil, err
	}
	m, err := docrepo.Open(ctx, viper.GetString("provider"), params, docrepo.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	opts := []migrate.Opt{migrate.WithLedgerCollection(viper.GetString("ledger"))}
	if addr := viper.GetString("redis-addr"); addr != "" {
		locking, err := redislock.Open(ctx, map[string]any{"addr": addr})
		if err != nil {
			_ = m.Close(ctx)
			return nil, nil, err
		}
		opts = append(opts, migrate.WithLocking(locking))
	}
	runner, err := migrate.New(m, opts...)
	if err != nil {
		_ = m.Close(ctx)
		return nil, nil, err
	}
	return m, runner, nil
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "list the registered store providers",
		Run: func(cmd *cobra.Command, _ []string) {
			for _, provider := range registry.Providers() {
				fmt.Fprintln(cmd.OutOrStdout(), provider)
			}
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the version of docrepo",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "docrepo %s\n", Version)
		},
	}
}
