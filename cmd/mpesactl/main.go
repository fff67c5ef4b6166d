package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"mpesa_backend/internal/bootstrap"
	"mpesa_backend/internal/config"
	"mpesa_backend/internal/gateway"
	"mpesa_backend/internal/repository"
	"mpesa_backend/internal/usecase"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "mpesactl",
		Short:         "Operate the M-Pesa STK push backend from the command line",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			godotenv.Load()
		},
	}

	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	cfg   config.Config
	store repository.TransactionStore
	stk   *usecase.STKUsecase
}

// openApp loads configuration and opens the store. Gateway credentials are
// only checked when the command talks to the gateway.
func openApp(ctx context.Context, needGateway bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if needGateway {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	return &app{
		cfg:   cfg,
		store: store,
		stk:   usecase.NewSTKUsecase(gateway.NewClient(cfg.Mpesa, nil), store),
	}, nil
}

func (a *app) Close() error { return a.store.Close() }

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
