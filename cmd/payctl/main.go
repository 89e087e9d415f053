package main

import (
	"context"
	"fmt"
	"os"

	"github.com/TheHadiAhmadi/hesabpay/internal/config"
	"github.com/TheHadiAhmadi/hesabpay/internal/db"
	"github.com/TheHadiAhmadi/hesabpay/internal/store"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "payctl",
		Short: "Operations tool for the payment relay",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config file")

	rootCmd.AddCommand(ordersCmd())
	rootCmd.AddCommand(orderCmd())
	rootCmd.AddCommand(disburseCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openRepo(cfg *config.Config) (store.OrderRepository, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := db.Connect(context.Background(), cfg.Storage.DSN)
		if err != nil {
			return nil, err
		}
		return store.NewPostgres(pool), nil
	default:
		return store.OpenSQLite(cfg.Storage.Path)
	}
}
