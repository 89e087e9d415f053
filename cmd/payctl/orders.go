package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/TheHadiAhmadi/hesabpay/internal/config"

	"github.com/spf13/cobra"
)

func ordersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List stored orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			repo, err := openRepo(cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			orders, err := repo.List(cmd.Context())
			if err != nil {
				return err
			}

			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(orders)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ORDER\tSTATUS\tAMOUNT\tCURRENCY\tCREATED\tTRANSACTION")
			for _, o := range orders {
				txID := "-"
				if o.TransactionID != nil {
					txID = *o.TransactionID
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
					o.ID, o.Status, o.AmountMinor, o.Currency,
					o.CreatedAt.Format(time.RFC3339), txID)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolP("json", "j", false, "Output as JSON")

	return cmd
}

func orderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "order [order-id]",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			repo, err := openRepo(cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			order, err := repo.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(order)
		},
	}
}
