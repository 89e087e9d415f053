package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/TheHadiAhmadi/hesabpay/internal/config"
	"github.com/TheHadiAhmadi/hesabpay/internal/payout"
	"github.com/TheHadiAhmadi/hesabpay/internal/pincrypt"

	"github.com/spf13/cobra"
)

func disburseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disburse",
		Short: "Send a collected total to the configured vendor split",
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, _ := cmd.Flags().GetInt64("amount")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if len(cfg.Payout.Vendors) == 0 {
				return fmt.Errorf("no payout vendors configured")
			}

			var sum int64
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ACCOUNT\tAMOUNT")
			for _, v := range cfg.Payout.Vendors {
				fmt.Fprintf(w, "%s\t%d\n", v.AccountNumber, v.AmountMinor)
				sum += v.AmountMinor
			}
			w.Flush()
			fmt.Printf("split total: %d, disburse total: %d\n", sum, amount)

			if dryRun {
				if sum != amount {
					return fmt.Errorf("split does not add up: %d vs %d", sum, amount)
				}
				fmt.Println("dry run: split is consistent, nothing sent")
				return nil
			}

			cipher, err := pincrypt.New(cfg.Payout.Cipher, cfg.Hesab.APIKey)
			if err != nil {
				return err
			}
			vendors := make([]payout.Vendor, 0, len(cfg.Payout.Vendors))
			for _, v := range cfg.Payout.Vendors {
				vendors = append(vendors, payout.Vendor{AccountNumber: v.AccountNumber, AmountMinor: v.AmountMinor})
			}
			client := payout.NewClient(payout.Config{
				BaseURL: cfg.Hesab.BaseURL,
				APIKey:  cfg.Hesab.APIKey,
				PIN:     cfg.Payout.PIN,
				Cipher:  cipher,
				Vendors: vendors,
				Timeout: time.Duration(cfg.Hesab.TimeoutSeconds) * time.Second,
			})

			receipt, err := client.Distribute(cmd.Context(), amount, nil)
			if err != nil {
				return err
			}
			fmt.Printf("disbursed: transaction %s %s\n", receipt.TransactionID, receipt.Message)
			return nil
		},
	}

	cmd.Flags().Int64("amount", 0, "Total amount to disburse, in minor currency units")
	cmd.Flags().Bool("dry-run", false, "Validate the split without sending anything")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}
