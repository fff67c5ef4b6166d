package main

import (
	"fmt"

	"mpesa_backend/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	pushAmount    string
	pushReference string
	pushDesc      string
)

var pushCmd = &cobra.Command{
	Use:   "push [phone]",
	Short: "Send an STK push prompt to a phone",
	Long: `Send an STK push and record the pending transaction.

Examples:
  mpesactl push 0712345678 --amount 10 --ref INV-1 --desc "Invoice 1"`,
	Args: cobra.ExactArgs(1),
	RunE: runPush,
}

func init() {
	pushCmd.Flags().StringVarP(&pushAmount, "amount", "a", "", "amount to charge (at least 1)")
	pushCmd.Flags().StringVarP(&pushReference, "ref", "r", "", "account reference")
	pushCmd.Flags().StringVarP(&pushDesc, "desc", "d", "", "transaction description")
	pushCmd.MarkFlagRequired("amount")
	pushCmd.MarkFlagRequired("ref")
	pushCmd.MarkFlagRequired("desc")
}

func runPush(cmd *cobra.Command, args []string) error {
	amount, err := decimal.NewFromString(pushAmount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", pushAmount, err)
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.stk.Push(ctx, usecase.PushInput{
		Phone:            args[0],
		Amount:           amount,
		AccountReference: pushReference,
		TransactionDesc:  pushDesc,
	})
	if err != nil {
		return err
	}
	return printJSON(resp)
}
