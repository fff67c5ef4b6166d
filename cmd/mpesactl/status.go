package main

import (
	"errors"
	"fmt"

	"mpesa_backend/internal/domain"

	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query [checkout-request-id]",
	Short: "Ask the gateway for a push result and apply it locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		resp, err := a.stk.Query(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(resp)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [checkout-request-id]",
	Short: "Show the stored state of a transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		tx, err := a.stk.Status(ctx, args[0])
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("transaction %s not found", args[0])
		}
		if err != nil {
			return err
		}
		return printJSON(tx)
	},
}
