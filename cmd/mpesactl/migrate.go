package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the transaction table and indexes for DB_DRIVER",
	Long: `Create the mpesa_transactions table (sqlite, mysql) or collection
indexes (mongo). Opening a store migrates it, so this is safe to re-run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Printf("mpesa_transactions ready (driver %s)\n", a.cfg.DBDriver)
		return nil
	},
}
