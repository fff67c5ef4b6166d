package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"mpesa_backend/internal/domain"
	"mpesa_backend/internal/repository"

	"github.com/spf13/cobra"
)

var (
	listStatus    string
	listPhone     string
	listReference string
	listLimit     int
	listOffset    int
	listJSON      bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored transactions, newest first",
	Long: `List stored transactions.

Examples:
  mpesactl list --status pending
  mpesactl list --ref INV-1 --json`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listStatus, "status", "s", "", "filter by status (pending, completed, failed)")
	listCmd.Flags().StringVar(&listPhone, "phone", "", "filter by phone number as stored")
	listCmd.Flags().StringVarP(&listReference, "ref", "r", "", "filter by account reference")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", repository.DefaultListLimit, "maximum rows")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "rows to skip")
	listCmd.Flags().BoolVarP(&listJSON, "json", "j", false, "output as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	items, err := a.stk.List(ctx, repository.TxFilter{
		Status:           domain.TxStatus(listStatus),
		PhoneNumber:      listPhone,
		AccountReference: listReference,
	}, listLimit, listOffset)
	if err != nil {
		return err
	}

	if listJSON {
		return printJSON(items)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHECKOUT ID\tSTATUS\tAMOUNT\tPHONE\tREFERENCE\tRECEIPT\tCREATED")
	for _, t := range items {
		receipt := "-"
		if t.MpesaReceiptNumber != nil {
			receipt = *t.MpesaReceiptNumber
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.CheckoutRequestID, t.Status, t.Amount.StringFixed(2), t.PhoneNumber,
			t.AccountReference, receipt, t.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}
