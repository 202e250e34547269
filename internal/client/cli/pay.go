package cli

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iudanet/credisync/internal/client/store"
	"github.com/iudanet/credisync/internal/models"
)

func (c *Cli) runPay(ctx context.Context, args []string) error {
	fs := newFlagSet("pay")
	notes := fs.String("notes", "", "collector notes")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) < 2 {
		return fmt.Errorf("missing arguments. Usage: credisync pay <installment-id> <amount> [--notes TEXT]")
	}

	amount, err := decimal.NewFromString(positional[1])
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", positional[1], err)
	}

	inst, err := store.Load[*models.Installment](ctx, c.store, positional[0])
	if err != nil {
		return fmt.Errorf("installment %s: %w", positional[0], err)
	}

	receipt, err := c.data.RecordPayment(ctx, &models.Payment{
		Base:          models.Base{OwnerScopeID: c.scopeID},
		Amount:        amount,
		CreditID:      inst.CreditID,
		InstallmentID: inst.ID,
		ClientID:      inst.ClientID,
		RouteID:       inst.RouteID,
		Notes:         *notes,
	})
	if err != nil {
		c.printValidation(err)
		if receipt != nil && receipt.Payment != nil {
			c.io.Printf("Payment %s was saved, but related balances were not fully updated.\n", receipt.Payment.ID)
		}
		return fmt.Errorf("failed to record payment: %w", err)
	}

	c.io.Println()
	c.io.Printf("✓ Payment recorded (ID: %s, %s)\n", receipt.Payment.ID, receipt.Payment.Kind)
	c.io.Printf("  Installment #%d: %s, remaining %s\n",
		receipt.Installment.Number, receipt.Installment.Status, receipt.Installment.OutstandingBalance.StringFixed(2))
	c.io.Printf("  Credit balance:  %s\n", receipt.Credit.OutstandingBalance.StringFixed(2))
	c.io.Println("It will be sent to the server on the next sync.")
	return nil
}
