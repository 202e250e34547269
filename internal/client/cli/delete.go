package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/credisync/internal/client/iocli"
	"github.com/iudanet/credisync/internal/client/storage"
)

func (c *Cli) runDelete(ctx context.Context, args []string) error {
	fs := newFlagSet("delete")
	yes := fs.Bool("yes", false, "do not ask for confirmation")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) < 2 {
		return fmt.Errorf("missing arguments. Usage: credisync delete <type> <id> [--yes]")
	}
	t, err := parseEntityType(positional[0])
	if err != nil {
		return err
	}
	id := positional[1]

	rec, err := c.store.Get(ctx, t, id)
	if errors.Is(err, storage.ErrRecordNotFound) {
		return fmt.Errorf("%s not found with ID: %s", t, id)
	}
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", t, err)
	}

	c.io.Printf("=== Delete %s ===\n", t)
	c.io.Println()
	c.io.Println("About to delete:")
	c.io.Printf("  %s  %s\n", rec.RecordID(), label(rec))
	c.io.Println()

	if !*yes {
		answer, err := c.io.ReadInput("Are you sure you want to delete this record? (yes/no): ")
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if !iocli.IsYes(answer) {
			c.io.Println("Deletion cancelled.")
			return nil
		}
	}

	if err := c.data.Delete(ctx, t, id); err != nil {
		return fmt.Errorf("failed to delete %s: %w", t, err)
	}

	c.io.Println("✓ Record deleted locally.")
	c.io.Println("The deletion will be sent to the server on the next sync.")
	return nil
}
