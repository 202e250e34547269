package cli

import (
	"context"
	"fmt"
)

func (c *Cli) runRetry(ctx context.Context, args []string) error {
	fs := newFlagSet("retry")
	allFailed := fs.Bool("failed", false, "re-arm every failed or parked entry")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}

	var ids []string
	switch {
	case *allFailed:
		entries, err := c.outbox.ListEntries(ctx)
		if err != nil {
			return fmt.Errorf("failed to read outbox: %w", err)
		}
		for _, e := range entries {
			if !e.Resolved && (e.NeedsReview || e.Exhausted(c.sync.MaxAttempts())) {
				ids = append(ids, e.ID)
			}
		}
	case len(positional) > 0:
		ids = positional
	default:
		return fmt.Errorf("missing entry id. Usage: credisync retry <entry-id>|--failed")
	}

	for _, id := range ids {
		if err := c.outbox.ResetAttempts(ctx, id); err != nil {
			return fmt.Errorf("failed to re-arm entry %s: %w", id, err)
		}
		c.io.Printf("✓ Entry %s queued again\n", id)
	}
	if len(ids) == 0 {
		c.io.Println("No failed entries.")
		return nil
	}

	c.io.Println("Run 'credisync sync' to send them now.")
	return nil
}
