package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/iudanet/credisync/internal/models"
)

func (c *Cli) runList(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing entity type. Usage: credisync list <type>")
	}
	t, err := parseEntityType(args[0])
	if err != nil {
		return err
	}

	c.io.Printf("=== %ss ===\n", t)
	c.io.Println()

	n := 0
	for rec, err := range c.store.Query(ctx, t, nil) {
		if err != nil {
			return fmt.Errorf("failed to list %ss: %w", t, err)
		}
		n++
		c.io.Printf("%s %s  %s\n", syncMark(rec), rec.RecordID(), label(rec))
	}

	if n == 0 {
		c.io.Printf("No %ss found.\n", t)
		return nil
	}
	c.io.Println()
	c.io.Printf("Total: %d (⏳ = waiting for sync)\n", n)
	return nil
}

// outboxFilter фильтр записей очереди для просмотра
type outboxFilter func(e *models.OutboxEntry, maxAttempts int) bool

var outboxFilters = map[string]outboxFilter{
	"pending": func(e *models.OutboxEntry, maxAttempts int) bool { return e.Pending(maxAttempts) },
	"failed":  func(e *models.OutboxEntry, maxAttempts int) bool { return !e.NeedsReview && e.Exhausted(maxAttempts) },
	"review":  func(e *models.OutboxEntry, _ int) bool { return !e.Resolved && e.NeedsReview },
	"all":     func(*models.OutboxEntry, int) bool { return true },
}

func (c *Cli) runOutbox(ctx context.Context, args []string) error {
	view := "pending"
	if len(args) > 0 {
		view = args[0]
	}
	keep, ok := outboxFilters[view]
	if !ok {
		return fmt.Errorf("unknown outbox view: %s. Use: pending, failed, review, all", view)
	}

	entries, err := c.outbox.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to read outbox: %w", err)
	}

	c.io.Printf("=== Outbox (%s) ===\n", view)
	c.io.Println()

	n := 0
	for _, e := range entries {
		if !keep(e, c.sync.MaxAttempts()) {
			continue
		}
		n++
		c.io.Printf("%s  %-6s %-11s %s\n", e.ID, e.Operation, e.EntityType, e.EntityID)
		c.io.Printf("    status: %s, attempts: %d, queued: %s\n",
			entryStatus(e, c.sync.MaxAttempts()), e.Attempts, e.EnqueuedAt.Local().Format(time.DateTime))
		if e.LastError != "" {
			c.io.Printf("    last error: %s\n", e.LastError)
		}
	}

	if n == 0 {
		c.io.Println("No entries.")
	}
	return nil
}

func entryStatus(e *models.OutboxEntry, maxAttempts int) string {
	switch {
	case e.Quarantined:
		return "quarantined"
	case e.Resolved:
		return "synced"
	case e.NeedsReview:
		return "needs review"
	case e.Exhausted(maxAttempts):
		return "failed"
	case e.LastAttemptAt != nil:
		return "retrying"
	default:
		return "pending"
	}
}
