package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/iudanet/credisync/internal/models"
)

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Sync Status ===")
	c.io.Println()

	stats, err := c.sync.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get sync stats: %w", err)
	}

	if stats.Online {
		c.io.Println("Connection: online")
	} else {
		c.io.Println("Connection: offline")
	}
	c.io.Printf("Dispatcher: %s\n", stats.State)
	if stats.LastSyncAt.IsZero() {
		c.io.Println("Last sync:  never")
	} else {
		c.io.Printf("Last sync:  %s\n", stats.LastSyncAt.Local().Format(time.RFC3339))
	}

	c.io.Println()
	c.io.Println("Outbox:")
	c.io.Printf("  Pending:      %d\n", stats.Pending)
	c.io.Printf("  Failed:       %d\n", stats.Failed)
	c.io.Printf("  Needs review: %d\n", stats.NeedsReview)
	c.io.Printf("  Quarantined:  %d\n", stats.Quarantined)
	c.io.Printf("  Synced:       %d\n", stats.Synced)

	counts, err := c.store.TableCounts(ctx)
	if err != nil {
		// Не прерываем выполнение: счетчики очереди уже показаны
		c.io.Printf("\nWarning: Failed to count local records: %v\n", err)
	} else {
		c.io.Println()
		c.io.Println("Local records:")
		for _, t := range models.EntityTypes() {
			c.io.Printf("  %-12s %d\n", t+":", counts[t])
		}
	}

	c.io.Println()
	switch {
	case stats.Failed > 0 || stats.NeedsReview > 0:
		c.io.Println("⚠️  Some changes need attention. Run 'credisync outbox failed' or 'credisync outbox review'.")
	case stats.Pending > 0:
		c.io.Printf("⚠️  %d change(s) waiting to be synchronized. Run 'credisync sync'.\n", stats.Pending)
	default:
		c.io.Println("✓ All data synchronized with server")
	}
	return nil
}
