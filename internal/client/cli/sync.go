package cli

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/credisync/internal/client/events"
)

func (c *Cli) runSync(ctx context.Context) error {
	c.io.Println("=== Synchronization ===")
	c.io.Println()

	if !c.sync.CheckConnectivity(ctx) {
		c.io.Println("Server is not reachable. Changes are saved locally and will sync later.")
		return nil
	}

	c.io.Println("Sending pending changes to server...")

	result, err := c.sync.SyncNow(ctx)
	if err != nil {
		return fmt.Errorf("synchronization failed: %w", err)
	}

	c.io.Println()
	switch {
	case result.Skipped:
		c.io.Println("Another synchronization is already running.")
		return nil
	case result.Offline:
		c.io.Println("Server is not reachable. Changes are saved locally and will sync later.")
		return nil
	case result.Attempted == 0:
		c.io.Println("✓ Nothing to synchronize")
		return nil
	}

	c.io.Printf("Sent:               %d\n", result.Attempted)
	c.io.Printf("Confirmed:          %d\n", result.Committed)
	if result.Conflicts > 0 {
		c.io.Printf("Conflicts resolved: %d\n", result.Conflicts)
	}
	if result.Superseded > 0 {
		c.io.Printf("Changed meanwhile:  %d\n", result.Superseded)
	}
	if result.Failed > 0 {
		c.io.Printf("Failed (will retry): %d\n", result.Failed)
	}
	if result.NeedsReview > 0 {
		c.io.Printf("Needs review:       %d\n", result.NeedsReview)
	}
	if result.Quarantined > 0 {
		c.io.Printf("Quarantined:        %d\n", result.Quarantined)
	}
	for _, id := range result.Exhausted {
		c.io.Printf("⚠️  Entry %s reached the retry limit. Use 'credisync retry %s' after fixing the cause.\n", id, id)
	}
	c.io.Printf("Duration:           %s\n", result.Duration.Round(time.Millisecond))
	return nil
}

func (c *Cli) runDaemon(ctx context.Context) error {
	c.io.Println("Background sync started. Press Ctrl+C to stop.")

	if c.events != nil {
		unsubscribe := c.events.SubscribeAll(func(e events.Event) {
			c.io.Printf("[%s] %s %s %s\n", time.Now().Format(time.TimeOnly), e.EntityType, e.EntityID, e.Kind)
		})
		defer unsubscribe()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.sync.Run(ctx)
	})
	if c.rotator != nil && c.backupInterval > 0 {
		g.Go(func() error {
			return c.rotator.Run(ctx, c.backupInterval)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("background sync stopped: %w", err)
	}
	c.io.Println("Background sync stopped.")
	return nil
}
