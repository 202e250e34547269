package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/iudanet/credisync/internal/client/backup"
	"github.com/iudanet/credisync/internal/client/iocli"
)

func (c *Cli) runBackup(ctx context.Context, args []string) error {
	fs := newFlagSet("backup")
	out := fs.String("out", "", "write the snapshot to this file instead of the backup directory")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	if *out == "" {
		if c.rotator == nil {
			return errors.New("backup directory is not configured; use --out PATH")
		}
		path, err := c.rotator.Backup(ctx)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		c.io.Printf("✓ Backup written to %s\n", path)
		return nil
	}

	snap, err := c.backup.Export(ctx)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	file, err := os.OpenFile(*out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", *out, err)
	}
	if err := backup.Encode(file, snap); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", *out, err)
	}

	c.io.Printf("✓ Backup written to %s\n", *out)
	return nil
}

func (c *Cli) runRestore(ctx context.Context, args []string) error {
	fs := newFlagSet("restore")
	yes := fs.Bool("yes", false, "confirm replacing all local data")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) == 0 {
		return fmt.Errorf("missing snapshot path. Usage: credisync restore <path> [--yes]")
	}

	file, err := os.Open(positional[0])
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer func() { _ = file.Close() }()

	snap, err := backup.Decode(file)
	if err != nil {
		return err
	}

	c.io.Println("=== Restore ===")
	c.io.Println()
	c.io.Printf("Snapshot version %s taken at %s:\n", snap.Version, snap.Timestamp.Local().Format("2006-01-02 15:04:05"))
	for table, n := range snap.Counts() {
		c.io.Printf("  %-12s %d\n", table+":", n)
	}
	c.io.Println()
	c.io.Println("⚠️  ALL local data, including changes not yet synced, will be replaced.")

	confirmed := *yes
	if !confirmed {
		confirmed, err = c.io.Confirm("Replace all local data with this snapshot?")
		if errors.Is(err, iocli.ErrNotInteractive) {
			return errors.New("restore needs confirmation: run it in a terminal or pass --yes")
		}
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
	}

	counts, err := c.backup.Restore(ctx, snap, confirmed)
	if errors.Is(err, backup.ErrRestoreNotConfirmed) {
		c.io.Println("Restore cancelled.")
		return nil
	}
	if err != nil {
		return err
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	c.io.Printf("✓ Restored %d rows in %d tables\n", total, len(counts))
	return nil
}
