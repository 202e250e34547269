package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/credisync/internal/client/backup"
	"github.com/iudanet/credisync/internal/client/data"
	"github.com/iudanet/credisync/internal/client/events"
	"github.com/iudanet/credisync/internal/client/iocli"
	"github.com/iudanet/credisync/internal/client/storage"
	"github.com/iudanet/credisync/internal/client/store"
	"github.com/iudanet/credisync/internal/client/sync"
)

// ErrUnknownCommand возвращается для неизвестной команды
var ErrUnknownCommand = errors.New("unknown command")

// Deps зависимости операторской консоли
type Deps struct {
	Store          *store.Store
	Outbox         storage.OutboxStorage
	Data           *data.Service
	Sync           *sync.Service
	Backup         *backup.Service
	Rotator        *backup.Rotator
	Events         *events.Notifier // события показываются в режиме daemon
	ScopeID        string
	BackupInterval time.Duration
}

type Cli struct {
	io             iocli.IO
	store          *store.Store
	outbox         storage.OutboxStorage
	data           *data.Service
	sync           *sync.Service
	backup         *backup.Service
	rotator        *backup.Rotator
	events         *events.Notifier
	scopeID        string
	backupInterval time.Duration
}

func New(io iocli.IO, deps Deps) *Cli {
	return &Cli{
		io:             io,
		store:          deps.Store,
		outbox:         deps.Outbox,
		data:           deps.Data,
		sync:           deps.Sync,
		backup:         deps.Backup,
		rotator:        deps.Rotator,
		events:         deps.Events,
		scopeID:        deps.ScopeID,
		backupInterval: deps.BackupInterval,
	}
}

// Run executes a single operator command.
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "status":
		return c.runStatus(ctx)
	case "sync":
		return c.runSync(ctx)
	case "list":
		return c.runList(ctx, args)
	case "outbox":
		return c.runOutbox(ctx, args)
	case "retry":
		return c.runRetry(ctx, args)
	case "add":
		return c.runAdd(ctx, args)
	case "pay":
		return c.runPay(ctx, args)
	case "delete":
		return c.runDelete(ctx, args)
	case "backup":
		return c.runBackup(ctx, args)
	case "restore":
		return c.runRestore(ctx, args)
	case "daemon":
		return c.runDaemon(ctx)
	case "help", "":
		c.PrintUsage()
		return nil
	default:
		c.PrintUsage()
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}

func (c *Cli) PrintUsage() {
	c.io.Println("CrediSync field client")
	c.io.Println()
	c.io.Println("Usage:")
	c.io.Println("  credisync [OPTIONS] COMMAND [ARGS]")
	c.io.Println()
	c.io.Println("Options:")
	c.io.Println("  --config PATH     Path to config file (default: credisync.yaml)")
	c.io.Println("  --server URL      Server URL (default: http://localhost:8080)")
	c.io.Println("  --db PATH         Path to local database (default: credisync.db)")
	c.io.Println("  --scope ID        Owner scope (company) id")
	c.io.Println("  --version         Show version information")
	c.io.Println()
	c.io.Println("Commands:")
	c.io.Println("  status                          Show sync state and local table counts")
	c.io.Println("  sync                            Send pending changes to the server now")
	c.io.Println("  list <type>                     List local records (clients, credits, installments, payments, routes, products)")
	c.io.Println("  outbox [pending|failed|review|all]  Show the sync queue")
	c.io.Println("  retry <entry-id>|--failed       Re-arm failed or parked outbox entries")
	c.io.Println("  add <type> [--json DOC]         Add or update a record")
	c.io.Println("  pay <installment-id> <amount>   Record a field payment")
	c.io.Println("  delete <type> <id> [--yes]      Delete a record")
	c.io.Println("  backup [--out PATH]             Write a snapshot of the local database")
	c.io.Println("  restore <path> [--yes]          Replace ALL local data with a snapshot")
	c.io.Println("  daemon                          Run background sync and automatic backups")
	c.io.Println()
	c.io.Println("Examples:")
	c.io.Println("  credisync add client")
	c.io.Println("  credisync pay 3f6d2a9e-8e4b-4a53-9f0e-5f3c1d2b7a10 25000")
	c.io.Println("  credisync outbox failed")
	c.io.Println("  credisync --server https://api.example.com sync")
}
